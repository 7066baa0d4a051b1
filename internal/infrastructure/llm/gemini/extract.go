package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

// Extract runs structured report extraction against an uploaded file.
// Model output is parsed strictly; when the raw text is not a clean JSON
// object the outermost brace span is rescanned before giving up.
func (c *Client) Extract(ctx context.Context, handle string) (*domain.AnalysisResult, error) {
	file, err := c.ResolveFile(ctx, handle)
	if err != nil {
		return nil, err
	}

	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: append(filesToParts([]domain.RemoteFile{file}), contentPart{Text: extractionPrompt}),
		}},
		SystemInstruction: &content{Parts: []contentPart{{Text: extractionSystemPrompt}}},
	}
	text, err := c.generate(ctx, "extract", req)
	if err != nil {
		return nil, mapFileScopedError("extract report", err)
	}

	object, err := extractJSONObject(text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionParse, "extract report", err)
	}
	return domain.ParseAnalysisResult([]byte(object))
}

// extractJSONObject recovers a JSON object from model output: strip
// markdown fences first, then fall back to the outermost {...} span.
func extractJSONObject(raw string) (string, error) {
	candidate := stripCodeFences(raw)
	if isJSONObject(candidate) {
		return candidate, nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidate = raw[start : end+1]
		if isJSONObject(candidate) {
			return candidate, nil
		}
	}
	return "", errors.New("no JSON object in model output")
}

func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isJSONObject(candidate string) bool {
	if !strings.HasPrefix(candidate, "{") {
		return false
	}
	return json.Valid([]byte(candidate))
}
