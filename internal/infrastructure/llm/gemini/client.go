// Package gemini implements the document analysis gateway against the
// Gemini Files and generateContent REST APIs.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

type Client struct {
	baseURL      string
	apiKey       string
	model        string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
	executor     *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxPolls := cfg.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 30
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		httpClient:   &http.Client{Timeout: timeout},
		executor:     executor,
	}
}

type fileData struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType"`
}

type contentPart struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate runs one generateContent call and flattens the first
// candidate's text parts.
func (c *Client) generate(ctx context.Context, operation string, req generateRequest) (string, error) {
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)

	var resp generateResponse
	if err := c.postJSON(ctx, path, req, &resp, operation); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini %s: empty candidate list", operation)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini %s: candidate with no text", operation)
	}
	return text, nil
}

func filesToParts(files []domain.RemoteFile) []contentPart {
	parts := make([]contentPart, 0, len(files)+1)
	for _, file := range files {
		parts = append(parts, contentPart{FileData: &fileData{FileURI: file.URI, MimeType: file.MimeType}})
	}
	return parts
}

// conversation keeps client-side history; each user turn re-attaches the
// file references so the model always sees the documents.
type conversation struct {
	client  *Client
	files   []domain.RemoteFile
	history []content
}

func (c *Client) StartConversation(files []domain.RemoteFile) ports.Conversation {
	return &conversation{client: c, files: files}
}

func (s *conversation) Send(ctx context.Context, message string) (string, error) {
	turn := content{Role: "user", Parts: append(filesToParts(s.files), contentPart{Text: message})}
	req := generateRequest{
		Contents:          append(append([]content(nil), s.history...), turn),
		SystemInstruction: &content{Parts: []contentPart{{Text: chatSystemPrompt}}},
	}

	reply, err := s.client.generate(ctx, "chat", req)
	if err != nil {
		return "", mapFileScopedError("send chat message", err)
	}
	s.history = append(s.history, turn, content{Role: "model", Parts: []contentPart{{Text: reply}}})
	return reply, nil
}

// GenerateComparison asks the model for a structured cross-document
// comparison over the already-extracted reports.
func (c *Client) GenerateComparison(ctx context.Context, entries []domain.ComparisonEntry) (json.RawMessage, error) {
	prompt, err := buildComparisonPrompt(entries)
	if err != nil {
		return nil, err
	}
	req := generateRequest{
		Contents:          []content{{Role: "user", Parts: []contentPart{{Text: prompt}}}},
		SystemInstruction: &content{Parts: []contentPart{{Text: comparisonSystemPrompt}}},
	}

	text, err := c.generate(ctx, "compare", req)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("generate comparison", err)
	}
	object, err := extractJSONObject(text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionParse, "generate comparison", err)
	}
	return json.RawMessage(object), nil
}
