package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.do(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.send(req, out, operation)
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	return c.do(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		return c.send(req, out, operation)
	})
}

// postMultipart uploads file bytes with a JSON metadata part using the
// media upload endpoint.
func (c *Client) postMultipart(ctx context.Context, path string, metadata any, filename string, data []byte, out any, operation string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return fmt.Errorf("create %s metadata part: %w", operation, err)
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return fmt.Errorf("encode %s metadata: %w", operation, err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", "application/pdf")
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return fmt.Errorf("create %s file part: %w", operation, err)
	}
	if _, err := filePart.Write(data); err != nil {
		return fmt.Errorf("write %s file part: %w", operation, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize %s body: %w", operation, err)
	}
	body := buf.Bytes()
	contentType := strings.Replace(writer.FormDataContentType(), "multipart/form-data", "multipart/related", 1)

	return c.do(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Goog-Upload-File-Name", filename)
		return c.send(req, out, operation)
	})
}

func (c *Client) do(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, "gemini_"+operation, call, classifyGeminiError)
}

func (c *Client) send(req *http.Request, out any, operation string) error {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
