package gemini

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

const (
	fileStateActive     = "ACTIVE"
	fileStateProcessing = "PROCESSING"
	fileStateFailed     = "FAILED"
)

type remoteFileInfo struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

type uploadResponse struct {
	File remoteFileInfo `json:"file"`
}

// Upload pushes a local file to the Files API and blocks until the
// provider reports it ACTIVE. The returned handle is the remote file
// name ("files/..."). A FAILED state or an exhausted poll budget is an
// upload failure.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrSourceFileMissing, "upload file", err)
	}

	metadata := map[string]any{
		"file": map[string]any{"displayName": filepath.Base(path)},
	}
	var resp uploadResponse
	if err := c.postMultipart(ctx, "/upload/v1beta/files", metadata, filepath.Base(path), data, &resp, "upload"); err != nil {
		return "", domain.WrapError(domain.ErrUploadFailed, "upload file", err)
	}
	if resp.File.Name == "" {
		return "", domain.WrapError(domain.ErrUploadFailed, "upload file", fmt.Errorf("response carries no file name"))
	}

	if err := c.awaitActive(ctx, resp.File); err != nil {
		return "", err
	}
	return resp.File.Name, nil
}

func (c *Client) awaitActive(ctx context.Context, file remoteFileInfo) error {
	state := file.State
	for poll := 0; ; poll++ {
		switch state {
		case fileStateActive:
			return nil
		case fileStateFailed:
			return domain.WrapError(domain.ErrUploadFailed, "await remote processing",
				fmt.Errorf("file %s entered state FAILED", file.Name))
		}
		if poll >= c.maxPolls {
			return domain.WrapError(domain.ErrUploadFailed, "await remote processing",
				fmt.Errorf("file %s still %s after %d polls", file.Name, state, c.maxPolls))
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		info, err := c.getFile(ctx, file.Name)
		if err != nil {
			return domain.WrapError(domain.ErrUploadFailed, "await remote processing", err)
		}
		state = info.State
	}
}

// ResolveFile verifies a stored handle is still live and returns its
// conversation-usable reference. Provider 403/404 responses and a FAILED
// remote state both mean the handle has expired.
func (c *Client) ResolveFile(ctx context.Context, handle string) (domain.RemoteFile, error) {
	info, err := c.getFile(ctx, handle)
	if err != nil {
		return domain.RemoteFile{}, mapFileScopedError("resolve file", err)
	}
	switch info.State {
	case fileStateActive:
	case fileStateFailed:
		return domain.RemoteFile{}, domain.WrapError(domain.ErrHandleExpired, "resolve file",
			fmt.Errorf("file %s entered state FAILED", handle))
	default:
		return domain.RemoteFile{}, domain.WrapError(domain.ErrTemporary, "resolve file",
			fmt.Errorf("file %s still %s", handle, info.State))
	}
	mimeType := info.MimeType
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return domain.RemoteFile{Handle: info.Name, URI: info.URI, MimeType: mimeType}, nil
}

func (c *Client) getFile(ctx context.Context, handle string) (remoteFileInfo, error) {
	var info remoteFileInfo
	if err := c.getJSON(ctx, "/v1beta/"+handle, &info, "get_file"); err != nil {
		return remoteFileInfo{}, err
	}
	return info, nil
}
