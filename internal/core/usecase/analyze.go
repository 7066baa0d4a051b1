package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type AnalyzeDocumentUseCase struct {
	repo     ports.DocumentRepository
	projects ports.ProjectRepository
	storage  ports.SourceStore
	gateway  ports.DocumentGateway
	sessions ports.SessionCache
}

func NewAnalyzeDocumentUseCase(
	repo ports.DocumentRepository,
	projects ports.ProjectRepository,
	storage ports.SourceStore,
	gateway ports.DocumentGateway,
	sessions ports.SessionCache,
) *AnalyzeDocumentUseCase {
	return &AnalyzeDocumentUseCase{
		repo:     repo,
		projects: projects,
		storage:  storage,
		gateway:  gateway,
		sessions: sessions,
	}
}

// Analyze runs extraction for one document and persists the outcome.
// Already-completed documents are returned as-is. An expired remote
// handle triggers exactly one re-upload from the stored source file and
// one extraction retry; a failure anywhere in that recovery cycle leaves
// the document status unchanged for a later attempt. Any other
// extraction failure marks the document failed.
func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Result != nil {
		return doc, nil
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusAnalyzing, ""); err != nil {
		return nil, fmt.Errorf("set status=analyzing: %w", err)
	}

	result, err := uc.gateway.Extract(ctx, doc.RemoteHandle)
	if domain.IsKind(err, domain.ErrHandleExpired) {
		result, err = uc.retryAfterExpiry(ctx, doc)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	flags, err := uc.validateAgainstProject(ctx, doc, result)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.SaveResult(ctx, documentID, result, flags); err != nil {
		return nil, fmt.Errorf("save analysis result: %w", err)
	}

	doc, err = uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	return doc, nil
}

// retryAfterExpiry re-uploads the stored source file, repoints the
// document at the fresh handle and retries extraction once. Errors here
// do not change document status.
func (uc *AnalyzeDocumentUseCase) retryAfterExpiry(ctx context.Context, doc *domain.Document) (*domain.AnalysisResult, error) {
	handle, err := uc.renewHandle(ctx, doc)
	if err != nil {
		return nil, err
	}
	result, err := uc.gateway.Extract(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("extract after re-upload: %w", err)
	}
	return result, nil
}

// renewHandle replaces an expired remote handle from the local source
// file and drops any chat session still bound to the old handle.
func (uc *AnalyzeDocumentUseCase) renewHandle(ctx context.Context, doc *domain.Document) (string, error) {
	path, err := uc.storage.Resolve(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("resolve source for re-upload: %w", err)
	}
	handle, err := uc.gateway.Upload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("re-upload source: %w", err)
	}
	if err := uc.repo.UpdateRemoteHandle(ctx, doc.ID, handle); err != nil {
		return "", fmt.Errorf("persist renewed handle: %w", err)
	}
	uc.sessions.Invalidate(doc.ID)
	doc.RemoteHandle = handle
	return handle, nil
}

func (uc *AnalyzeDocumentUseCase) validateAgainstProject(ctx context.Context, doc *domain.Document, result *domain.AnalysisResult) ([]domain.ValidationFlag, error) {
	if doc.ProjectID == "" {
		return nil, nil
	}
	project, err := uc.projects.GetByID(ctx, doc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project for validation: %w", err)
	}
	return domain.ValidateAgainstProject(result, project), nil
}
