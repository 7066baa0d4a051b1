package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type UploadDocumentUseCase struct {
	repo        ports.DocumentRepository
	projects    ports.ProjectRepository
	storage     ports.SourceStore
	gateway     ports.DocumentGateway
	inspector   ports.PDFInspector
	analyzer    ports.DocumentAnalyzer
	sessions    ports.SessionCache
	cmpSessions ports.SessionCache
}

func NewUploadDocumentUseCase(
	repo ports.DocumentRepository,
	projects ports.ProjectRepository,
	storage ports.SourceStore,
	gateway ports.DocumentGateway,
	inspector ports.PDFInspector,
	analyzer ports.DocumentAnalyzer,
	sessions ports.SessionCache,
	cmpSessions ports.SessionCache,
) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		repo:        repo,
		projects:    projects,
		storage:     storage,
		gateway:     gateway,
		inspector:   inspector,
		analyzer:    analyzer,
		sessions:    sessions,
		cmpSessions: cmpSessions,
	}
}

// UploadAndAnalyze stores a new document and runs extraction inline. A
// repeated original filename short-circuits to the prior document instead
// of creating a duplicate; when a different project id comes with the
// repeat, the document is repointed to it.
func (uc *UploadDocumentUseCase) UploadAndAnalyze(
	ctx context.Context,
	originalFilename, projectID, uploaderID string,
	body io.Reader,
) (*domain.UploadOutcome, error) {
	if !strings.EqualFold(filepath.Ext(originalFilename), ".pdf") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("only PDF uploads are accepted, got %q", originalFilename))
	}
	if projectID != "" {
		if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
			return nil, fmt.Errorf("resolve project: %w", err)
		}
	}

	existing, err := uc.repo.GetByOriginalFilename(ctx, originalFilename)
	switch {
	case err == nil:
		return uc.reuseExisting(ctx, existing, projectID)
	case !domain.IsKind(err, domain.ErrDocumentNotFound):
		return nil, fmt.Errorf("check duplicate filename: %w", err)
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	pages, err := uc.inspector.PageCount(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("not a readable PDF: %w", err))
	}

	doc, err := uc.storeDocument(ctx, originalFilename, projectID, uploaderID, pages, content)
	if err != nil {
		return nil, err
	}

	outcome := &domain.UploadOutcome{Document: doc}
	analyzed, aerr := uc.analyzer.Analyze(ctx, doc.ID)
	if aerr != nil {
		outcome.AnalysisError = aerr.Error()
		return outcome, nil
	}
	outcome.Document = analyzed
	outcome.Analyzed = analyzed.Status == domain.StatusCompleted
	return outcome, nil
}

func (uc *UploadDocumentUseCase) reuseExisting(ctx context.Context, existing *domain.Document, projectID string) (*domain.UploadOutcome, error) {
	if projectID != "" && projectID != existing.ProjectID {
		if err := uc.repo.UpdateProject(ctx, existing.ID, projectID); err != nil {
			return nil, fmt.Errorf("repoint duplicate to project: %w", err)
		}
		existing.ProjectID = projectID
	}
	return &domain.UploadOutcome{
		Document: existing,
		Analyzed: existing.Status == domain.StatusCompleted,
		Existing: true,
	}, nil
}

func (uc *UploadDocumentUseCase) storeDocument(
	ctx context.Context,
	originalFilename, projectID, uploaderID string,
	pages int,
	content []byte,
) (*domain.Document, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(originalFilename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("save source file: %w", err)
	}
	path, err := uc.storage.Resolve(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("resolve stored file: %w", err)
	}
	handle, err := uc.gateway.Upload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("upload to provider: %w", err)
	}

	doc := &domain.Document{
		ID:               id,
		Filename:         sanitizeFilename(originalFilename),
		OriginalFilename: originalFilename,
		StoragePath:      storageKey,
		RemoteHandle:     handle,
		Status:           domain.StatusPending,
		ProjectID:        projectID,
		UploaderID:       uploaderID,
		PageCount:        pages,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

// Delete removes a document, its transcript, its comparison memberships,
// its stored source file and any live chat session. Comparison sessions
// that referenced the document keep their provider conversation alive
// otherwise, so each affected comparison is evicted too.
func (uc *UploadDocumentUseCase) Delete(ctx context.Context, documentID string) error {
	storagePath, comparisonIDs, err := uc.repo.Delete(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	uc.sessions.Invalidate(documentID)
	for _, comparisonID := range comparisonIDs {
		uc.cmpSessions.Invalidate(comparisonID)
	}
	if err := uc.storage.Remove(ctx, storagePath); err != nil && !domain.IsKind(err, domain.ErrSourceFileMissing) {
		return fmt.Errorf("remove source file: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.pdf"
	}
	return base
}
