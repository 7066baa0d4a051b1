package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type CompareProjectUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	gateway   ports.DocumentGateway
}

func NewCompareProjectUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	gateway ports.DocumentGateway,
) *CompareProjectUseCase {
	return &CompareProjectUseCase{
		projects:  projects,
		documents: documents,
		gateway:   gateway,
	}
}

// Compare generates a fresh cross-document comparison over every
// analyzed document in the project and caches it on the project row.
func (uc *CompareProjectUseCase) Compare(ctx context.Context, projectID string) (json.RawMessage, error) {
	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("fetch project by id: %w", err)
	}
	docs, err := uc.documents.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}

	entries := make([]domain.ComparisonEntry, 0, len(docs))
	for i := range docs {
		if docs[i].Result == nil {
			continue
		}
		entries = append(entries, domain.ComparisonEntry{
			DocumentID: docs[i].ID,
			Filename:   docs[i].OriginalFilename,
			Result:     docs[i].Result,
		})
	}
	if len(entries) < domain.MinComparisonDocuments {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare project documents",
			fmt.Errorf("need at least %d analyzed documents, got %d", domain.MinComparisonDocuments, len(entries)))
	}

	result, err := uc.gateway.GenerateComparison(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("generate comparison: %w", err)
	}
	if err := uc.projects.SaveComparison(ctx, projectID, result); err != nil {
		return nil, fmt.Errorf("cache comparison result: %w", err)
	}
	return result, nil
}

// Cached returns the last generated comparison without regenerating.
func (uc *CompareProjectUseCase) Cached(ctx context.Context, projectID string) (json.RawMessage, error) {
	project, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project by id: %w", err)
	}
	return project.ComparisonResult, nil
}

func (uc *CompareProjectUseCase) Clear(ctx context.Context, projectID string) error {
	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return fmt.Errorf("fetch project by id: %w", err)
	}
	if err := uc.projects.ClearComparison(ctx, projectID); err != nil {
		return fmt.Errorf("clear comparison result: %w", err)
	}
	return nil
}
