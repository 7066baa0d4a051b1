package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type ComplianceUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	logger    *slog.Logger
}

func NewComplianceUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	logger *slog.Logger,
) *ComplianceUseCase {
	return &ComplianceUseCase{
		projects:  projects,
		documents: documents,
		logger:    logger,
	}
}

func (uc *ComplianceUseCase) Weights(ctx context.Context, projectID string) (map[string]float64, error) {
	project, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project by id: %w", err)
	}
	return project.EffectiveWeights(), nil
}

// UpdateWeights validates and persists a new weight set. Validation
// failure leaves both the stored weights and every document untouched.
// When recalculate is set, all analyzed documents in the project are
// rescored under the new weights before returning.
func (uc *ComplianceUseCase) UpdateWeights(
	ctx context.Context,
	projectID string,
	weights map[string]float64,
	recalculate bool,
) (*domain.WeightsUpdate, error) {
	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("fetch project by id: %w", err)
	}
	if err := domain.ValidateWeights(weights); err != nil {
		return nil, err
	}
	if err := uc.projects.UpdateWeights(ctx, projectID, weights); err != nil {
		return nil, fmt.Errorf("persist weights: %w", err)
	}

	update := &domain.WeightsUpdate{Weights: weights}
	if recalculate {
		report, err := uc.recalculate(ctx, projectID, weights)
		if err != nil {
			return nil, err
		}
		update.Recalculated = true
		update.Report = report
	}
	return update, nil
}

// ResetWeights restores the default weight set.
func (uc *ComplianceUseCase) ResetWeights(ctx context.Context, projectID string, recalculate bool) (*domain.WeightsUpdate, error) {
	return uc.UpdateWeights(ctx, projectID, domain.DefaultWeights(), recalculate)
}

// recalculate sweeps every analyzed document in the project, rewriting
// its per-criterion weights and composite score. A document that cannot
// be fully rescored keeps whatever partial composite was computable, is
// excluded from the updated count and lands in the failed id list. One
// bad document never aborts the sweep.
func (uc *ComplianceUseCase) recalculate(ctx context.Context, projectID string, weights map[string]float64) (*domain.RecalcReport, error) {
	docs, err := uc.documents.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}

	report := &domain.RecalcReport{}
	for i := range docs {
		doc := &docs[i]
		if doc.Result == nil {
			continue
		}
		composite, missing := doc.Result.RescoreCompliance(weights)
		if len(missing) == len(weights) {
			// No compliance section at all; nothing to write back.
			report.FailedIDs = append(report.FailedIDs, doc.ID)
			uc.logger.Warn("rescore skipped, no compliance scoring in result", "document_id", doc.ID)
			continue
		}
		if err := uc.documents.SaveRescoredResult(ctx, doc.ID, doc.Result); err != nil {
			report.FailedIDs = append(report.FailedIDs, doc.ID)
			uc.logger.Error("rescore write failed", "document_id", doc.ID, "error", err)
			continue
		}
		if len(missing) > 0 {
			report.FailedIDs = append(report.FailedIDs, doc.ID)
			uc.logger.Warn("rescore incomplete, criteria missing from result",
				"document_id", doc.ID, "missing", missing, "composite", composite)
			continue
		}
		report.Updated++
	}
	return report, nil
}
