package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

// RecoveryCoordinator re-dispatches documents whose analysis was
// interrupted by a restart. It runs once at boot, off the serving path;
// a failed dispatch for one document is logged and never stops the rest.
type RecoveryCoordinator struct {
	repo   ports.DocumentRepository
	queue  ports.MessageQueue
	logger *slog.Logger
}

func NewRecoveryCoordinator(
	repo ports.DocumentRepository,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *RecoveryCoordinator {
	return &RecoveryCoordinator{
		repo:   repo,
		queue:  queue,
		logger: logger,
	}
}

// Run finds documents stuck in pending or analyzing with no stored
// result and queues each for re-analysis. Returns the dispatch count.
func (rc *RecoveryCoordinator) Run(ctx context.Context) (int, error) {
	docs, err := rc.repo.ListInterrupted(ctx)
	if err != nil {
		return 0, fmt.Errorf("list interrupted documents: %w", err)
	}
	if len(docs) == 0 {
		rc.logger.Info("recovery sweep found no interrupted documents")
		return 0, nil
	}

	dispatched := 0
	for i := range docs {
		if err := rc.queue.PublishAnalyzeRequested(ctx, docs[i].ID); err != nil {
			rc.logger.Error("recovery dispatch failed",
				"document_id", docs[i].ID, "status", docs[i].Status, "error", err)
			continue
		}
		dispatched++
	}
	rc.logger.Info("recovery sweep dispatched interrupted documents",
		"found", len(docs), "dispatched", dispatched)
	return dispatched, nil
}
