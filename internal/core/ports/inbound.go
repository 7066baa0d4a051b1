package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

// DocumentIntake is the inbound contract for the synchronous upload path.
type DocumentIntake interface {
	UploadAndAnalyze(ctx context.Context, originalFilename, projectID, uploaderID string, body io.Reader) (*domain.UploadOutcome, error)
	Delete(ctx context.Context, documentID string) error
}

// DocumentAnalyzer runs or re-runs extraction for one document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentID string) (*domain.Document, error)
}

// DocumentChat is the inbound contract for single-document conversations.
type DocumentChat interface {
	Send(ctx context.Context, documentID, message string) (*domain.ChatReply, error)
	History(ctx context.Context, documentID string) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, documentID string) (int64, error)
}

// ComparisonService manages comparison groups and their conversations.
type ComparisonService interface {
	Create(ctx context.Context, name string, documentIDs []string) (*domain.Comparison, error)
	Get(ctx context.Context, comparisonID string) (*domain.Comparison, error)
	List(ctx context.Context) ([]domain.Comparison, error)
	Delete(ctx context.Context, comparisonID string) error
	AddDocument(ctx context.Context, comparisonID, documentID string) error
	RemoveDocument(ctx context.Context, comparisonID, documentID string) error
	Send(ctx context.Context, comparisonID, message string) (*domain.ChatReply, error)
	History(ctx context.Context, comparisonID string) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, comparisonID string) (int64, error)
}

// ProjectComparer generates and serves project-level comparisons.
type ProjectComparer interface {
	Compare(ctx context.Context, projectID string) (json.RawMessage, error)
	Cached(ctx context.Context, projectID string) (json.RawMessage, error)
	Clear(ctx context.Context, projectID string) error
}

// ComplianceService manages scoring weights and recalculation.
type ComplianceService interface {
	Weights(ctx context.Context, projectID string) (map[string]float64, error)
	UpdateWeights(ctx context.Context, projectID string, weights map[string]float64, recalculate bool) (*domain.WeightsUpdate, error)
	ResetWeights(ctx context.Context, projectID string, recalculate bool) (*domain.WeightsUpdate, error)
}
