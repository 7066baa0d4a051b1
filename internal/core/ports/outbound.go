package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByOriginalFilename(ctx context.Context, originalFilename string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Document, error)
	ListInterrupted(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateRemoteHandle(ctx context.Context, id, handle string) error
	UpdateProject(ctx context.Context, id, projectID string) error
	SaveResult(ctx context.Context, id string, result *domain.AnalysisResult, flags []domain.ValidationFlag) error
	SaveRescoredResult(ctx context.Context, id string, result *domain.AnalysisResult) error
	// Delete also reports the comparisons the document was a member of,
	// so callers can drop their cached conversations.
	Delete(ctx context.Context, id string) (storagePath string, comparisonIDs []string, err error)
}

// ProjectRepository persists projects and their scoring configuration.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	UpdateWeights(ctx context.Context, id string, weights map[string]float64) error
	SaveComparison(ctx context.Context, id string, result json.RawMessage) error
	ClearComparison(ctx context.Context, id string) error
}

// ComparisonRepository persists ad hoc document comparison groups.
type ComparisonRepository interface {
	Create(ctx context.Context, comparison *domain.Comparison) error
	GetByID(ctx context.Context, id string) (*domain.Comparison, error)
	List(ctx context.Context) ([]domain.Comparison, error)
	AddDocument(ctx context.Context, comparisonID, documentID string) error
	RemoveDocument(ctx context.Context, comparisonID, documentID string) error
	Delete(ctx context.Context, id string) error
}

// TranscriptStore persists chat history for documents and comparisons.
type TranscriptStore interface {
	AppendDocumentMessage(ctx context.Context, documentID string, role domain.ChatRole, content string) (int64, error)
	ListDocumentMessages(ctx context.Context, documentID string) ([]domain.ChatMessage, error)
	ClearDocumentMessages(ctx context.Context, documentID string) (int64, error)
	AppendComparisonMessage(ctx context.Context, comparisonID string, role domain.ChatRole, content string) (int64, error)
	ListComparisonMessages(ctx context.Context, comparisonID string) ([]domain.ChatMessage, error)
	ClearComparisonMessages(ctx context.Context, comparisonID string) (int64, error)
}

// SourceStore stores source documents on disk.
type SourceStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	// Resolve returns an absolute path for a stored key, or a
	// domain.ErrSourceFileMissing kind when the file is gone.
	Resolve(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes analysis requests.
type MessageQueue interface {
	PublishAnalyzeRequested(ctx context.Context, documentID string) error
	SubscribeAnalyzeRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// PDFInspector validates an upload and reports its page count.
type PDFInspector interface {
	PageCount(r io.ReaderAt, size int64) (int, error)
}

// DocumentGateway talks to the external analysis provider.
type DocumentGateway interface {
	// Upload pushes a local file and blocks until the provider finishes
	// server-side processing, returning an opaque remote handle.
	Upload(ctx context.Context, path string) (string, error)
	// Extract runs structured report extraction against an uploaded file.
	Extract(ctx context.Context, handle string) (*domain.AnalysisResult, error)
	// ResolveFile turns a handle into a conversation-usable file reference.
	ResolveFile(ctx context.Context, handle string) (domain.RemoteFile, error)
	StartConversation(files []domain.RemoteFile) Conversation
	GenerateComparison(ctx context.Context, entries []domain.ComparisonEntry) (json.RawMessage, error)
}

// Conversation is a stateful multi-turn exchange over a fixed file set.
type Conversation interface {
	Send(ctx context.Context, message string) (string, error)
}
