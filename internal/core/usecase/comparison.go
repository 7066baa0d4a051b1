package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type ComparisonUseCase struct {
	comparisons ports.ComparisonRepository
	documents   ports.DocumentRepository
	transcripts ports.TranscriptStore
	storage     ports.SourceStore
	gateway     ports.DocumentGateway
	sessions    ports.SessionCache
}

func NewComparisonUseCase(
	comparisons ports.ComparisonRepository,
	documents ports.DocumentRepository,
	transcripts ports.TranscriptStore,
	storage ports.SourceStore,
	gateway ports.DocumentGateway,
	sessions ports.SessionCache,
) *ComparisonUseCase {
	return &ComparisonUseCase{
		comparisons: comparisons,
		documents:   documents,
		transcripts: transcripts,
		storage:     storage,
		gateway:     gateway,
		sessions:    sessions,
	}
}

func (uc *ComparisonUseCase) Create(ctx context.Context, name string, documentIDs []string) (*domain.Comparison, error) {
	if len(documentIDs) < domain.MinComparisonDocuments {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create comparison",
			fmt.Errorf("need at least %d documents, got %d", domain.MinComparisonDocuments, len(documentIDs)))
	}
	seen := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		if seen[id] {
			return nil, domain.WrapError(domain.ErrInvalidInput, "create comparison",
				fmt.Errorf("duplicate document id %s", id))
		}
		seen[id] = true
		if _, err := uc.documents.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("resolve comparison member: %w", err)
		}
	}

	comparison := &domain.Comparison{
		ID:          uuid.NewString(),
		Name:        name,
		DocumentIDs: documentIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.comparisons.Create(ctx, comparison); err != nil {
		return nil, fmt.Errorf("create comparison: %w", err)
	}
	return comparison, nil
}

func (uc *ComparisonUseCase) Get(ctx context.Context, comparisonID string) (*domain.Comparison, error) {
	return uc.comparisons.GetByID(ctx, comparisonID)
}

func (uc *ComparisonUseCase) List(ctx context.Context) ([]domain.Comparison, error) {
	return uc.comparisons.List(ctx)
}

func (uc *ComparisonUseCase) Delete(ctx context.Context, comparisonID string) error {
	if err := uc.comparisons.Delete(ctx, comparisonID); err != nil {
		return fmt.Errorf("delete comparison: %w", err)
	}
	uc.sessions.Invalidate(comparisonID)
	return nil
}

// AddDocument grows a comparison and drops its live session so the next
// turn sees the new member.
func (uc *ComparisonUseCase) AddDocument(ctx context.Context, comparisonID, documentID string) error {
	cmp, err := uc.comparisons.GetByID(ctx, comparisonID)
	if err != nil {
		return fmt.Errorf("fetch comparison by id: %w", err)
	}
	for _, memberID := range cmp.DocumentIDs {
		if memberID == documentID {
			return domain.WrapError(domain.ErrInvalidInput, "add comparison document",
				fmt.Errorf("document %s is already in comparison %s", documentID, comparisonID))
		}
	}
	if _, err := uc.documents.GetByID(ctx, documentID); err != nil {
		return fmt.Errorf("resolve document: %w", err)
	}
	if err := uc.comparisons.AddDocument(ctx, comparisonID, documentID); err != nil {
		return fmt.Errorf("add comparison document: %w", err)
	}
	uc.sessions.Invalidate(comparisonID)
	return nil
}

// RemoveDocument shrinks a comparison. The repository rejects a removal
// that would leave fewer than the minimum members, and membership stays
// untouched in that case.
func (uc *ComparisonUseCase) RemoveDocument(ctx context.Context, comparisonID, documentID string) error {
	if err := uc.comparisons.RemoveDocument(ctx, comparisonID, documentID); err != nil {
		return fmt.Errorf("remove comparison document: %w", err)
	}
	uc.sessions.Invalidate(comparisonID)
	return nil
}

// Send persists the user turn, runs it through the comparison's chat
// session over all member files and persists the reply. An expired
// handle on any member triggers one re-upload sweep over every member,
// a session rebuild and one retry.
func (uc *ComparisonUseCase) Send(ctx context.Context, comparisonID, message string) (*domain.ChatReply, error) {
	comparison, err := uc.comparisons.GetByID(ctx, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("fetch comparison by id: %w", err)
	}

	if _, err := uc.transcripts.AppendComparisonMessage(ctx, comparisonID, domain.RoleUser, message); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	reply, err := uc.converse(ctx, comparison, message)
	if domain.IsKind(err, domain.ErrHandleExpired) {
		if err = uc.renewMemberHandles(ctx, comparison); err != nil {
			return nil, err
		}
		reply, err = uc.converse(ctx, comparison, message)
	}
	if err != nil {
		return nil, fmt.Errorf("send comparison message: %w", err)
	}

	messageID, err := uc.transcripts.AppendComparisonMessage(ctx, comparisonID, domain.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	return &domain.ChatReply{Reply: reply, MessageID: messageID}, nil
}

func (uc *ComparisonUseCase) History(ctx context.Context, comparisonID string) ([]domain.ChatMessage, error) {
	if _, err := uc.comparisons.GetByID(ctx, comparisonID); err != nil {
		return nil, fmt.Errorf("fetch comparison by id: %w", err)
	}
	return uc.transcripts.ListComparisonMessages(ctx, comparisonID)
}

func (uc *ComparisonUseCase) Clear(ctx context.Context, comparisonID string) (int64, error) {
	if _, err := uc.comparisons.GetByID(ctx, comparisonID); err != nil {
		return 0, fmt.Errorf("fetch comparison by id: %w", err)
	}
	deleted, err := uc.transcripts.ClearComparisonMessages(ctx, comparisonID)
	if err != nil {
		return 0, fmt.Errorf("clear transcript: %w", err)
	}
	uc.sessions.Invalidate(comparisonID)
	return deleted, nil
}

func (uc *ComparisonUseCase) converse(ctx context.Context, comparison *domain.Comparison, message string) (string, error) {
	session, err := uc.ensureSession(ctx, comparison)
	if err != nil {
		return "", err
	}
	return session.Send(ctx, message)
}

func (uc *ComparisonUseCase) ensureSession(ctx context.Context, comparison *domain.Comparison) (*ports.ChatSession, error) {
	if session, ok := uc.sessions.Get(comparison.ID); ok {
		return session, nil
	}
	files := make([]domain.RemoteFile, 0, len(comparison.DocumentIDs))
	for _, documentID := range comparison.DocumentIDs {
		doc, err := uc.documents.GetByID(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("resolve comparison member: %w", err)
		}
		file, err := uc.gateway.ResolveFile(ctx, doc.RemoteHandle)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	session := ports.NewChatSession(uc.gateway.StartConversation(files), files)
	uc.sessions.Put(comparison.ID, session)
	return session, nil
}

// renewMemberHandles re-uploads every member's source file. All members
// are refreshed because the provider expires them on the same clock and
// the rebuilt session must not mix stale handles with fresh ones.
func (uc *ComparisonUseCase) renewMemberHandles(ctx context.Context, comparison *domain.Comparison) error {
	uc.sessions.Invalidate(comparison.ID)
	for _, documentID := range comparison.DocumentIDs {
		doc, err := uc.documents.GetByID(ctx, documentID)
		if err != nil {
			return fmt.Errorf("resolve comparison member: %w", err)
		}
		path, err := uc.storage.Resolve(ctx, doc.StoragePath)
		if err != nil {
			return fmt.Errorf("resolve source for re-upload: %w", err)
		}
		handle, err := uc.gateway.Upload(ctx, path)
		if err != nil {
			return fmt.Errorf("re-upload source: %w", err)
		}
		if err := uc.documents.UpdateRemoteHandle(ctx, documentID, handle); err != nil {
			return fmt.Errorf("persist renewed handle: %w", err)
		}
	}
	return nil
}
