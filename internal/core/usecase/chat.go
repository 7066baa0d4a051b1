package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type ChatUseCase struct {
	repo        ports.DocumentRepository
	transcripts ports.TranscriptStore
	storage     ports.SourceStore
	gateway     ports.DocumentGateway
	sessions    ports.SessionCache
}

func NewChatUseCase(
	repo ports.DocumentRepository,
	transcripts ports.TranscriptStore,
	storage ports.SourceStore,
	gateway ports.DocumentGateway,
	sessions ports.SessionCache,
) *ChatUseCase {
	return &ChatUseCase{
		repo:        repo,
		transcripts: transcripts,
		storage:     storage,
		gateway:     gateway,
		sessions:    sessions,
	}
}

// Send persists the user turn, runs it through the document's chat
// session and persists the reply. An expired remote handle triggers one
// re-upload, a session rebuild against the fresh handle and one retry.
func (uc *ChatUseCase) Send(ctx context.Context, documentID, message string) (*domain.ChatReply, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.RemoteHandle == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat with document",
			fmt.Errorf("document %s has no uploaded file", documentID))
	}

	if _, err := uc.transcripts.AppendDocumentMessage(ctx, documentID, domain.RoleUser, message); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	reply, err := uc.converse(ctx, doc, message)
	if domain.IsKind(err, domain.ErrHandleExpired) {
		if doc, err = uc.renewDocumentHandle(ctx, doc); err != nil {
			return nil, err
		}
		reply, err = uc.converse(ctx, doc, message)
	}
	if err != nil {
		return nil, fmt.Errorf("send chat message: %w", err)
	}

	messageID, err := uc.transcripts.AppendDocumentMessage(ctx, documentID, domain.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	return &domain.ChatReply{Reply: reply, MessageID: messageID}, nil
}

func (uc *ChatUseCase) History(ctx context.Context, documentID string) ([]domain.ChatMessage, error) {
	if _, err := uc.repo.GetByID(ctx, documentID); err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return uc.transcripts.ListDocumentMessages(ctx, documentID)
}

// Clear drops the persisted transcript and the live session.
func (uc *ChatUseCase) Clear(ctx context.Context, documentID string) (int64, error) {
	if _, err := uc.repo.GetByID(ctx, documentID); err != nil {
		return 0, fmt.Errorf("fetch document by id: %w", err)
	}
	deleted, err := uc.transcripts.ClearDocumentMessages(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("clear transcript: %w", err)
	}
	uc.sessions.Invalidate(documentID)
	return deleted, nil
}

func (uc *ChatUseCase) converse(ctx context.Context, doc *domain.Document, message string) (string, error) {
	session, err := uc.ensureSession(ctx, doc)
	if err != nil {
		return "", err
	}
	return session.Send(ctx, message)
}

func (uc *ChatUseCase) ensureSession(ctx context.Context, doc *domain.Document) (*ports.ChatSession, error) {
	if session, ok := uc.sessions.Get(doc.ID); ok {
		return session, nil
	}
	file, err := uc.gateway.ResolveFile(ctx, doc.RemoteHandle)
	if err != nil {
		return nil, err
	}
	files := []domain.RemoteFile{file}
	session := ports.NewChatSession(uc.gateway.StartConversation(files), files)
	uc.sessions.Put(doc.ID, session)
	return session, nil
}

func (uc *ChatUseCase) renewDocumentHandle(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	uc.sessions.Invalidate(doc.ID)
	path, err := uc.storage.Resolve(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("resolve source for re-upload: %w", err)
	}
	handle, err := uc.gateway.Upload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("re-upload source: %w", err)
	}
	if err := uc.repo.UpdateRemoteHandle(ctx, doc.ID, handle); err != nil {
		return nil, fmt.Errorf("persist renewed handle: %w", err)
	}
	doc.RemoteHandle = handle
	return doc, nil
}
