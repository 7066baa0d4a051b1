package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

func chatDoc() *domain.Document {
	return &domain.Document{
		ID:           "doc-1",
		StoragePath:  "doc-1_dpr.pdf",
		RemoteHandle: "files/live",
		Status:       domain.StatusCompleted,
	}
}

func TestChatSendPersistsTranscript(t *testing.T) {
	repo := newMemDocumentRepo(chatDoc())
	transcripts := newMemTranscripts()
	gateway := &fakeGateway{}
	uc := NewChatUseCase(repo, transcripts, newMemStorage(), gateway, newMemSessions())

	reply, err := uc.Send(context.Background(), "doc-1", "what is the total cost?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.MessageID == 0 {
		t.Fatalf("expected persisted message id")
	}
	history, _ := transcripts.ListDocumentMessages(context.Background(), "doc-1")
	if len(history) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(history))
	}
	if history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Fatalf("expected user then assistant, got %s then %s", history[0].Role, history[1].Role)
	}
	if history[1].ID != reply.MessageID {
		t.Fatalf("expected reply id %d, got %d", history[1].ID, reply.MessageID)
	}
}

func TestChatSendReusesSession(t *testing.T) {
	repo := newMemDocumentRepo(chatDoc())
	gateway := &fakeGateway{}
	sessions := newMemSessions()
	uc := NewChatUseCase(repo, newMemTranscripts(), newMemStorage(), gateway, sessions)

	if _, err := uc.Send(context.Background(), "doc-1", "first"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := uc.Send(context.Background(), "doc-1", "second"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(gateway.started) != 1 {
		t.Fatalf("expected one conversation start, got %d", len(gateway.started))
	}
	if len(gateway.resolveCalls) != 1 {
		t.Fatalf("expected one file resolution, got %d", len(gateway.resolveCalls))
	}
}

func TestChatSendExpiredRebuildsSessionOnce(t *testing.T) {
	repo := newMemDocumentRepo(chatDoc())
	storage := newMemStorage()
	if err := storage.Save(context.Background(), "doc-1_dpr.pdf", strings.NewReader("%PDF")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	transcripts := newMemTranscripts()
	sessions := newMemSessions()
	gateway := &fakeGateway{}
	gateway.converseFn = func(files []domain.RemoteFile) ports.Conversation {
		stale := files[0].Handle == "files/live"
		return &fakeConversation{sendFn: func(context.Context, string) (string, error) {
			if stale {
				return "", expiredErr("send message")
			}
			return "the main risks are land acquisition delays", nil
		}}
	}
	uc := NewChatUseCase(repo, transcripts, storage, gateway, sessions)

	reply, err := uc.Send(context.Background(), "doc-1", "summarize the risks")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Reply == "" {
		t.Fatalf("expected reply text")
	}
	if len(gateway.uploadCalls) != 1 {
		t.Fatalf("expected one re-upload, got %d", len(gateway.uploadCalls))
	}
	if len(gateway.started) != 2 {
		t.Fatalf("expected session rebuild, got %d conversation starts", len(gateway.started))
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.RemoteHandle == "files/live" {
		t.Fatalf("expected renewed handle, still %s", doc.RemoteHandle)
	}
	history, _ := transcripts.ListDocumentMessages(context.Background(), "doc-1")
	if len(history) != 2 {
		t.Fatalf("expected single user turn despite retry, got %d messages", len(history))
	}
}

func TestChatClearDropsSession(t *testing.T) {
	repo := newMemDocumentRepo(chatDoc())
	transcripts := newMemTranscripts()
	sessions := newMemSessions()
	uc := NewChatUseCase(repo, transcripts, newMemStorage(), &fakeGateway{}, sessions)

	if _, err := uc.Send(context.Background(), "doc-1", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	deleted, err := uc.Clear(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted messages, got %d", deleted)
	}
	if _, ok := sessions.Get("doc-1"); ok {
		t.Fatalf("expected session invalidated")
	}
}

func TestChatSendUnknownDocument(t *testing.T) {
	uc := NewChatUseCase(newMemDocumentRepo(), newMemTranscripts(), newMemStorage(), &fakeGateway{}, newMemSessions())

	_, err := uc.Send(context.Background(), "missing", "hello")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected document not found kind, got %v", err)
	}
}
