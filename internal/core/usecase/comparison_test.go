package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

func comparisonFixtures(t *testing.T) (*memComparisonRepo, *memDocumentRepo, *memStorage) {
	t.Helper()
	docs := newMemDocumentRepo(
		&domain.Document{ID: "doc-1", StoragePath: "doc-1_a.pdf", RemoteHandle: "files/a"},
		&domain.Document{ID: "doc-2", StoragePath: "doc-2_b.pdf", RemoteHandle: "files/b"},
		&domain.Document{ID: "doc-3", StoragePath: "doc-3_c.pdf", RemoteHandle: "files/c"},
	)
	comparisons := newMemComparisonRepo(&domain.Comparison{ID: "cmp-1", Name: "roads", DocumentIDs: []string{"doc-1", "doc-2"}})
	storage := newMemStorage()
	for _, key := range []string{"doc-1_a.pdf", "doc-2_b.pdf", "doc-3_c.pdf"} {
		if err := storage.Save(context.Background(), key, strings.NewReader("%PDF")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	return comparisons, docs, storage
}

func TestComparisonCreateRequiresTwoDocuments(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, &fakeGateway{}, newMemSessions())

	_, err := uc.Create(context.Background(), "solo", []string{"doc-1"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}

func TestComparisonCreateRejectsUnknownDocument(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, &fakeGateway{}, newMemSessions())

	_, err := uc.Create(context.Background(), "bad", []string{"doc-1", "missing"})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected document not found kind, got %v", err)
	}
}

func TestComparisonRemoveDocumentAtMinimumFails(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	sessions := newMemSessions()
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, &fakeGateway{}, sessions)

	err := uc.RemoveDocument(context.Background(), "cmp-1", "doc-2")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
	comparison, _ := comparisons.GetByID(context.Background(), "cmp-1")
	if len(comparison.DocumentIDs) != 2 {
		t.Fatalf("expected membership unchanged, got %v", comparison.DocumentIDs)
	}
	if len(sessions.invalidations) != 0 {
		t.Fatalf("expected no session invalidation on failed removal")
	}
}

func TestComparisonAddThenRemoveDocument(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	sessions := newMemSessions()
	sessions.Put("cmp-1", ports.NewChatSession(&fakeConversation{}, nil))
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, &fakeGateway{}, sessions)

	if err := uc.AddDocument(context.Background(), "cmp-1", "doc-3"); err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}
	if _, ok := sessions.Get("cmp-1"); ok {
		t.Fatalf("expected session dropped after membership change")
	}
	if err := uc.RemoveDocument(context.Background(), "cmp-1", "doc-1"); err != nil {
		t.Fatalf("RemoveDocument() error = %v", err)
	}
	comparison, _ := comparisons.GetByID(context.Background(), "cmp-1")
	if len(comparison.DocumentIDs) != 2 {
		t.Fatalf("expected two members, got %v", comparison.DocumentIDs)
	}
}

func TestComparisonAddDuplicateDocumentRejected(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, &fakeGateway{}, newMemSessions())

	err := uc.AddDocument(context.Background(), "cmp-1", "doc-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate member, got %v", err)
	}
}

func TestComparisonSendBuildsSessionOverAllMembers(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	gateway := &fakeGateway{}
	transcripts := newMemTranscripts()
	uc := NewComparisonUseCase(comparisons, docs, transcripts, storage, gateway, newMemSessions())

	reply, err := uc.Send(context.Background(), "cmp-1", "which project is cheaper?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.MessageID == 0 {
		t.Fatalf("expected persisted message id")
	}
	if len(gateway.started) != 1 || len(gateway.started[0]) != 2 {
		t.Fatalf("expected one session over two files, got %v", gateway.started)
	}
	history, _ := transcripts.ListComparisonMessages(context.Background(), "cmp-1")
	if len(history) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(history))
	}
}

func TestComparisonSendExpiredRenewsAllMembers(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	gateway := &fakeGateway{}
	gateway.converseFn = func(files []domain.RemoteFile) ports.Conversation {
		stale := files[0].Handle == "files/a"
		return &fakeConversation{sendFn: func(context.Context, string) (string, error) {
			if stale {
				return "", expiredErr("send message")
			}
			return "doc-2 has the lower cost", nil
		}}
	}
	sessions := newMemSessions()
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, gateway, sessions)

	reply, err := uc.Send(context.Background(), "cmp-1", "which is cheaper?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Reply == "" {
		t.Fatalf("expected reply text")
	}
	if len(gateway.uploadCalls) != 2 {
		t.Fatalf("expected re-upload for both members, got %d", len(gateway.uploadCalls))
	}
	doc1, _ := docs.GetByID(context.Background(), "doc-1")
	doc2, _ := docs.GetByID(context.Background(), "doc-2")
	if doc1.RemoteHandle == "files/a" || doc2.RemoteHandle == "files/b" {
		t.Fatalf("expected both handles renewed, got %s and %s", doc1.RemoteHandle, doc2.RemoteHandle)
	}
}

func TestComparisonDeleteInvalidatesSession(t *testing.T) {
	comparisons, docs, storage := comparisonFixtures(t)
	sessions := newMemSessions()
	sessions.Put("cmp-1", ports.NewChatSession(&fakeConversation{}, nil))
	uc := NewComparisonUseCase(comparisons, docs, newMemTranscripts(), storage, &fakeGateway{}, sessions)

	if err := uc.Delete(context.Background(), "cmp-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := sessions.Get("cmp-1"); ok {
		t.Fatalf("expected session invalidated")
	}
	if _, err := comparisons.GetByID(context.Background(), "cmp-1"); !domain.IsKind(err, domain.ErrComparisonNotFound) {
		t.Fatalf("expected comparison gone, got %v", err)
	}
}
