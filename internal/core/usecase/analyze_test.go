package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

func pendingDoc(id string) *domain.Document {
	return &domain.Document{
		ID:               id,
		Filename:         "report.pdf",
		OriginalFilename: "report.pdf",
		StoragePath:      id + "_report.pdf",
		RemoteHandle:     "files/stale",
		Status:           domain.StatusPending,
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	repo := newMemDocumentRepo(pendingDoc("doc-1"))
	projects := newMemProjectRepo()
	storage := newMemStorage()
	gateway := &fakeGateway{}
	sessions := newMemSessions()
	uc := NewAnalyzeDocumentUseCase(repo, projects, storage, gateway, sessions)

	doc, err := uc.Analyze(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if doc.Status != domain.StatusCompleted {
		t.Fatalf("expected status completed, got %s", doc.Status)
	}
	if doc.Result == nil {
		t.Fatalf("expected result to be saved")
	}
	want := []string{"analyzing", "completed"}
	if len(repo.statusTransitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, repo.statusTransitions)
	}
	for i := range want {
		if repo.statusTransitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, repo.statusTransitions)
		}
	}
}

func TestAnalyzeAlreadyCompletedSkipsGateway(t *testing.T) {
	doc := pendingDoc("doc-1")
	doc.Status = domain.StatusCompleted
	doc.Result = mustResult(t, sampleResultJSON)
	repo := newMemDocumentRepo(doc)
	gateway := &fakeGateway{}
	uc := NewAnalyzeDocumentUseCase(repo, newMemProjectRepo(), newMemStorage(), gateway, newMemSessions())

	got, err := uc.Analyze(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Result == nil {
		t.Fatalf("expected existing result")
	}
	if len(gateway.extractCalls) != 0 {
		t.Fatalf("expected no extraction, got %d calls", len(gateway.extractCalls))
	}
}

func TestAnalyzeExpiredHandleRetriesOnce(t *testing.T) {
	repo := newMemDocumentRepo(pendingDoc("doc-1"))
	storage := newMemStorage()
	if err := storage.Save(context.Background(), "doc-1_report.pdf", strings.NewReader("%PDF")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	gateway := &fakeGateway{}
	gateway.extractFn = func(_ context.Context, handle string) (*domain.AnalysisResult, error) {
		if handle == "files/stale" {
			return nil, expiredErr("extract report")
		}
		return domain.ParseAnalysisResult([]byte(sampleResultJSON))
	}
	sessions := newMemSessions()
	uc := NewAnalyzeDocumentUseCase(repo, newMemProjectRepo(), storage, gateway, sessions)

	doc, err := uc.Analyze(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if doc.Status != domain.StatusCompleted {
		t.Fatalf("expected status completed, got %s", doc.Status)
	}
	if len(gateway.uploadCalls) != 1 {
		t.Fatalf("expected one re-upload, got %d", len(gateway.uploadCalls))
	}
	if len(gateway.extractCalls) != 2 {
		t.Fatalf("expected two extraction attempts, got %d", len(gateway.extractCalls))
	}
	if doc.RemoteHandle == "files/stale" {
		t.Fatalf("expected renewed handle, still %s", doc.RemoteHandle)
	}
	if len(sessions.invalidations) != 1 || sessions.invalidations[0] != "doc-1" {
		t.Fatalf("expected session invalidation for doc-1, got %v", sessions.invalidations)
	}
}

func TestAnalyzeExpiredSourceMissingLeavesStatus(t *testing.T) {
	repo := newMemDocumentRepo(pendingDoc("doc-1"))
	gateway := &fakeGateway{
		extractFn: func(context.Context, string) (*domain.AnalysisResult, error) {
			return nil, expiredErr("extract report")
		},
	}
	uc := NewAnalyzeDocumentUseCase(repo, newMemProjectRepo(), newMemStorage(), gateway, newMemSessions())

	_, err := uc.Analyze(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrSourceFileMissing) {
		t.Fatalf("expected source file missing kind, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != domain.StatusAnalyzing {
		t.Fatalf("expected status left at analyzing, got %s", doc.Status)
	}
}

func TestAnalyzeRetryFailureLeavesStatus(t *testing.T) {
	repo := newMemDocumentRepo(pendingDoc("doc-1"))
	storage := newMemStorage()
	if err := storage.Save(context.Background(), "doc-1_report.pdf", strings.NewReader("%PDF")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	gateway := &fakeGateway{
		extractFn: func(context.Context, string) (*domain.AnalysisResult, error) {
			return nil, expiredErr("extract report")
		},
	}
	uc := NewAnalyzeDocumentUseCase(repo, newMemProjectRepo(), storage, gateway, newMemSessions())

	_, err := uc.Analyze(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(gateway.extractCalls) != 2 {
		t.Fatalf("expected exactly two extraction attempts, got %d", len(gateway.extractCalls))
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != domain.StatusAnalyzing {
		t.Fatalf("expected status left at analyzing, got %s", doc.Status)
	}
}

func TestAnalyzeFailureMarksFailed(t *testing.T) {
	repo := newMemDocumentRepo(pendingDoc("doc-1"))
	gateway := &fakeGateway{
		extractFn: func(context.Context, string) (*domain.AnalysisResult, error) {
			return nil, domain.WrapError(domain.ErrExtractionParse, "extract report", errors.New("not a json object"))
		},
	}
	uc := NewAnalyzeDocumentUseCase(repo, newMemProjectRepo(), newMemStorage(), gateway, newMemSessions())

	_, err := uc.Analyze(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrExtractionParse) {
		t.Fatalf("expected extraction parse kind, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != domain.StatusFailed {
		t.Fatalf("expected status failed, got %s", doc.Status)
	}
	if doc.Error == "" {
		t.Fatalf("expected failure message on document")
	}
}

func TestAnalyzeFlagsProjectMismatch(t *testing.T) {
	doc := pendingDoc("doc-1")
	doc.ProjectID = "proj-1"
	repo := newMemDocumentRepo(doc)
	projects := newMemProjectRepo(&domain.Project{ID: "proj-1", Name: "Meghalaya Roads", State: "Meghalaya", Sector: "Infrastructure"})
	uc := NewAnalyzeDocumentUseCase(repo, projects, newMemStorage(), &fakeGateway{}, newMemSessions())

	got, err := uc.Analyze(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(got.ValidationFlags) != 1 {
		t.Fatalf("expected one validation flag, got %v", got.ValidationFlags)
	}
	if got.ValidationFlags[0].Type != "state_mismatch" {
		t.Fatalf("expected state_mismatch, got %s", got.ValidationFlags[0].Type)
	}
}
