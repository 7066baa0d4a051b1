package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

const sampleResultJSON = `{
	"projectName": "Border Road Upgrade",
	"projectLocation": {"state": "Assam", "district": "Kamrup"},
	"projectSector": "Infrastructure",
	"executiveSummary": "Road upgrade across two districts.",
	"overallScore": 74.5,
	"recommendation": "Approve with conditions",
	"financialAnalysis": {"totalCost": "45 Cr"},
	"riskAssessment": {"risks": []},
	"mdonerComplianceScoring": {
		"overallComplianceScore": 70.0,
		"scoringBreakdown": {
			"northEasternFocus": {"score": 80, "weight": 0.25},
			"beneficiaryAlignment": {"score": 70, "weight": 0.20},
			"environmentalCompliance": {"score": 60, "weight": 0.20},
			"landAcquisition": {"score": 75, "weight": 0.15},
			"documentationQuality": {"score": 65, "weight": 0.10},
			"financialViability": {"score": 72, "weight": 0.10}
		}
	}
}`

func mustResult(t *testing.T, raw string) *domain.AnalysisResult {
	t.Helper()
	result, err := domain.ParseAnalysisResult([]byte(raw))
	if err != nil {
		t.Fatalf("ParseAnalysisResult() error = %v", err)
	}
	return result
}

type memDocumentRepo struct {
	docs              map[string]*domain.Document
	rescoreErrs       map[string]error
	statusTransitions []string
	memberships       map[string][]string
}

func newMemDocumentRepo(docs ...*domain.Document) *memDocumentRepo {
	repo := &memDocumentRepo{docs: map[string]*domain.Document{}}
	for _, doc := range docs {
		copyDoc := *doc
		repo.docs[doc.ID] = &copyDoc
	}
	return repo
}

func (f *memDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *memDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *memDocumentRepo) GetByOriginalFilename(_ context.Context, name string) (*domain.Document, error) {
	for _, doc := range f.docs {
		if doc.OriginalFilename == name {
			copyDoc := *doc
			return &copyDoc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("filename %s", name))
}

func (f *memDocumentRepo) List(context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *memDocumentRepo) ListByProject(_ context.Context, projectID string) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.ProjectID == projectID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *memDocumentRepo) ListInterrupted(context.Context) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.Result == nil && (doc.Status == domain.StatusPending || doc.Status == domain.StatusAnalyzing) {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *memDocumentRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", fmt.Errorf("id %s", id))
	}
	doc.Status = status
	doc.Error = errMessage
	f.statusTransitions = append(f.statusTransitions, string(status))
	return nil
}

func (f *memDocumentRepo) UpdateRemoteHandle(_ context.Context, id, handle string) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update handle", fmt.Errorf("id %s", id))
	}
	doc.RemoteHandle = handle
	return nil
}

func (f *memDocumentRepo) UpdateProject(_ context.Context, id, projectID string) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update project", fmt.Errorf("id %s", id))
	}
	doc.ProjectID = projectID
	return nil
}

func (f *memDocumentRepo) SaveResult(_ context.Context, id string, result *domain.AnalysisResult, flags []domain.ValidationFlag) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save result", fmt.Errorf("id %s", id))
	}
	doc.Result = result
	doc.ValidationFlags = flags
	doc.Status = domain.StatusCompleted
	doc.Error = ""
	f.statusTransitions = append(f.statusTransitions, string(domain.StatusCompleted))
	return nil
}

func (f *memDocumentRepo) SaveRescoredResult(_ context.Context, id string, result *domain.AnalysisResult) error {
	if err := f.rescoreErrs[id]; err != nil {
		return err
	}
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save rescored result", fmt.Errorf("id %s", id))
	}
	doc.Result = result
	return nil
}

func (f *memDocumentRepo) Delete(_ context.Context, id string) (string, []string, error) {
	doc, ok := f.docs[id]
	if !ok {
		return "", nil, domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id %s", id))
	}
	delete(f.docs, id)
	comparisonIDs := f.memberships[id]
	delete(f.memberships, id)
	return doc.StoragePath, comparisonIDs, nil
}

type memProjectRepo struct {
	projects map[string]*domain.Project
}

func newMemProjectRepo(projects ...*domain.Project) *memProjectRepo {
	repo := &memProjectRepo{projects: map[string]*domain.Project{}}
	for _, project := range projects {
		copyProject := *project
		repo.projects[project.ID] = &copyProject
	}
	return repo
}

func (f *memProjectRepo) Create(_ context.Context, project *domain.Project) error {
	copyProject := *project
	f.projects[project.ID] = &copyProject
	return nil
}

func (f *memProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrProjectNotFound, "get project", fmt.Errorf("id %s", id))
	}
	copyProject := *project
	return &copyProject, nil
}

func (f *memProjectRepo) List(context.Context) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(f.projects))
	for _, project := range f.projects {
		out = append(out, *project)
	}
	return out, nil
}

func (f *memProjectRepo) UpdateWeights(_ context.Context, id string, weights map[string]float64) error {
	project, ok := f.projects[id]
	if !ok {
		return domain.WrapError(domain.ErrProjectNotFound, "update weights", fmt.Errorf("id %s", id))
	}
	project.Weights = weights
	return nil
}

func (f *memProjectRepo) SaveComparison(_ context.Context, id string, result json.RawMessage) error {
	project, ok := f.projects[id]
	if !ok {
		return domain.WrapError(domain.ErrProjectNotFound, "save comparison", fmt.Errorf("id %s", id))
	}
	now := time.Now().UTC()
	project.ComparisonResult = result
	project.ComparisonGeneratedAt = &now
	return nil
}

func (f *memProjectRepo) ClearComparison(_ context.Context, id string) error {
	project, ok := f.projects[id]
	if !ok {
		return domain.WrapError(domain.ErrProjectNotFound, "clear comparison", fmt.Errorf("id %s", id))
	}
	project.ComparisonResult = nil
	project.ComparisonGeneratedAt = nil
	return nil
}

type memComparisonRepo struct {
	comparisons map[string]*domain.Comparison
}

func newMemComparisonRepo(comparisons ...*domain.Comparison) *memComparisonRepo {
	repo := &memComparisonRepo{comparisons: map[string]*domain.Comparison{}}
	for _, comparison := range comparisons {
		copyComparison := *comparison
		copyComparison.DocumentIDs = append([]string(nil), comparison.DocumentIDs...)
		repo.comparisons[comparison.ID] = &copyComparison
	}
	return repo
}

func (f *memComparisonRepo) Create(_ context.Context, comparison *domain.Comparison) error {
	copyComparison := *comparison
	copyComparison.DocumentIDs = append([]string(nil), comparison.DocumentIDs...)
	f.comparisons[comparison.ID] = &copyComparison
	return nil
}

func (f *memComparisonRepo) GetByID(_ context.Context, id string) (*domain.Comparison, error) {
	comparison, ok := f.comparisons[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrComparisonNotFound, "get comparison", fmt.Errorf("id %s", id))
	}
	copyComparison := *comparison
	copyComparison.DocumentIDs = append([]string(nil), comparison.DocumentIDs...)
	return &copyComparison, nil
}

func (f *memComparisonRepo) List(context.Context) ([]domain.Comparison, error) {
	out := make([]domain.Comparison, 0, len(f.comparisons))
	for _, comparison := range f.comparisons {
		out = append(out, *comparison)
	}
	return out, nil
}

func (f *memComparisonRepo) AddDocument(_ context.Context, comparisonID, documentID string) error {
	comparison, ok := f.comparisons[comparisonID]
	if !ok {
		return domain.WrapError(domain.ErrComparisonNotFound, "add document", fmt.Errorf("id %s", comparisonID))
	}
	for _, id := range comparison.DocumentIDs {
		if id == documentID {
			return domain.WrapError(domain.ErrInvalidInput, "add document", fmt.Errorf("document %s already present", documentID))
		}
	}
	comparison.DocumentIDs = append(comparison.DocumentIDs, documentID)
	return nil
}

func (f *memComparisonRepo) RemoveDocument(_ context.Context, comparisonID, documentID string) error {
	comparison, ok := f.comparisons[comparisonID]
	if !ok {
		return domain.WrapError(domain.ErrComparisonNotFound, "remove document", fmt.Errorf("id %s", comparisonID))
	}
	if len(comparison.DocumentIDs) <= domain.MinComparisonDocuments {
		return domain.WrapError(domain.ErrInvalidInput, "remove document",
			fmt.Errorf("comparison must keep at least %d documents", domain.MinComparisonDocuments))
	}
	for i, id := range comparison.DocumentIDs {
		if id == documentID {
			comparison.DocumentIDs = append(comparison.DocumentIDs[:i], comparison.DocumentIDs[i+1:]...)
			return nil
		}
	}
	return domain.WrapError(domain.ErrDocumentNotFound, "remove document", fmt.Errorf("document %s not a member", documentID))
}

func (f *memComparisonRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.comparisons[id]; !ok {
		return domain.WrapError(domain.ErrComparisonNotFound, "delete comparison", fmt.Errorf("id %s", id))
	}
	delete(f.comparisons, id)
	return nil
}

type memTranscripts struct {
	nextID int64
	byDoc  map[string][]domain.ChatMessage
	byComp map[string][]domain.ChatMessage
}

func newMemTranscripts() *memTranscripts {
	return &memTranscripts{
		byDoc:  map[string][]domain.ChatMessage{},
		byComp: map[string][]domain.ChatMessage{},
	}
}

func (f *memTranscripts) append(store map[string][]domain.ChatMessage, key string, role domain.ChatRole, content string) int64 {
	f.nextID++
	store[key] = append(store[key], domain.ChatMessage{
		ID:        f.nextID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return f.nextID
}

func (f *memTranscripts) AppendDocumentMessage(_ context.Context, documentID string, role domain.ChatRole, content string) (int64, error) {
	return f.append(f.byDoc, documentID, role, content), nil
}

func (f *memTranscripts) ListDocumentMessages(_ context.Context, documentID string) ([]domain.ChatMessage, error) {
	return f.byDoc[documentID], nil
}

func (f *memTranscripts) ClearDocumentMessages(_ context.Context, documentID string) (int64, error) {
	n := int64(len(f.byDoc[documentID]))
	delete(f.byDoc, documentID)
	return n, nil
}

func (f *memTranscripts) AppendComparisonMessage(_ context.Context, comparisonID string, role domain.ChatRole, content string) (int64, error) {
	return f.append(f.byComp, comparisonID, role, content), nil
}

func (f *memTranscripts) ListComparisonMessages(_ context.Context, comparisonID string) ([]domain.ChatMessage, error) {
	return f.byComp[comparisonID], nil
}

func (f *memTranscripts) ClearComparisonMessages(_ context.Context, comparisonID string) (int64, error) {
	n := int64(len(f.byComp[comparisonID]))
	delete(f.byComp, comparisonID)
	return n, nil
}

type memStorage struct {
	files   map[string][]byte
	removed []string
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (f *memStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *memStorage) Resolve(_ context.Context, key string) (string, error) {
	if _, ok := f.files[key]; !ok {
		return "", domain.WrapError(domain.ErrSourceFileMissing, "resolve source", fmt.Errorf("key %s", key))
	}
	return "/data/sources/" + key, nil
}

func (f *memStorage) Remove(_ context.Context, key string) error {
	if _, ok := f.files[key]; !ok {
		return domain.WrapError(domain.ErrSourceFileMissing, "remove source", fmt.Errorf("key %s", key))
	}
	delete(f.files, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakeConversation struct {
	sendFn func(ctx context.Context, message string) (string, error)
	sent   []string
}

func (f *fakeConversation) Send(ctx context.Context, message string) (string, error) {
	f.sent = append(f.sent, message)
	if f.sendFn != nil {
		return f.sendFn(ctx, message)
	}
	return "reply to: " + message, nil
}

type fakeGateway struct {
	uploadFn     func(ctx context.Context, path string) (string, error)
	extractFn    func(ctx context.Context, handle string) (*domain.AnalysisResult, error)
	resolveFn    func(ctx context.Context, handle string) (domain.RemoteFile, error)
	converseFn   func(files []domain.RemoteFile) ports.Conversation
	comparisonFn func(ctx context.Context, entries []domain.ComparisonEntry) (json.RawMessage, error)

	uploadCalls  []string
	extractCalls []string
	resolveCalls []string
	started      [][]domain.RemoteFile
	handleSeq    int
}

func (f *fakeGateway) Upload(ctx context.Context, path string) (string, error) {
	f.uploadCalls = append(f.uploadCalls, path)
	if f.uploadFn != nil {
		return f.uploadFn(ctx, path)
	}
	f.handleSeq++
	return fmt.Sprintf("files/handle-%d", f.handleSeq), nil
}

func (f *fakeGateway) Extract(ctx context.Context, handle string) (*domain.AnalysisResult, error) {
	f.extractCalls = append(f.extractCalls, handle)
	if f.extractFn != nil {
		return f.extractFn(ctx, handle)
	}
	return domain.ParseAnalysisResult([]byte(sampleResultJSON))
}

func (f *fakeGateway) ResolveFile(ctx context.Context, handle string) (domain.RemoteFile, error) {
	f.resolveCalls = append(f.resolveCalls, handle)
	if f.resolveFn != nil {
		return f.resolveFn(ctx, handle)
	}
	return domain.RemoteFile{Handle: handle, URI: "https://files.example/" + handle, MimeType: "application/pdf"}, nil
}

func (f *fakeGateway) StartConversation(files []domain.RemoteFile) ports.Conversation {
	f.started = append(f.started, files)
	if f.converseFn != nil {
		return f.converseFn(files)
	}
	return &fakeConversation{}
}

func (f *fakeGateway) GenerateComparison(ctx context.Context, entries []domain.ComparisonEntry) (json.RawMessage, error) {
	if f.comparisonFn != nil {
		return f.comparisonFn(ctx, entries)
	}
	return json.RawMessage(`{"bestDocument":"` + entries[0].DocumentID + `"}`), nil
}

type memSessions struct {
	entries       map[string]*ports.ChatSession
	invalidations []string
}

func newMemSessions() *memSessions {
	return &memSessions{entries: map[string]*ports.ChatSession{}}
}

func (f *memSessions) Get(key string) (*ports.ChatSession, bool) {
	session, ok := f.entries[key]
	return session, ok
}

func (f *memSessions) Put(key string, session *ports.ChatSession) {
	f.entries[key] = session
}

func (f *memSessions) Invalidate(key string) {
	delete(f.entries, key)
	f.invalidations = append(f.invalidations, key)
}

type fakeQueue struct {
	published []string
	errFor    map[string]error
}

func (f *fakeQueue) PublishAnalyzeRequested(_ context.Context, documentID string) error {
	if err := f.errFor[documentID]; err != nil {
		return err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *fakeQueue) SubscribeAnalyzeRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type fakeInspector struct {
	pages int
	err   error
}

func (f *fakeInspector) PageCount(io.ReaderAt, int64) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.pages == 0 {
		return 12, nil
	}
	return f.pages, nil
}

func expiredErr(op string) error {
	return domain.WrapError(domain.ErrHandleExpired, op, errors.New("remote returned 403"))
}
