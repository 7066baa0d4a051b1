package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/config"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
	"github.com/kirillkom/dpr-analyzer/internal/observability/metrics"
)

type Router struct {
	cfg     config.Config
	metrics *metrics.HTTPServerMetrics

	intake      ports.DocumentIntake
	analyzer    ports.DocumentAnalyzer
	chat        ports.DocumentChat
	comparisons ports.ComparisonService
	comparer    ports.ProjectComparer
	compliance  ports.ComplianceService

	documents ports.DocumentRepository
	projects  ports.ProjectRepository
}

func NewRouter(
	cfg config.Config,
	m *metrics.HTTPServerMetrics,
	intake ports.DocumentIntake,
	analyzer ports.DocumentAnalyzer,
	chat ports.DocumentChat,
	comparisons ports.ComparisonService,
	comparer ports.ProjectComparer,
	compliance ports.ComplianceService,
	documents ports.DocumentRepository,
	projects ports.ProjectRepository,
) *Router {
	return &Router{
		cfg:         cfg,
		metrics:     m,
		intake:      intake,
		analyzer:    analyzer,
		chat:        chat,
		comparisons: comparisons,
		comparer:    comparer,
		compliance:  compliance,
		documents:   documents,
		projects:    projects,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /v1/documents/{id}/analyze", rt.reanalyzeDocument)
	mux.HandleFunc("POST /v1/documents/{id}/chat", rt.sendDocumentChat)
	mux.HandleFunc("GET /v1/documents/{id}/chat", rt.documentChatHistory)
	mux.HandleFunc("DELETE /v1/documents/{id}/chat", rt.clearDocumentChat)

	mux.HandleFunc("POST /v1/projects", rt.createProject)
	mux.HandleFunc("GET /v1/projects", rt.listProjects)
	mux.HandleFunc("GET /v1/projects/{id}", rt.getProject)
	mux.HandleFunc("GET /v1/projects/{id}/documents", rt.listProjectDocuments)
	mux.HandleFunc("POST /v1/projects/{id}/compare", rt.compareProject)
	mux.HandleFunc("GET /v1/projects/{id}/compare", rt.cachedProjectComparison)
	mux.HandleFunc("DELETE /v1/projects/{id}/compare", rt.clearProjectComparison)
	mux.HandleFunc("GET /v1/projects/{id}/weights", rt.getWeights)
	mux.HandleFunc("PUT /v1/projects/{id}/weights", rt.updateWeights)
	mux.HandleFunc("POST /v1/projects/{id}/weights/reset", rt.resetWeights)

	mux.HandleFunc("POST /v1/comparisons", rt.createComparison)
	mux.HandleFunc("GET /v1/comparisons", rt.listComparisons)
	mux.HandleFunc("GET /v1/comparisons/{id}", rt.getComparison)
	mux.HandleFunc("DELETE /v1/comparisons/{id}", rt.deleteComparison)
	mux.HandleFunc("POST /v1/comparisons/{id}/documents", rt.addComparisonDocument)
	mux.HandleFunc("DELETE /v1/comparisons/{id}/documents/{document_id}", rt.removeComparisonDocument)
	mux.HandleFunc("POST /v1/comparisons/{id}/chat", rt.sendComparisonChat)
	mux.HandleFunc("GET /v1/comparisons/{id}/chat", rt.comparisonChatHistory)
	mux.HandleFunc("DELETE /v1/comparisons/{id}/chat", rt.clearComparisonChat)

	var handler http.Handler = mux
	if rt.cfg.APIMaxInFlight > 0 {
		wait := time.Duration(rt.cfg.APIAdmissionWaitMS) * time.Millisecond
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, wait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func decodeJSONBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
