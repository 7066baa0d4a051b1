package httpadapter

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

func (rt *Router) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string             `json:"name"`
		State   string             `json:"state"`
		Scheme  string             `json:"scheme"`
		Sector  string             `json:"sector"`
		Weights map[string]float64 `json:"weights"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Weights != nil {
		if err := domain.ValidateWeights(req.Weights); err != nil {
			writeError(w, err)
			return
		}
	}

	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		State:     strings.TrimSpace(req.State),
		Scheme:    strings.TrimSpace(req.Scheme),
		Sector:    strings.TrimSpace(req.Sector),
		Weights:   req.Weights,
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.projects.Create(r.Context(), project); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (rt *Router) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := rt.projects.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (rt *Router) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := rt.projects.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (rt *Router) listProjectDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.documents.ListByProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) compareProject(w http.ResponseWriter, r *http.Request) {
	result, err := rt.comparer.Compare(r.Context(), r.PathValue("id"))
	if rt.metrics != nil {
		rt.metrics.RecordComparisonRun("api", err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparison": result})
}

func (rt *Router) cachedProjectComparison(w http.ResponseWriter, r *http.Request) {
	result, err := rt.comparer.Cached(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(result) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached comparison for project"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparison": result})
}

func (rt *Router) clearProjectComparison(w http.ResponseWriter, r *http.Request) {
	if err := rt.comparer.Clear(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := rt.compliance.Weights(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weights": weights})
}

func (rt *Router) updateWeights(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weights     map[string]float64 `json:"weights"`
		Recalculate bool               `json:"recalculate"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Weights) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weights are required"})
		return
	}

	update, err := rt.compliance.UpdateWeights(r.Context(), r.PathValue("id"), req.Weights, req.Recalculate)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRescore(update)
	writeJSON(w, http.StatusOK, update)
}

func (rt *Router) resetWeights(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recalculate bool `json:"recalculate"`
	}
	// body optional for reset
	_ = decodeJSONBody(r, &req)

	update, err := rt.compliance.ResetWeights(r.Context(), r.PathValue("id"), req.Recalculate)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRescore(update)
	writeJSON(w, http.StatusOK, update)
}

func (rt *Router) recordRescore(update *domain.WeightsUpdate) {
	if rt.metrics == nil || update == nil || update.Report == nil {
		return
	}
	rt.metrics.RecordRescoreSweep("api", update.Report.Updated, len(update.Report.FailedIDs))
}
