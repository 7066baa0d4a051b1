package httpadapter

import (
	"net/http"
	"strings"
)

func (rt *Router) createComparison(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		DocumentIDs []string `json:"document_ids"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	cmp, err := rt.comparisons.Create(r.Context(), strings.TrimSpace(req.Name), req.DocumentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cmp)
}

func (rt *Router) listComparisons(w http.ResponseWriter, r *http.Request) {
	cmps, err := rt.comparisons.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparisons": cmps})
}

func (rt *Router) getComparison(w http.ResponseWriter, r *http.Request) {
	cmp, err := rt.comparisons.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (rt *Router) deleteComparison(w http.ResponseWriter, r *http.Request) {
	if err := rt.comparisons.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) addComparisonDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_id is required"})
		return
	}

	if err := rt.comparisons.AddDocument(r.Context(), r.PathValue("id"), req.DocumentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) removeComparisonDocument(w http.ResponseWriter, r *http.Request) {
	err := rt.comparisons.RemoveDocument(r.Context(), r.PathValue("id"), r.PathValue("document_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) sendComparisonChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	reply, err := rt.comparisons.Send(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordChatTurn("api", "comparison")
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Router) comparisonChatHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := rt.comparisons.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (rt *Router) clearComparisonChat(w http.ResponseWriter, r *http.Request) {
	deleted, err := rt.comparisons.Clear(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
