package httpadapter

import (
	"net/http"
	"strings"
	"time"
)

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	start := time.Now()
	outcome, err := rt.intake.UploadAndAnalyze(
		r.Context(),
		fileHeader.Filename,
		strings.TrimSpace(r.FormValue("project_id")),
		strings.TrimSpace(r.FormValue("uploader_id")),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil && !outcome.Existing {
		rt.metrics.RecordUploadPages("api", outcome.Document.PageCount)
		rt.metrics.RecordAnalysis("api", string(outcome.Document.Status), time.Since(start))
	}

	status := http.StatusCreated
	if outcome.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, outcome)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.documents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.intake.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reanalyzeDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	doc, err := rt.analyzer.Analyze(r.Context(), r.PathValue("id"))
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordAnalysis("api", "error", time.Since(start))
		}
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAnalysis("api", string(doc.Status), time.Since(start))
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) sendDocumentChat(w http.ResponseWriter, r *http.Request) {
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

	reply, err := rt.chat.Send(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordChatTurn("api", "document")
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Router) documentChatHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := rt.chat.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (rt *Router) clearDocumentChat(w http.ResponseWriter, r *http.Request) {
	deleted, err := rt.chat.Clear(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
