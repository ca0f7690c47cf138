package api

import (
	stderrors "errors"
	"io"
	"net/http"

	"dynamic-forms/internal/blob"

	"github.com/go-chi/chi/v5"
)

// serveUpload streams a stored attachment by its stored name.
func (h *handler) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := blob.CheckName(name); err != nil {
		http.NotFound(w, r)
		return
	}

	rc, contentType, err := h.Blobs.Get(r.Context(), name)
	if err != nil {
		if stderrors.Is(err, blob.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.Logger.Error("failed to read attachment", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		http.Error(w, "attachment unavailable", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("attachment stream interrupted", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
	}
}
