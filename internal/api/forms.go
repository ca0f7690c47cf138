package api

import (
	"io"
	"net/http"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/forms"

	"github.com/go-chi/chi/v5"
)

func (h *handler) listForms(w http.ResponseWriter, r *http.Request) {
	list, err := h.Forms.List(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) latestForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.Forms.Latest(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *handler) getForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.Forms.Get(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *handler) createForm(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.Logger, errors.NewMalformedPayloadError(err))
		return
	}
	def, err := forms.ValidateDefinitionPayload(body)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	form, err := h.Forms.Create(r.Context(), def)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

func (h *handler) replaceForm(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.Logger, errors.NewMalformedPayloadError(err))
		return
	}
	def, err := forms.ValidateDefinitionPayload(body)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	form, err := h.Forms.Replace(r.Context(), chi.URLParam(r, "formId"), def)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *handler) deleteForm(w http.ResponseWriter, r *http.Request) {
	if err := h.Forms.Delete(r.Context(), chi.URLParam(r, "formId")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Forms.Categories())
}
