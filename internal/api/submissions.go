package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/normalizer"
	"dynamic-forms/internal/models"
	"dynamic-forms/internal/search"

	"github.com/go-chi/chi/v5"
)

// submit accepts either multipart/form-data with a JSON "data" field,
// an optional "formName" field and files keyed by field label, or a JSON
// body {"data": {...}, "formName": "..."} without attachments.
func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	opts := normalizer.Options{Report: normalizer.ReportPolicy(r.URL.Query().Get("report"))}

	var (
		raw         map[string]interface{}
		attachments []binder.Attachment
		err         error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		raw, attachments, opts.FormNameOverride, err = h.readMultipart(w, r)
	} else {
		raw, opts.FormNameOverride, err = readSubmissionJSON(r)
	}
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	sub, err := h.Submissions.Submit(r.Context(), formID, raw, attachments, opts)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handler) readMultipart(w http.ResponseWriter, r *http.Request) (map[string]interface{}, []binder.Attachment, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		return nil, nil, "", errors.NewMalformedPayloadError(err)
	}
	defer r.MultipartForm.RemoveAll()

	raw, err := normalizer.DecodePayload([]byte(r.PostFormValue("data")))
	if err != nil {
		return nil, nil, "", err
	}

	var attachments []binder.Attachment
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, nil, "", errors.NewMalformedPayloadError(fmt.Errorf("open %s: %w", fh.Filename, err))
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, nil, "", errors.NewMalformedPayloadError(fmt.Errorf("read %s: %w", fh.Filename, err))
			}
			attachments = append(attachments, binder.Attachment{
				FieldName:    field,
				OriginalName: fh.Filename,
				MimeType:     fh.Header.Get("Content-Type"),
				Content:      content,
			})
		}
	}
	return raw, attachments, r.PostFormValue("formName"), nil
}

func readSubmissionJSON(r *http.Request) (map[string]interface{}, string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", errors.NewMalformedPayloadError(err)
	}
	envelope, err := normalizer.DecodePayload(body)
	if err != nil {
		return nil, "", err
	}

	raw := map[string]interface{}{}
	if data, ok := envelope["data"]; ok && data != nil {
		m, ok := data.(map[string]interface{})
		if !ok {
			return nil, "", errors.NewMalformedPayloadError(fmt.Errorf("data must be an object"))
		}
		raw = m
	}
	formName, _ := envelope["formName"].(string)
	return raw, formName, nil
}

func (h *handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SubmissionFilter{
		FormID:   q.Get("formId"),
		FormName: q.Get("formName"),
		Status:   models.SubmissionStatus(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	subs, err := h.Submissions.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) searchSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := search.Query{
		Text:   strings.TrimSpace(q.Get("q")),
		FormID: q.Get("formId"),
		Status: models.SubmissionStatus(q.Get("status")),
	}
	query.From, _ = strconv.Atoi(q.Get("from"))
	query.Size, _ = strconv.Atoi(q.Get("size"))

	result, err := h.Submissions.Search(r.Context(), query)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Submissions.Get(r.Context(), chi.URLParam(r, "subId"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) transition(target models.SubmissionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := h.Submissions.Transition(r.Context(), chi.URLParam(r, "subId"), target)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Submissions.Dashboard(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *handler) verifyPAN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PANNumber string `json:"panNumber"`
		PAN       string `json:"pan"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	pan := req.PANNumber
	if pan == "" {
		pan = req.PAN
	}
	result, err := h.Submissions.VerifyPAN(r.Context(), strings.TrimSpace(pan))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}
