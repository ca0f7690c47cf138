// Package api exposes the form engine over HTTP.
package api

import (
	"context"
	"io"
	"net/http"

	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/common/observability"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/normalizer"
	"dynamic-forms/internal/models"
	"dynamic-forms/internal/search"
	"dynamic-forms/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadBytes bounds a multipart submission when none is configured.
const DefaultMaxUploadBytes = 12 << 20

type FormOps interface {
	Create(ctx context.Context, def *models.FormDefinition) (*models.FormDefinition, error)
	Replace(ctx context.Context, id string, def *models.FormDefinition) (*models.FormDefinition, error)
	Get(ctx context.Context, id string) (*models.FormDefinition, error)
	List(ctx context.Context) ([]*models.FormDefinition, error)
	Latest(ctx context.Context) (*models.FormDefinition, error)
	Delete(ctx context.Context, id string) error
	Categories() []string
}

type SubmissionOps interface {
	Submit(ctx context.Context, formID string, raw map[string]interface{}, attachments []binder.Attachment, opts normalizer.Options) (*models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]*models.Submission, error)
	Transition(ctx context.Context, id string, target models.SubmissionStatus) (*models.Submission, error)
	Search(ctx context.Context, q search.Query) (*search.Result, error)
	Dashboard(ctx context.Context) (*service.Dashboard, error)
	VerifyPAN(ctx context.Context, pan string) (*service.PANResult, error)
}

// BlobReader serves stored attachments.
type BlobReader interface {
	Get(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// Deps are the collaborators of the router. Ready may be nil.
type Deps struct {
	Forms          FormOps
	Submissions    SubmissionOps
	Blobs          BlobReader
	Observability  *observability.Observability
	Logger         logger.Logger
	MaxUploadBytes int64
	PublicRoot     string
	AllowedOrigins string
	Ready          func(ctx context.Context) error
}

type handler struct {
	Deps
}

// NewRouter builds the HTTP routes of the form service.
func NewRouter(deps Deps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.PublicRoot == "" {
		deps.PublicRoot = binder.DefaultPublicRoot
	}
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	h := &handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(recovery(deps.Logger))
	r.Use(accessLog(deps.Logger, deps.Observability))
	r.Use(cors(deps.AllowedOrigins))

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get(deps.PublicRoot+"/{name}", h.serveUpload)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", h.dashboard)
		r.Get("/categories", h.categories)
		r.Post("/verify-pan", h.verifyPAN)

		r.Get("/forms", h.listForms)
		r.Post("/forms", h.createForm)
		r.Get("/forms/latest", h.latestForm)
		r.Get("/forms/{formId}", h.getForm)
		r.Put("/forms/{formId}", h.replaceForm)
		r.Delete("/forms/{formId}", h.deleteForm)
		r.Post("/forms/{formId}/submissions", h.submit)

		r.Get("/submissions", h.listSubmissions)
		r.Get("/submissions/search", h.searchSubmissions)
		r.Get("/submissions/{subId}", h.getSubmission)
		r.Patch("/submissions/{subId}/approve", h.transition(models.StatusApproved))
		r.Patch("/submissions/{subId}/reject", h.transition(models.StatusRejected))
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
