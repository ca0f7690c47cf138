// Package normalizer turns a raw label-keyed payload plus uploaded
// attachments into a canonical pending Submission.
package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/metrics"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/registry"
	"dynamic-forms/internal/models"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// ReportPolicy selects how many field failures a rejected submission
// carries.
type ReportPolicy string

const (
	// ReportFirst stops at the first failing field in declared order.
	ReportFirst ReportPolicy = "first"
	// ReportAll validates every field and returns all failures in declared
	// order.
	ReportAll ReportPolicy = "all"
)

func (p ReportPolicy) Valid() bool {
	return p == ReportFirst || p == ReportAll
}

type Validator interface {
	Validate(ctx context.Context, def models.FieldDefinition, raw interface{}) (models.Value, error)
}

type AttachmentBinder interface {
	Bind(ctx context.Context, attachments []binder.Attachment, label string) (*models.FileReference, error)
}

type FormGetter interface {
	Get(ctx context.Context, id string) (*models.FormDefinition, error)
}

type Config struct {
	Report           ReportPolicy
	MaxParallelBinds int
}

func DefaultConfig() Config {
	return Config{Report: ReportFirst, MaxParallelBinds: 4}
}

// Options are per-call overrides.
type Options struct {
	Report           ReportPolicy
	FormNameOverride string
}

type Normalizer struct {
	validator Validator
	binder    AttachmentBinder
	forms     FormGetter
	config    Config
	now       func() time.Time
	newID     func() string
}

func New(validator Validator, b AttachmentBinder, forms FormGetter, cfg Config) *Normalizer {
	if !cfg.Report.Valid() {
		cfg.Report = ReportFirst
	}
	if cfg.MaxParallelBinds <= 0 {
		cfg.MaxParallelBinds = DefaultConfig().MaxParallelBinds
	}
	return &Normalizer{
		validator: validator,
		binder:    b,
		forms:     forms,
		config:    cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NormalizeByID resolves the form and normalizes against it.
func (n *Normalizer) NormalizeByID(ctx context.Context, formID string, raw map[string]interface{}, attachments []binder.Attachment, opts Options) (*models.Submission, error) {
	form, err := n.forms.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	return n.Normalize(ctx, form, raw, attachments, opts)
}

type boundFile struct {
	entry int
	ref   *models.FileReference
}

// Normalize validates raw against form field by field, in declared order,
// looking values up by label. File fields are satisfied only by an
// attachment whose field name equals the label. Attachments are written to
// blob storage only after every field has passed.
func (n *Normalizer) Normalize(ctx context.Context, form *models.FormDefinition, raw map[string]interface{}, attachments []binder.Attachment, opts Options) (*models.Submission, error) {
	policy := opts.Report
	if !policy.Valid() {
		policy = n.config.Report
	}

	entries := make([]models.Entry, 0, len(form.Fields))
	var pendingFiles []int
	var failures []errors.FieldError

	for _, def := range form.Fields {
		var value models.Value
		var err error

		if def.Type == models.KindFile {
			_, attached := binder.Find(attachments, def.Label)
			err = registry.CheckAttachment(def, attached)
			if err == nil && attached {
				pendingFiles = append(pendingFiles, len(entries))
				value = models.FileValue(nil)
			}
		} else {
			value, err = n.validator.Validate(ctx, def, raw[def.Label])
		}

		if err != nil {
			var verr *errors.ValidationError
			if !stderrors.As(err, &verr) {
				return nil, err
			}
			failures = append(failures, verr.Failures...)
			if policy == ReportFirst {
				break
			}
			continue
		}
		if value.Kind == "" {
			continue
		}
		entries = append(entries, models.Entry{FieldID: def.ID, Label: def.Label, Value: value})
	}

	if len(failures) > 0 {
		for _, f := range failures {
			metrics.ValidationFailures.WithLabelValues(string(f.Kind)).Inc()
		}
		return nil, errors.NewValidationError(failures...)
	}

	if err := n.bindAll(ctx, entries, pendingFiles, attachments); err != nil {
		return nil, err
	}

	name := form.Name
	if opts.FormNameOverride != "" {
		name = opts.FormNameOverride
	}
	return &models.Submission{
		ID:          n.newID(),
		FormID:      form.ID,
		FormName:    name,
		Entries:     entries,
		SubmittedAt: n.now().UTC(),
		Status:      models.StatusPending,
	}, nil
}

// bindAll stores every matched attachment concurrently and fills the
// placeholder entries. Any failure aborts the submission.
func (n *Normalizer) bindAll(ctx context.Context, entries []models.Entry, pending []int, attachments []binder.Attachment) error {
	if len(pending) == 0 {
		return nil
	}

	p := pool.NewWithResults[boundFile]().
		WithMaxGoroutines(n.config.MaxParallelBinds).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, idx := range pending {
		idx := idx
		label := entries[idx].Label
		p.Go(func(ctx context.Context) (boundFile, error) {
			ref, err := n.binder.Bind(ctx, attachments, label)
			if err != nil {
				return boundFile{}, err
			}
			if ref == nil {
				return boundFile{}, errors.NewStorageWriteFailedError(fmt.Sprintf("attachment for %q", label), fmt.Errorf("no attachment bound"))
			}
			return boundFile{entry: idx, ref: ref}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return err
	}
	for _, r := range results {
		entries[r.entry].Value = models.FileValue(r.ref)
	}
	return nil
}

// DecodePayload parses the submitted JSON document. An empty body is an
// empty payload; anything other than a single JSON object is malformed.
// Numbers are kept as json.Number so the registry sees the submitted text.
func DecodePayload(data []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]interface{}{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewMalformedPayloadError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewMalformedPayloadError(fmt.Errorf("unexpected data after payload object"))
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, errors.NewMalformedPayloadError(fmt.Errorf("payload must be an object keyed by field label, got %s", jsonKind(doc)))
	}
	return obj, nil
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return strings.ToLower(fmt.Sprintf("%T", v))
	}
}
