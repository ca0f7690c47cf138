// Package binder persists uploaded attachments and produces the file
// references recorded in submissions.
package binder

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/metrics"
	"dynamic-forms/internal/models"

	"github.com/google/uuid"
)

// DefaultPublicRoot prefixes every FileReference URL.
const DefaultPublicRoot = "/uploads"

// Attachment is an uploaded file as received by the transport. FieldName is
// the multipart part name and must equal a file field's label.
type Attachment struct {
	FieldName    string
	OriginalName string
	MimeType     string
	Content      []byte
}

// BlobWriter is the part of blob.Store the binder needs.
type BlobWriter interface {
	Put(ctx context.Context, name string, content []byte, contentType string) error
}

type Binder struct {
	blobs      BlobWriter
	publicRoot string
	now        func() time.Time
}

type Option func(*Binder)

func WithPublicRoot(root string) Option {
	return func(b *Binder) { b.publicRoot = strings.TrimRight(root, "/") }
}

func WithClock(now func() time.Time) Option {
	return func(b *Binder) { b.now = now }
}

func New(blobs BlobWriter, opts ...Option) *Binder {
	b := &Binder{blobs: blobs, publicRoot: DefaultPublicRoot, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Find returns the attachment whose FieldName equals label exactly. When
// several match, the last one wins.
func Find(attachments []Attachment, label string) (*Attachment, bool) {
	for i := len(attachments) - 1; i >= 0; i-- {
		if attachments[i].FieldName == label {
			return &attachments[i], true
		}
	}
	return nil, false
}

// Bind stores the attachment matching label and returns its reference, or
// nil when no attachment matches.
func (b *Binder) Bind(ctx context.Context, attachments []Attachment, label string) (*models.FileReference, error) {
	att, ok := Find(attachments, label)
	if !ok {
		return nil, nil
	}

	stored := b.storedName(att.OriginalName)
	if err := b.blobs.Put(ctx, stored, att.Content, att.MimeType); err != nil {
		metrics.BlobWrites.WithLabelValues("error").Inc()
		return nil, errors.NewStorageWriteFailedError(fmt.Sprintf("attachment %q", att.OriginalName), err)
	}
	metrics.BlobWrites.WithLabelValues("ok").Inc()
	metrics.BlobWriteBytes.Observe(float64(len(att.Content)))

	return &models.FileReference{
		OriginalName: att.OriginalName,
		StoredName:   stored,
		URL:          b.publicRoot + "/" + stored,
		MimeType:     att.MimeType,
		SizeBytes:    int64(len(att.Content)),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// storedName is "<unix millis>-<8 hex>-<sanitized original>". The random
// segment keeps names distinct for uploads in the same millisecond.
func (b *Binder) storedName(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d-%s-%s", b.now().UnixMilli(), uuid.NewString()[:8], base)
}
