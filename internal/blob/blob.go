// Package blob stores attachment content under a flat namespace of stored
// names. Drivers: local filesystem (afero), S3 and MinIO.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Get for unknown names.
var ErrNotFound = errors.New("blob not found")

// Store is the storage collaborator behind the attachment binder and the
// /uploads handler.
type Store interface {
	Put(ctx context.Context, name string, content []byte, contentType string) error
	Get(ctx context.Context, name string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, name string) error
}

// CheckName rejects names that would escape the store's namespace.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid blob name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || path.Base(name) != name {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
