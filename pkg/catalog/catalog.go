// Package catalog loads, validates and seeds the form catalog file.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/forms"
	"dynamic-forms/internal/models"

	"github.com/spf13/afero"
)

func Load(path string) (*Catalog, error) {
	return LoadFs(afero.NewOsFs(), path)
}

func LoadFs(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Empty returns a catalog holding only the default categories.
func Empty() *Catalog {
	return &Catalog{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Categories:  append([]string(nil), models.Categories...),
		Forms:       []Entry{},
	}
}

// SaveFs writes cat as indented JSON, creating parent directories.
func SaveFs(fs afero.Fs, path string, cat *Catalog) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// Add appends e after validating it, and bumps LastUpdated.
func (c *Catalog) Add(e Entry) error {
	for _, existing := range c.Forms {
		if existing.Key == e.Key {
			return fmt.Errorf("form with key %s already exists", e.Key)
		}
	}
	if err := validateEntry(e); err != nil {
		return err
	}
	c.Forms = append(c.Forms, e)
	c.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Validate checks every entry with the same rules as the forms API and
// rejects duplicate keys or names.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	keys := map[string]bool{}
	names := map[string]bool{}
	for _, e := range c.Forms {
		if keys[e.Key] {
			return fmt.Errorf("duplicate form key: %s", e.Key)
		}
		if names[e.Name] {
			return fmt.Errorf("duplicate form name: %s", e.Name)
		}
		keys[e.Key] = true
		names[e.Name] = true

		if err := validateEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// HasCategory reports whether name is one of the catalog's categories.
func (c *Catalog) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}

func validateEntry(e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("form missing required field: key")
	}
	if err := forms.Check(e.Definition()); err != nil {
		return fmt.Errorf("form %s: %w", e.Key, err)
	}
	return nil
}

// FormCreator is the subset of the form service used for seeding.
type FormCreator interface {
	List(ctx context.Context) ([]*models.FormDefinition, error)
	Create(ctx context.Context, def *models.FormDefinition) (*models.FormDefinition, error)
}

// Seed creates every catalog form whose name is not already taken and
// returns how many were created.
func Seed(ctx context.Context, cat *Catalog, svc FormCreator, log logger.Logger) (int, error) {
	existing, err := svc.List(ctx)
	if err != nil {
		return 0, err
	}
	taken := make(map[string]bool, len(existing))
	for _, f := range existing {
		taken[f.Name] = true
	}

	created := 0
	for _, e := range cat.Forms {
		if taken[e.Name] {
			continue
		}
		form, err := svc.Create(ctx, e.Definition())
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", e.Key, err)
		}
		taken[e.Name] = true
		created++
		log.Info("seeded catalog form", map[string]interface{}{
			"key":    e.Key,
			"formId": form.ID,
		})
	}
	return created, nil
}

// IsNotExist reports whether err means the catalog file is missing.
func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}
