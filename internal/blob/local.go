package blob

import (
	"context"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalStore keeps blobs as files under Root on an afero filesystem.
type LocalStore struct {
	fs   afero.Fs
	root string
}

// NewLocalStore returns a store on the OS filesystem.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreFs(afero.NewOsFs(), root)
}

func NewLocalStoreFs(fs afero.Fs, root string) *LocalStore {
	return &LocalStore{fs: fs, root: root}
}

func (s *LocalStore) Put(_ context.Context, name string, content []byte, _ string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, filepath.Join(s.root, name), content, 0o644)
}

func (s *LocalStore) Get(_ context.Context, name string) (io.ReadCloser, string, error) {
	if err := CheckName(name); err != nil {
		return nil, "", ErrNotFound
	}
	f, err := s.fs.Open(filepath.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return f, mime.TypeByExtension(path.Ext(name)), nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.root, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
