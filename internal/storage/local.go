package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"invoicedesk/internal/apperror"
)

// LocalStore writes documents into a single directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "temp_invoices"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) (string, error) {
	ref := objectName(name)
	if err := os.WriteFile(filepath.Join(s.dir, ref), data, 0o640); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	return ref, nil
}

func (s *LocalStore) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("document %s: %w", ref, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return data, nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// path resolves ref inside the store directory. References are plain file names.
func (s *LocalStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("invalid document reference %q: %w", ref, apperror.ErrNotFound)
	}
	return filepath.Join(s.dir, ref), nil
}
