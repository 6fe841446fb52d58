package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// localStorage keeps file bytes in a single directory of the local filesystem
type localStorage struct {
	basePath string
}

// NewLocalStorage creates a new localStorage instance, creating basePath if needed
func NewLocalStorage(basePath string) (*localStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &localStorage{
		basePath: basePath,
	}, nil
}

// generatePath returns the full path of a stored name
func (s *localStorage) generatePath(name string) (string, error) {
	if !IsValidStoredName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.basePath, name), nil
}

// Save writes r under name and returns the size of the persisted file.
// An existing file is never overwritten.
func (s *localStorage) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	path, err := s.generatePath(name)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return 0, ErrAlreadyExists
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	return info.Size(), nil
}

// Open opens a stored file for reading
func (s *localStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := s.generatePath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file. A missing file yields ErrNotFound.
func (s *localStorage) Delete(ctx context.Context, name string) error {
	path, err := s.generatePath(name)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List returns every generated stored file of the upload directory.
// Anything else placed in the directory is left out.
func (s *localStorage) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsGeneratedName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		objects = append(objects, Object{Name: entry.Name(), ModTime: info.ModTime()})
	}
	return objects, nil
}
