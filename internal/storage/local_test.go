package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingReader returns some bytes then an error
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestNewLocalStorage_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, s.basePath)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	size, err := s.Save(ctx, "20240101120000_abcd1234_report.pdf", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	rc, err := s.Open(ctx, "20240101120000_abcd1234_report.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, s.Delete(ctx, "20240101120000_abcd1234_report.pdf"))

	_, err = s.Open(ctx, "20240101120000_abcd1234_report.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "20240101120000_abcd1234_report.pdf"), ErrNotFound)
}

func TestLocalStorage_Save_NeverOverwrites(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Save(ctx, "same.txt", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = s.Save(ctx, "same.txt", strings.NewReader("second"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	rc, err := s.Open(ctx, "same.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "first", string(data))
}

func TestLocalStorage_Save_RemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "broken.txt", &failingReader{})
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "broken.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalStorage_RejectsInvalidNames(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../escape.txt", "a/b.txt", `a\b.txt`} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(ctx, name, strings.NewReader("x"))
			assert.ErrorIs(t, err, ErrInvalidName)

			_, err = s.Open(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName)

			assert.ErrorIs(t, s.Delete(ctx, name), ErrInvalidName)
		})
	}
}

func TestLocalStorage_List(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Save(ctx, "20240101120000_abcd1234_report.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitkeep"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20240101120000_abcd1234_dir"), 0755))

	objects, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "20240101120000_abcd1234_report.pdf", objects[0].Name)
	assert.False(t, objects[0].ModTime.IsZero())

	require.NoError(t, os.RemoveAll(dir))
	_, err = s.List(ctx)
	assert.Error(t, err)
}
