package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension_Directory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0755))
	for _, name := range []string{"b.yaml", "a.yml", "nested/c.yaml", "ignored.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0644))
	}

	files, err := FindFilesByExtension(root, ".yaml", ".yml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.yml"),
		filepath.Join(root, "b.yaml"),
		filepath.Join(root, "nested", "c.yaml"),
	}, files)
}

func TestFindFilesByExtension_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	files, err := FindFilesByExtension(path, ".yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	_, err = FindFilesByExtension(path, ".hcl")
	require.Error(t, err)
}

func TestFindFilesByExtension_MissingPath(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "nope"), ".yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":2}`), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.bin")

	err := WriteAtomic(path, 0644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("connection reset")
	})
	require.EqualError(t, err, "connection reset")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
