package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalPutObjectWritesAndReturnsURI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewLocal(LocalConfig{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "planner/raw_1.txt", "text/plain", []byte("raw output"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "planner", "raw_1.txt"))
	require.NoError(t, err)
	require.Equal(t, "raw output", string(data))
}

func TestLocalPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(LocalConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.txt", "text/plain", []byte("x"))
	require.Error(t, err)
}

func TestNewLocalCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "blobs")
	_, err := NewLocal(LocalConfig{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewLocalRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocal(LocalConfig{BaseDir: "  "})
	require.Error(t, err)
}
