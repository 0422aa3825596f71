package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreUploadAndServe(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "https://share.example")
	require.NoError(t, err)

	url, size, err := store.Upload(context.Background(), "abc123.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	assert.Equal(t, "https://share.example/v1/files/abc123.txt", url)

	path, err := store.Path("abc123.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDiskStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		_, _, err := store.Upload(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrBadKey, "key %q", key)
		_, err = store.Path(key)
		assert.ErrorIs(t, err, ErrBadKey, "key %q", key)
	}
}

func TestDiskStoreDeleteIsTolerant(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "")
	require.NoError(t, err)

	_, _, err = store.Upload(context.Background(), "gone.bin", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "gone.bin"))
	_, statErr := os.Stat(filepath.Join(dir, "gone.bin"))
	assert.True(t, os.IsNotExist(statErr))

	// Deleting again is not an error; room teardown may retry.
	assert.NoError(t, store.Delete(context.Background(), "gone.bin"))
}
