package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := store.Write(ctx, "a/b.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "payload")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.FileExists(t, filepath.Join(root, "a", "b.txt"))

	r, err := store.Read(ctx, "a/b.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "payload", string(data))

	require.NoError(t, store.Delete(ctx, "a/b.txt"))
	require.NoError(t, store.Delete(ctx, "a/b.txt"))

	_, err = store.Read(ctx, "a/b.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
