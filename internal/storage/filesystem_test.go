package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_WriteAndSanitize(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Write(ctx, "videos/a1.mp4", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "videos/a1.mp4", key)

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "videos", "a1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestFileStore_RejectsBadInput(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Write(ctx, "../escape.mp4", []byte("data"))
	assert.Error(t, err)

	_, err = store.Write(ctx, "", []byte("data"))
	assert.Error(t, err)

	_, err = store.Write(ctx, "videos/empty.mp4", nil)
	assert.Error(t, err)
}
