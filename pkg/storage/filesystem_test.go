package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUploadOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	fileID, err := store.Upload(context.Background(), []byte("hello"), UploadMeta{FileName: "Notes.PDF", MemoID: "memo-1"})
	require.NoError(t, err)
	assert.Contains(t, fileID, ".pdf")
	assert.True(t, store.Exists(fileID))

	f, err := store.Open(fileID)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close() //nolint:errcheck
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(context.Background(), fileID))
	assert.False(t, store.Exists(fileID))
	require.NoError(t, store.Delete(context.Background(), fileID))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidFileID)
	require.ErrorIs(t, store.Delete(context.Background(), "/tmp/x"), ErrInvalidFileID)
}

func TestLocalStorageUploadCancelled(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, []byte("x"), UploadMeta{FileName: "a.txt"})
	require.ErrorIs(t, err, context.Canceled)
}
