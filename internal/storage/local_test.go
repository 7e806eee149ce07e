package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(Config{BasePath: t.TempDir(), BaseURL: "http://localhost/files"})
	require.NoError(t, err)
	return store
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	err := store.Save(ctx, "audio/job-1.mp3", strings.NewReader("fake audio bytes"), "audio/mpeg")
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "audio/job-1.mp3")
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := store.GetSize(ctx, "audio/job-1.mp3")
	require.NoError(t, err)
	assert.EqualValues(t, len("fake audio bytes"), size)

	reader, err := store.Get(ctx, "audio/job-1.mp3")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "fake audio bytes", string(data))
}

func TestLocalStorageDelete(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "audio/job-1.mp3", strings.NewReader("x"), "audio/mpeg"))
	require.NoError(t, store.Delete(ctx, "audio/job-1.mp3"))

	exists, err := store.Exists(ctx, "audio/job-1.mp3")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing file is not an error; job cleanup runs on every
	// exit path and may race an earlier delete.
	assert.NoError(t, store.Delete(ctx, "audio/job-1.mp3"))
}

func TestLocalStorageURL(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	url, err := store.GetURL(ctx, "outputs/run-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/files/outputs/run-1.pdf", url)

	signed, err := store.GetSignedURL(ctx, "outputs/run-1.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, url, signed)
}
