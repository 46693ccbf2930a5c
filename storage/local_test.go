package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	sessionID := uuid.New()
	path, err := store.Upload(context.Background(), sessionID, "identified_sources.json", strings.NewReader(`{"Federal Laws": []}`))
	require.NoError(t, err)
	assert.Contains(t, path, sessionID.String())

	reader, err := store.Download(context.Background(), path)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, `{"Federal Laws": []}`, string(data))
}

func TestLocalStorageOverwritesSameArtifact(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	sessionID := uuid.New()
	first, err := store.Upload(context.Background(), sessionID, "applicable_laws.json", strings.NewReader("old"))
	require.NoError(t, err)

	second, err := store.Upload(context.Background(), sessionID, "applicable_laws.json", strings.NewReader("new"))
	require.NoError(t, err)

	// Re-running a search writes to the same path, replacing the artifact.
	assert.Equal(t, first, second)

	reader, err := store.Download(context.Background(), second)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestLocalStorageSessionsDoNotCollide(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	pathA, err := store.Upload(context.Background(), uuid.New(), "identified_sources.json", strings.NewReader("a"))
	require.NoError(t, err)
	pathB, err := store.Upload(context.Background(), uuid.New(), "identified_sources.json", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, pathA, pathB)
}

func TestLocalStorageDownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "no/such/artifact.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalStorageDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	sessionID := uuid.New()
	path, err := store.Upload(context.Background(), sessionID, "identified_sources.json", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), path))
	require.NoError(t, store.Delete(context.Background(), path))

	_, err = store.Download(context.Background(), path)
	assert.Error(t, err)
}

func TestGenerateStoragePathSanitizesFilename(t *testing.T) {
	sessionID := uuid.New()
	path := generateStoragePath(sessionID, "my report/../draft.json")

	// Separators inside the filename are flattened, so the path always has
	// exactly shard/session/filename segments.
	assert.Equal(t, 2, strings.Count(path, "/"))
	assert.Contains(t, path, sessionID.String())
	assert.NotContains(t, path, " ")
}
