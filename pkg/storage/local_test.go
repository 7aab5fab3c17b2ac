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

func TestLocalStorage_SaveOpenList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	runID := uuid.New()
	info, err := store.Save(ctx, runID, "comparison.json", "application/json", strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.Equal(t, runID, info.RunID)

	_, err = store.Save(ctx, runID, "../escape.csv", "text/csv", strings.NewReader("a,b"))
	require.NoError(t, err)

	rc, got, err := store.Open(ctx, runID, "comparison.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "application/json", got.ContentType)

	files, err := store.List(ctx, runID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "__escape.csv", files[0].Name)
	assert.Equal(t, "comparison.json", files[1].Name)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, runID)
}

func TestLocalStorage_NotFound(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(ctx, uuid.New(), "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.List(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, uuid.New()), ErrNotFound)
}

func TestLocalStorage_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	runID := uuid.New()
	_, err = store.Save(ctx, runID, "r.csv", "text/csv", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, runID))
	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, runs, runID)
}
