package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trust/internal/domain"
)

func TestDocumentStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()
	require.NoError(t, store.Set(ctx, "users", "u1", domain.Document{"a": 1}, false))

	doc, err := store.Get(ctx, "users", "u1", domain.ReadDefault)
	require.NoError(t, err)
	doc["a"] = 99

	again, err := store.Get(ctx, "users", "u1", domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, 1, again["a"])

	_, err = store.Get(ctx, "users", "missing", domain.ReadDefault)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()
	require.NoError(t, store.Set(ctx, "users", "u1", domain.Document{"a": 1, "b": 2}, false))

	require.NoError(t, store.Update(ctx, "users", "u1", domain.Document{"b": 3, "c": 4}))

	doc, err := store.Get(ctx, "users", "u1", domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, domain.Document{"a": 1, "b": 3, "c": 4}, doc)

	assert.ErrorIs(t, store.Update(ctx, "users", "missing", domain.Document{"a": 1}), domain.ErrDocumentNotFound)
}

func TestDocumentStore_SetMergeAndReplace(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	require.NoError(t, store.Set(ctx, "users", "u1", domain.Document{"a": 1}, true))
	require.NoError(t, store.Set(ctx, "users", "u1", domain.Document{"b": 2}, true))

	doc, err := store.Get(ctx, "users", "u1", domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, domain.Document{"a": 1, "b": 2}, doc)

	require.NoError(t, store.Set(ctx, "users", "u1", domain.Document{"c": 3}, false))

	doc, err = store.Get(ctx, "users", "u1", domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, domain.Document{"c": 3}, doc)
}

func TestDocumentStore_Query(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()
	require.NoError(t, store.Set(ctx, "blocks", "e2", domain.Document{"blockerId": "a", "blockedUserId": "b"}, false))
	require.NoError(t, store.Set(ctx, "blocks", "e1", domain.Document{"blockerId": "a", "blockedUserId": "c"}, false))
	require.NoError(t, store.Set(ctx, "blocks", "e3", domain.Document{"blockerId": "c", "blockedUserId": "a"}, false))

	snapshots, err := store.Query(ctx, "blocks", domain.Predicate{"blockerId": "a"}, domain.ReadStrong)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "e1", snapshots[0].ID)
	assert.Equal(t, "e2", snapshots[1].ID)

	snapshots, err = store.Query(ctx, "blocks", domain.Predicate{"blockerId": "a", "blockedUserId": "b"}, domain.ReadStrong)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "e2", snapshots[0].ID)

	snapshots, err = store.Query(ctx, "empty", domain.Predicate{}, domain.ReadStrong)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestDocumentStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewDocumentStore()

	_, err := store.Get(ctx, "users", "u1", domain.ReadStrong)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Set(ctx, "users", "u1", domain.Document{}, false), context.Canceled)
}
