package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trust/internal/domain"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func snapshotIDs(snapshots []domain.Snapshot) []string {
	ids := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestDocumentStore_UpdateMissingDocument(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	store := NewDocumentStore(client)

	err := store.Update(ctx, domain.CollectionUsers, "ghost", domain.Document{"biddingRejectionCount": 1})

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.False(t, mr.Exists(documentKey(domain.CollectionUsers, "ghost")))
	_, err = store.Get(ctx, domain.CollectionUsers, "ghost", domain.ReadStrong)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentStore_UpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewDocumentStore(client)

	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", domain.Document{
		domain.FieldVerificationStatus: "pending",
		domain.FieldPostsCount:         2,
	}, false))

	rejectedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cooldownEnd := rejectedAt.Add(72 * time.Hour)
	require.NoError(t, store.Update(ctx, domain.CollectionUsers, "u1", domain.Document{
		domain.FieldVerificationStatus: domain.StatusRejected,
		"verificationRejectionCount":   1,
		"verificationCooldownEnd":      domain.Timestamp(cooldownEnd),
		"verificationRejectedAt":       domain.Timestamp(rejectedAt),
	}))

	doc, err := store.Get(ctx, domain.CollectionUsers, "u1", domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, "rejected", doc.String(domain.FieldVerificationStatus))
	assert.Equal(t, 2, doc.Int(domain.FieldPostsCount), "untouched fields survive")
	assert.Equal(t, 1, doc.Int("verificationRejectionCount"))

	end, ok := doc.Time("verificationCooldownEnd")
	require.True(t, ok)
	assert.True(t, end.Equal(cooldownEnd), "got %v", end)
	at, ok := doc.Time("verificationRejectedAt")
	require.True(t, ok)
	assert.True(t, at.Equal(rejectedAt), "got %v", at)
}

func TestDocumentStore_SetReplaceAndMerge(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewDocumentStore(client)

	require.NoError(t, store.Set(ctx, "posts", "L1", domain.Document{"minimumBid": 100, "bidIncrement": 10}, false))

	require.NoError(t, store.Set(ctx, "posts", "L1", domain.Document{"minimumBid": 50}, true))
	doc, err := store.Get(ctx, "posts", "L1", domain.ReadDefault)
	require.NoError(t, err)
	assert.Equal(t, 50.0, doc.FloatOr("minimumBid", 0))
	assert.Equal(t, 10.0, doc.FloatOr("bidIncrement", 0), "merge keeps other fields")

	require.NoError(t, store.Set(ctx, "posts", "L1", domain.Document{"minimumBid": 75}, false))
	doc, err = store.Get(ctx, "posts", "L1", domain.ReadDefault)
	require.NoError(t, err)
	assert.Equal(t, 75.0, doc.FloatOr("minimumBid", 0))
	_, present := doc["bidIncrement"]
	assert.False(t, present, "replace drops other fields")

	require.NoError(t, store.Set(ctx, "posts", "L2", domain.Document{"minimumBid": 5}, true))
	doc, err = store.Get(ctx, "posts", "L2", domain.ReadDefault)
	require.NoError(t, err)
	assert.Equal(t, 5.0, doc.FloatOr("minimumBid", 0), "merge creates a missing document")
}

func TestDocumentStore_QueryUsesIndexes(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewDocumentStore(client)

	edges := map[string][2]string{
		"e1": {"alice", "bob"},
		"e2": {"alice", "carol"},
		"e3": {"bob", "alice"},
	}
	for id, e := range edges {
		require.NoError(t, store.Set(ctx, domain.CollectionBlocks, id, domain.Document{
			domain.FieldBlockerID:     e[0],
			domain.FieldBlockedUserID: e[1],
		}, false))
	}

	members, err := client.SMembers(ctx, indexKey(domain.CollectionBlocks, domain.FieldBlockerID, "alice")).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e2"}, members)

	snapshots, err := store.Query(ctx, domain.CollectionBlocks, domain.Predicate{
		domain.FieldBlockerID:     "alice",
		domain.FieldBlockedUserID: "bob",
	}, domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, snapshotIDs(snapshots))

	snapshots, err = store.Query(ctx, domain.CollectionBlocks, domain.Predicate{
		domain.FieldBlockedUserID: "alice",
	}, domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, snapshotIDs(snapshots))

	snapshots, err = store.Query(ctx, domain.CollectionBlocks, domain.Predicate{
		domain.FieldBlockerID: "nobody",
	}, domain.ReadStrong)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestDocumentStore_IndexFollowsStatusChanges(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewDocumentStore(client)

	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", domain.Document{}, false))
	require.NoError(t, store.Update(ctx, domain.CollectionUsers, "u1", domain.Document{
		domain.FieldBiddingApprovalStatus: domain.StatusRejected,
	}))

	rejected := domain.Predicate{domain.FieldBiddingApprovalStatus: domain.StatusRejected}
	snapshots, err := store.Query(ctx, domain.CollectionUsers, rejected, domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, snapshotIDs(snapshots))

	require.NoError(t, store.Update(ctx, domain.CollectionUsers, "u1", domain.Document{
		domain.FieldBiddingApprovalStatus: domain.StatusApproved,
	}))

	snapshots, err = store.Query(ctx, domain.CollectionUsers, rejected, domain.ReadStrong)
	require.NoError(t, err)
	assert.Empty(t, snapshots)

	members, err := client.SMembers(ctx, indexKey(domain.CollectionUsers, domain.FieldBiddingApprovalStatus, "rejected")).Result()
	require.NoError(t, err)
	assert.Empty(t, members, "old index entry removed")

	// Replacing without the field drops it from every index.
	require.NoError(t, store.Set(ctx, domain.CollectionUsers, "u1", domain.Document{domain.FieldPostsCount: 1}, false))
	members, err = client.SMembers(ctx, indexKey(domain.CollectionUsers, domain.FieldBiddingApprovalStatus, "approved")).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestDocumentStore_QueryOnUnindexedFieldScans(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewDocumentStore(client)

	require.NoError(t, store.Set(ctx, "posts", "L1", domain.Document{"userId": "S"}, false))
	require.NoError(t, store.Set(ctx, "posts", "L2", domain.Document{"userId": "T"}, false))

	snapshots, err := store.Query(ctx, "posts", domain.Predicate{"userId": "T"}, domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, []string{"L2"}, snapshotIDs(snapshots))
}

func TestDocumentStore_ReindexPicksUpForeignWrites(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewDocumentStore(client)

	// Written by another producer, so no index entry exists yet.
	require.NoError(t, client.Set(ctx, documentKey(domain.CollectionBlocks, "e9"),
		`{"blockerId":"dave","blockedUserId":"erin"}`, 0).Err())
	require.NoError(t, client.SAdd(ctx, collectionKey(domain.CollectionBlocks), "e9").Err())

	where := domain.Predicate{domain.FieldBlockerID: "dave"}
	snapshots, err := store.Query(ctx, domain.CollectionBlocks, where, domain.ReadStrong)
	require.NoError(t, err)
	assert.Empty(t, snapshots)

	n, err := store.Reindex(ctx, domain.CollectionBlocks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snapshots, err = store.Query(ctx, domain.CollectionBlocks, where, domain.ReadStrong)
	require.NoError(t, err)
	assert.Equal(t, []string{"e9"}, snapshotIDs(snapshots))
}
