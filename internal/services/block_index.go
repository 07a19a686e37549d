package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"auction-trust/internal/domain"
	"auction-trust/internal/observability/metrics"
	"auction-trust/pkg/logger"

	"github.com/google/uuid"
)

// BlockChecker is the part of the block index the eligibility evaluator needs.
type BlockChecker interface {
	IsBlocked(ctx context.Context, userA, userB string) bool
}

// BlockRelationIndex resolves the directed blocks collection into the symmetric
// "these two users are blocked" relation.
//
// Lookups fail open: when the store cannot be reached a pair is reported as not
// blocked and the failure is logged.
type BlockRelationIndex struct {
	store domain.DocumentStore
	log   logger.Logger
	now   func() time.Time
}

func NewBlockRelationIndex(store domain.DocumentStore, log logger.Logger) *BlockRelationIndex {
	return &BlockRelationIndex{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (b *BlockRelationIndex) SetClock(now func() time.Time) {
	b.now = now
}

// IsBlocked reports whether a block edge exists in either direction. Both lookups
// are strong reads: a cached "not blocked" could hide a fresh block.
func (b *BlockRelationIndex) IsBlocked(ctx context.Context, userA, userB string) bool {
	if userA == "" || userB == "" {
		return false
	}

	forward, forwardErr := b.hasEdge(ctx, userA, userB)
	if forwardErr == nil && forward {
		metrics.BlockChecksTotal.WithLabelValues("blocked").Inc()
		return true
	}

	reverse, reverseErr := b.hasEdge(ctx, userB, userA)
	if reverseErr == nil && reverse {
		metrics.BlockChecksTotal.WithLabelValues("blocked").Inc()
		return true
	}

	if forwardErr != nil || reverseErr != nil {
		b.log.Error("Block check failed, treating users as not blocked",
			"user_a", userA,
			"user_b", userB,
			"forward_error", errString(forwardErr),
			"reverse_error", errString(reverseErr))
		metrics.BlockChecksTotal.WithLabelValues("error").Inc()
		return false
	}

	metrics.BlockChecksTotal.WithLabelValues("clear").Inc()
	return false
}

func (b *BlockRelationIndex) hasEdge(ctx context.Context, blockerID, blockedID string) (bool, error) {
	snapshots, err := b.store.Query(ctx, domain.CollectionBlocks, domain.Predicate{
		domain.FieldBlockerID:     blockerID,
		domain.FieldBlockedUserID: blockedID,
	}, domain.ReadStrong)
	if err != nil {
		return false, err
	}
	return len(snapshots) > 0, nil
}

// BlockedByUser returns the ids userID has blocked.
func (b *BlockRelationIndex) BlockedByUser(ctx context.Context, userID string) []string {
	return b.collect(ctx, userID, domain.FieldBlockerID, domain.FieldBlockedUserID)
}

// BlockingUser returns the ids that have blocked userID.
func (b *BlockRelationIndex) BlockingUser(ctx context.Context, userID string) []string {
	return b.collect(ctx, userID, domain.FieldBlockedUserID, domain.FieldBlockerID)
}

// AllRelatedBlocks is the union of BlockedByUser and BlockingUser, used to filter
// listings and conversations out of a feed.
func (b *BlockRelationIndex) AllRelatedBlocks(ctx context.Context, userID string) []string {
	return unique(append(b.BlockedByUser(ctx, userID), b.BlockingUser(ctx, userID)...))
}

func (b *BlockRelationIndex) collect(ctx context.Context, userID, matchField, otherField string) []string {
	if userID == "" {
		return []string{}
	}

	snapshots, err := b.store.Query(ctx, domain.CollectionBlocks, domain.Predicate{
		matchField: userID,
	}, domain.ReadStrong)
	if err != nil {
		b.log.Error("Failed to list block relations",
			"user_id", userID,
			"field", matchField,
			"error", err)
		return []string{}
	}

	ids := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		if other := s.Data.String(otherField); other != "" {
			ids = append(ids, other)
		}
	}
	return unique(ids)
}

// Block records that blockerID blocks blockedUserID. Blocking twice is a no-op.
func (b *BlockRelationIndex) Block(ctx context.Context, blockerID, blockedUserID string) error {
	blockerID = strings.TrimSpace(blockerID)
	blockedUserID = strings.TrimSpace(blockedUserID)
	if blockerID == "" || blockedUserID == "" || blockerID == blockedUserID {
		return domain.ErrInvalidBlock
	}

	exists, err := b.hasEdge(ctx, blockerID, blockedUserID)
	if err != nil {
		return err
	}
	if exists {
		b.log.Debug("Block already exists", "blocker_id", blockerID, "blocked_user_id", blockedUserID)
		return nil
	}

	edge := domain.BlockEdge{
		ID:            uuid.NewString(),
		BlockerID:     blockerID,
		BlockedUserID: blockedUserID,
		CreatedAt:     b.now(),
	}
	if err := b.store.Set(ctx, domain.CollectionBlocks, edge.ID, edge.Document(), false); err != nil {
		return err
	}

	b.log.Info("User blocked", "blocker_id", blockerID, "blocked_user_id", blockedUserID, "edge_id", edge.ID)
	return nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
