package cache

import (
	"context"
	"time"

	"auction-trust/internal/domain"
	"auction-trust/pkg/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize bounds the cache when no size is configured.
const DefaultSize = 10000

// Store is a read-through cache in front of another DocumentStore. Only Get with
// ReadDefault is served from the cache; ReadStrong always reaches the backend and
// refreshes the entry. Queries are never cached, which keeps block lookups exact.
//
// Entries live at most ttl and the cache holds at most size documents, evicting the
// least recently used one when full.
type Store struct {
	next    domain.DocumentStore
	log     logger.Logger
	entries *expirable.LRU[string, domain.Document]
}

func NewStore(next domain.DocumentStore, ttl time.Duration, size int, log logger.Logger) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &Store{
		next:    next,
		log:     log,
		entries: expirable.NewLRU[string, domain.Document](size, nil, ttl),
	}
}

func cacheKey(collection, id string) string {
	return collection + "/" + id
}

// Len reports how many documents are cached, including ones whose TTL has passed
// but that have not been purged yet.
func (s *Store) Len() int {
	return s.entries.Len()
}

func (s *Store) Get(ctx context.Context, collection, id string, mode domain.ReadMode) (domain.Document, error) {
	key := cacheKey(collection, id)

	if mode == domain.ReadDefault {
		if doc, ok := s.entries.Get(key); ok {
			return doc.Clone(), nil
		}
	}

	doc, err := s.next.Get(ctx, collection, id, mode)
	if err != nil {
		return nil, err
	}

	s.entries.Add(key, doc.Clone())
	return doc, nil
}

func (s *Store) Query(ctx context.Context, collection string, where domain.Predicate, mode domain.ReadMode) ([]domain.Snapshot, error) {
	return s.next.Query(ctx, collection, where, mode)
}

// Update and Set evict before and after the write: a default read racing the write
// may re-cache the old document in between.
func (s *Store) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	s.Invalidate(collection, id)
	err := s.next.Update(ctx, collection, id, fields)
	s.Invalidate(collection, id)
	return err
}

func (s *Store) Set(ctx context.Context, collection, id string, fields domain.Document, merge bool) error {
	s.Invalidate(collection, id)
	err := s.next.Set(ctx, collection, id, fields, merge)
	s.Invalidate(collection, id)
	return err
}

func (s *Store) Invalidate(collection, id string) {
	s.entries.Remove(cacheKey(collection, id))
}

// HandleModerationEvent evicts the user a moderation decision on another instance
// touched. It matches domain.EventHandler.
func (s *Store) HandleModerationEvent(event *domain.ModerationEvent) error {
	if event == nil || event.UserID == "" {
		return nil
	}
	s.Invalidate(domain.CollectionUsers, event.UserID)
	s.log.Debug("Evicted cached user after moderation event",
		"user_id", event.UserID,
		"type", event.Type,
		"track", event.Track)
	return nil
}
