package memory

import (
	"context"
	"sort"
	"sync"

	"auction-trust/internal/domain"
)

// DocumentStore keeps collections in process memory. It backs local runs and the
// service tests. ReadMode is accepted and ignored: every read is authoritative.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]domain.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]domain.Document),
	}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string, _ domain.ReadMode) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

// Query returns matching documents ordered by id.
func (s *DocumentStore) Query(ctx context.Context, collection string, where domain.Predicate, _ domain.ReadMode) ([]domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Snapshot
	for id, doc := range s.collections[collection] {
		if where.Matches(doc) {
			out = append(out, domain.Snapshot{ID: id, Data: doc.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Merge(fields)
	return nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, fields domain.Document, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]domain.Document)
		s.collections[collection] = docs
	}

	if existing, ok := docs[id]; ok && merge {
		existing.Merge(fields)
		return nil
	}
	docs[id] = fields.Clone()
	return nil
}
