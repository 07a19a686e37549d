package services

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/mock"

	"auction-trust/internal/domain"
	"auction-trust/internal/infrastructure/memory"
)

var errUnavailable = errors.New("store unavailable")

// MockDocumentStore mocks the DocumentStore interface
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string, mode domain.ReadMode) (domain.Document, error) {
	args := m.Called(ctx, collection, id, mode)
	doc, _ := args.Get(0).(domain.Document)
	return doc, args.Error(1)
}

func (m *MockDocumentStore) Query(ctx context.Context, collection string, where domain.Predicate, mode domain.ReadMode) ([]domain.Snapshot, error) {
	args := m.Called(ctx, collection, where, mode)
	snapshots, _ := args.Get(0).([]domain.Snapshot)
	return snapshots, args.Error(1)
}

func (m *MockDocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	args := m.Called(ctx, collection, id, fields)
	return args.Error(0)
}

func (m *MockDocumentStore) Set(ctx context.Context, collection, id string, fields domain.Document, merge bool) error {
	args := m.Called(ctx, collection, id, fields, merge)
	return args.Error(0)
}

// MockEventPublisher mocks the EventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishModerationEvent(ctx context.Context, event *domain.ModerationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockLeaderElection mocks the LeaderElection interface
type MockLeaderElection struct {
	mock.Mock
}

func (m *MockLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	args := m.Called(ctx, instanceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	args := m.Called(ctx, instanceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	args := m.Called(ctx, instanceID)
	return args.Error(0)
}

// stubBlockChecker answers IsBlocked from a fixed set of unordered pairs.
type stubBlockChecker struct {
	pairs map[[2]string]bool
	calls int
}

func (s *stubBlockChecker) IsBlocked(_ context.Context, a, b string) bool {
	s.calls++
	return s.pairs[[2]string{a, b}] || s.pairs[[2]string{b, a}]
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seed(store *memory.DocumentStore, collection, id string, doc domain.Document) {
	if err := store.Set(context.Background(), collection, id, doc, false); err != nil {
		panic(err)
	}
}

// approvedUser is a profile that passes every user check at testNow.
func approvedUser() domain.Document {
	return domain.Document{
		domain.FieldVerificationStatus:    string(domain.VerificationApproved),
		domain.FieldBiddingApprovalStatus: string(domain.BiddingApproved),
		domain.FieldAccountCreatedAt:      domain.Timestamp(testNow.Add(-30 * 24 * time.Hour)),
		domain.FieldPostsCount:            1,
		domain.FieldMessagesCount:         0,
		domain.FieldFailedBidsCount:       0,
	}
}
