package domain

import (
	"context"
)

// DocumentStore is the asynchronous key/document store the trust engine runs on.
// Every method may fail with a transport error; Get and Update report a missing
// document with ErrDocumentNotFound.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string, mode ReadMode) (Document, error)
	Query(ctx context.Context, collection string, where Predicate, mode ReadMode) ([]Snapshot, error)
	Update(ctx context.Context, collection, id string, fields Document) error
	Set(ctx context.Context, collection, id string, fields Document, merge bool) error
}

// Event interfaces
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, event *ModerationEvent) error
}

type EventSubscriber interface {
	SubscribeToModerationEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *ModerationEvent) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
