package redis

import (
	"context"
	"encoding/json"

	"auction-trust/internal/domain"

	"github.com/go-redis/redis/v8"
)

const ModerationEventsChannel = "moderation_events"

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client, channel: ModerationEventsChannel}
}

func (r *EventPublisherImpl) PublishModerationEvent(ctx context.Context, event *domain.ModerationEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, eventData).Err()
}
