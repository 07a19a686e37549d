package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-trust/internal/domain"
	"auction-trust/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client:  client,
		channel: ModerationEventsChannel,
		log:     log,
	}
}

// SubscribeToModerationEvents blocks, passing every event to handler, until ctx
// is cancelled. Malformed payloads and handler errors are logged and skipped.
func (r *RedisEventSubscriber) SubscribeToModerationEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to moderation events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "event_id", event.ID, "type", event.Type, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEventData(payload string) (*domain.ModerationEvent, error) {
	var event domain.ModerationEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}
	if event.UserID == "" || event.Type == "" {
		return nil, fmt.Errorf("invalid event format: %s", payload)
	}
	return &event, nil
}
