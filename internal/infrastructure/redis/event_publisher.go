package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"sealed-auction/internal/domain"
)

const eventChannel = "auction_events"

// EventPublisher pushes lifecycle events onto a redis pub/sub channel
// for external consumers (dashboards, notification services). Bid
// contents never travel through it.
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishLifecycleEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, eventChannel, payload).Err()
}
