package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"circle-chat/pkg/events"

	"github.com/redis/go-redis/v9"
)

// Publisher forwards session events to redis so sockets held by another instance get them.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(ctx, channel, payload).Err()
}
