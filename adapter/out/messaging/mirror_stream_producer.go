// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"mirror_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamThreadSynced = "thread:synced"
)

// RedisProducer implements out.EventPublisher using Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// PublishThreadSynced publishes a thread synced event.
func (p *RedisProducer) PublishThreadSynced(ctx context.Context, event *out.ThreadSyncedEvent) error {
	return p.publish(ctx, StreamThreadSynced, event)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

// Ensure RedisProducer implements out.EventPublisher
var _ out.EventPublisher = (*RedisProducer)(nil)
