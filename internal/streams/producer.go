package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLayer publishes group events to a Redis stream and relays entries read
// back from it to local subscribers. Run must be running for delivery.
type RedisLayer struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger
}

// NewRedisLayer connects to redisURL.
func NewRedisLayer(redisURL string, log *slog.Logger) (*RedisLayer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	// Read timeout must exceed the XRead Block duration to avoid spurious
	// i/o timeouts on an idle stream.
	opts.ReadTimeout = 2 * readBlock

	if log == nil {
		log = slog.Default()
	}
	return &RedisLayer{rdb: redis.NewClient(opts), hub: NewHub(log), log: log}, nil
}

// Publish appends the event to the shared stream.
func (l *RedisLayer) Publish(ctx context.Context, group string, payload []byte) error {
	values, err := encodeEvent(Event{Group: group, Payload: payload})
	if err != nil {
		return err
	}

	result := l.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamChatEvents,
		MaxLen: streamMaxLen,
		Approx: true,
		ID:     "*",
		Values: values,
	})
	if result.Err() != nil {
		return fmt.Errorf("failed to publish to stream: %w", result.Err())
	}
	return nil
}

// Subscribe joins group on this instance.
func (l *RedisLayer) Subscribe(group string) *Subscription {
	return l.hub.Subscribe(group)
}

// Close closes the Redis connection.
func (l *RedisLayer) Close() error {
	return l.rdb.Close()
}

func encodeEvent(ev Event) (map[string]interface{}, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return map[string]interface{}{
		"payload":        string(payload),
		"published_at":   time.Now().Unix(),
		"schema_version": SchemaVersionV1,
	}, nil
}
