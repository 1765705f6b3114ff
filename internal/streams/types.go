// Package streams is the channel layer that fans assistant responses out to
// every socket watching a conversation. A single process uses the in-memory
// Hub; with Redis configured, events travel through a Redis stream so sockets
// on any instance receive them.
package streams

import "context"

// StreamChatEvents is the Redis stream carrying group events.
const StreamChatEvents = "chat:events"

// SchemaVersionV1 tags every stream entry.
const SchemaVersionV1 = "v1"

// streamMaxLen bounds the stream; readers only follow new entries.
const streamMaxLen = 10000

// Event is one message delivered to a group.
type Event struct {
	Group   string `json:"group"`
	Payload []byte `json:"payload"`
}

// Layer publishes to and subscribes on named groups.
type Layer interface {
	Publish(ctx context.Context, group string, payload []byte) error
	Subscribe(group string) *Subscription
}
