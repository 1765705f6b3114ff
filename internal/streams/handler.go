package streams

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// decodeEvent extracts the event from a stream entry.
func decodeEvent(message redis.XMessage) (Event, error) {
	raw, ok := message.Values["payload"].(string)
	if !ok {
		return Event{}, fmt.Errorf("message %s has no payload", message.ID)
	}
	if v, _ := message.Values["schema_version"].(string); v != "" && v != SchemaVersionV1 {
		return Event{}, fmt.Errorf("message %s has unsupported schema version %q", message.ID, v)
	}

	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event %s: %w", message.ID, err)
	}
	if ev.Group == "" {
		return Event{}, fmt.Errorf("message %s has no group", message.ID)
	}
	return ev, nil
}

func (l *RedisLayer) relay(message redis.XMessage) {
	ev, err := decodeEvent(message)
	if err != nil {
		l.log.Error("Skipping stream entry", "message_id", message.ID, "error", err)
		return
	}
	l.hub.deliver(ev.Group, ev.Payload)
}
