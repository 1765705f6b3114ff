package streams

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const readBlock = 5 * time.Second

// Run follows the stream from its current tail and relays each entry to the
// local subscribers of its group. It blocks until ctx is done.
func (l *RedisLayer) Run(ctx context.Context) error {
	lastID := "$"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := l.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{StreamChatEvents, lastID},
			Count:   100,
			Block:   readBlock,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Blocking reads time out on an idle stream; that is not an error.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			l.log.Error("Failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				l.relay(message)
			}
		}
	}
}
