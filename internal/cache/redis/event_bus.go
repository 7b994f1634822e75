package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/redis/go-redis/v9"
)

// defaultStreamMaxLen bounds each stream via XADD MAXLEN ~.
const defaultStreamMaxLen int64 = 10_000

// EventBus implements domain.EventBus with Pub/Sub for live fan-out and
// Streams for a bounded replayable log. Channel and stream names are
// namespaced under the client prefix.
type EventBus struct {
	c      *Client
	maxLen int64
}

// NewEventBus creates an EventBus. maxLen <= 0 uses the default bound.
func NewEventBus(c *Client, maxLen int64) *EventBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &EventBus{c: c, maxLen: maxLen}
}

// Publish sends payload on the namespaced channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.c.rdb.Publish(ctx, b.c.key("events", channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Append adds payload to the stream and returns the entry id.
func (b *EventBus) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	id, err := b.c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.c.key("stream", stream),
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return id, nil
}

// ReadAfter returns up to count entries with ids strictly after lastID
// ("0" reads from the start). Needs Redis 6.2+ for exclusive ranges.
func (b *EventBus) ReadAfter(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "" {
		lastID = "0"
	}
	res, err := b.c.rdb.XRangeN(ctx, b.c.key("stream", stream), "("+lastID, "+", int64(count)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}
	return toStreamMessages(res), nil
}

func toStreamMessages(entries []redis.XMessage) []domain.StreamMessage {
	out := make([]domain.StreamMessage, 0, len(entries))
	for _, e := range entries {
		switch v := e.Values["payload"].(type) {
		case string:
			out = append(out, domain.StreamMessage{ID: e.ID, Payload: []byte(v)})
		case []byte:
			out = append(out, domain.StreamMessage{ID: e.ID, Payload: v})
		}
	}
	return out
}

var _ domain.EventBus = (*EventBus)(nil)
