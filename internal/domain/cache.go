package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache provides fast access to the latest price per pair.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (decimal.Decimal, time.Time, error)
	GetPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error)
}

// StreamMessage is a single entry of a durable event stream.
type StreamMessage struct {
	ID      string `json:"id"`
	Payload []byte `json:"payload"`
}

// EventBus fans feed events out to other processes: a fire-and-forget
// channel plus a bounded durable stream.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Append(ctx context.Context, stream string, payload []byte) (string, error)
	ReadAfter(ctx context.Context, stream, lastID string, count int) ([]StreamMessage, error)
}
