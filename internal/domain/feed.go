package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConnState is the lifecycle state of the live feed connection.
type ConnState int

const (
	ConnIdle ConnState = iota
	ConnConnecting
	ConnOpen
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON snapshots.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PriceUpdate is a single price tick received from the live feed. Updates
// are kept in arrival order; Timestamp is not guaranteed to be monotonic.
type PriceUpdate struct {
	Pair      string          `json:"pair"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"` // unix millis
}

// Time returns Timestamp as a time.Time.
func (u PriceUpdate) Time() time.Time {
	return time.UnixMilli(u.Timestamp)
}

// OrderCompletion is one entry of an order_completed stream event.
type OrderCompletion struct {
	ID     int64       `json:"id"`
	Status OrderStatus `json:"status"`
}

// FeedStatus is a point-in-time view of the live feed connection.
type FeedStatus struct {
	State             ConnState  `json:"state"`
	ReconnectAttempts int        `json:"reconnect_attempts"`
	LastPongAt        *time.Time `json:"last_pong_at,omitempty"`
}
