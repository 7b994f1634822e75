package view

import (
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
)

// MovingAverageWindow is the trailing window of the chart's moving average.
const MovingAverageWindow = 5

// Range is a chart time window.
type Range string

const (
	Range1h  Range = "1h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
)

// ParseRange validates a range name.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case Range1h, Range24h, Range7d:
		return r, nil
	}
	return "", fmt.Errorf("view: unknown chart range %q", s)
}

// Duration returns the window length.
func (r Range) Duration() time.Duration {
	switch r {
	case Range1h:
		return time.Hour
	case Range24h:
		return 24 * time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	}
	return 0
}

// ChartPoint is one price with its trailing moving average. MovingAverage is
// null until MovingAverageWindow points have been seen.
type ChartPoint struct {
	Pair          string              `json:"pair"`
	Timestamp     int64               `json:"timestamp"`
	Price         decimal.Decimal     `json:"price"`
	MovingAverage decimal.NullDecimal `json:"moving_average"`
}

// PriceHistory is the append-only sequence of price updates received from
// the feed, in arrival order. When limit is positive the oldest updates are
// dropped beyond it.
type PriceHistory struct {
	limit int

	mu      sync.RWMutex
	updates []domain.PriceUpdate
	latest  map[string]domain.PriceUpdate
}

// NewPriceHistory creates an empty history keeping at most limit updates
// (0 for no limit).
func NewPriceHistory(limit int) *PriceHistory {
	return &PriceHistory{
		limit:  limit,
		latest: make(map[string]domain.PriceUpdate),
	}
}

// Append records u. Out-of-order timestamps are kept as they arrive.
func (h *PriceHistory) Append(u domain.PriceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.updates = append(h.updates, u)
	if h.limit > 0 && len(h.updates) > h.limit {
		drop := len(h.updates) - h.limit
		h.updates = append(h.updates[:0:0], h.updates[drop:]...)
	}
	h.latest[u.Pair] = u
}

// Len returns the number of updates held.
func (h *PriceHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.updates)
}

// Updates returns a copy of the sequence.
func (h *PriceHistory) Updates() []domain.PriceUpdate {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneSlice(h.updates)
}

// Latest returns the most recently received update for pair.
func (h *PriceHistory) Latest(pair string) (domain.PriceUpdate, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	u, ok := h.latest[pair]
	return u, ok
}

// LatestAll returns the most recent update per pair.
func (h *PriceHistory) LatestAll() map[string]domain.PriceUpdate {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]domain.PriceUpdate, len(h.latest))
	for k, v := range h.latest {
		out[k] = v
	}
	return out
}

// Chart derives chart data for r as seen at now. An empty pair charts every
// update. The moving average is computed over the pair's full sequence
// before the range filter, so the first in-range point may already carry an
// average.
func (h *PriceHistory) Chart(pair string, r Range, now time.Time) []ChartPoint {
	h.mu.RLock()
	series := make([]domain.PriceUpdate, 0, len(h.updates))
	for _, u := range h.updates {
		if pair == "" || u.Pair == pair {
			series = append(series, u)
		}
	}
	h.mu.RUnlock()

	return BuildChart(series, r, now)
}

// BuildChart attaches the moving average to every update by sequence index
// and then drops points older than now - r.
func BuildChart(series []domain.PriceUpdate, r Range, now time.Time) []ChartPoint {
	prices := make([]decimal.Decimal, len(series))
	for i, u := range series {
		prices[i] = u.Price
	}
	ma := MovingAverage(prices, MovingAverageWindow)

	window := r.Duration().Milliseconds()
	nowMs := now.UnixMilli()

	points := make([]ChartPoint, 0, len(series))
	for i, u := range series {
		if window > 0 && nowMs-u.Timestamp > window {
			continue
		}
		points = append(points, ChartPoint{
			Pair:          u.Pair,
			Timestamp:     u.Timestamp,
			Price:         u.Price,
			MovingAverage: ma[i],
		})
	}
	return points
}

// MovingAverage returns the trailing simple moving average of prices. Index
// i is null while i < window-1.
func MovingAverage(prices []decimal.Decimal, window int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(prices))
	if window <= 0 {
		return out
	}
	div := decimal.NewFromInt(int64(window))
	sum := decimal.Zero
	for i, p := range prices {
		sum = sum.Add(p)
		if i >= window {
			sum = sum.Sub(prices[i-window])
		}
		if i >= window-1 {
			out[i] = decimal.NewNullDecimal(sum.Div(div))
		}
	}
	return out
}
