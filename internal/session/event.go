package session

import (
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/view"
)

// EventKind discriminates relayed feed events.
type EventKind string

const (
	EventPriceUpdate     EventKind = "price_update"
	EventOrdersCompleted EventKind = "order_completed"
	EventFeedState       EventKind = "feed_state"
)

// Event is a feed event after the session has merged it into its
// containers.
type Event struct {
	Kind   EventKind                `json:"type"`
	Price  *domain.PriceUpdate      `json:"price,omitempty"`
	Orders []domain.OrderCompletion `json:"orders,omitempty"`
	State  string                   `json:"state,omitempty"`
}

// Snapshot is the whole dashboard as presentation sees it.
type Snapshot struct {
	SessionID   string                                      `json:"session_id"`
	Mounted     bool                                        `json:"mounted"`
	MountedAt   time.Time                                   `json:"mounted_at"`
	Feed        domain.FeedStatus                           `json:"feed"`
	Orders      view.OrdersSnapshot                         `json:"orders"`
	LatestPrice map[string]domain.PriceUpdate               `json:"latest_prices"`
	Market      view.ResourceSnapshot[domain.MarketPrices]  `json:"market_prices"`
	News        view.ResourceSnapshot[[]domain.NewsArticle] `json:"news"`
	Analysis    view.ResourceSnapshot[view.Analysis]        `json:"analysis"`
	Simulation  view.SimulationSnapshot                     `json:"simulation"`
	Stats       view.ResourceSnapshot[domain.Stats]         `json:"stats"`
	DemoAccount view.ResourceSnapshot[domain.DemoAccount]   `json:"demo_account"`
	Chat        view.ChatSnapshot                           `json:"chat"`
}

type listenerEntry struct {
	id uint64
	fn func(Event)
}

// listeners is a copy-on-write list of event handlers.
type listeners struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []listenerEntry
}

func (l *listeners) add(fn func(Event)) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	entries := make([]listenerEntry, len(l.entries), len(l.entries)+1)
	copy(entries, l.entries)
	l.entries = append(entries, listenerEntry{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			kept := make([]listenerEntry, 0, len(l.entries))
			for _, e := range l.entries {
				if e.id != id {
					kept = append(kept, e)
				}
			}
			l.entries = kept
		})
	}
}

func (l *listeners) emit(ev Event) {
	l.mu.RLock()
	entries := l.entries
	l.mu.RUnlock()
	for _, e := range entries {
		e.fn(ev)
	}
}

func (l *listeners) clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *listeners) count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
