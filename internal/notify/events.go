package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/session"
)

// EventRelay turns session events into notifications.
type EventRelay struct {
	n *Notifier

	mu       sync.Mutex
	wasOpen  bool
	lostSent bool
}

// NewEventRelay creates a relay onto n.
func NewEventRelay(n *Notifier) *EventRelay {
	return &EventRelay{n: n}
}

// Handle is a session.Subscribe callback.
func (r *EventRelay) Handle(ev session.Event) {
	switch ev.Kind {
	case session.EventOrdersCompleted:
		r.orders(ev.Orders)
	case session.EventFeedState:
		r.feedState(ev.State)
	}
}

func (r *EventRelay) orders(completions []domain.OrderCompletion) {
	var done, cancelled []string
	for _, c := range completions {
		switch c.Status {
		case domain.OrderStatusCompleted:
			done = append(done, fmt.Sprintf("#%d", c.ID))
		case domain.OrderStatusCancelled:
			cancelled = append(cancelled, fmt.Sprintf("#%d", c.ID))
		}
	}
	if len(done) > 0 {
		r.n.Enqueue(EventOrderCompleted, "Order completed", "Orders "+strings.Join(done, ", ")+" completed.")
	}
	if len(cancelled) > 0 {
		r.n.Enqueue(EventOrderCancelled, "Order cancelled", "Orders "+strings.Join(cancelled, ", ")+" cancelled.")
	}
}

// feedState alerts once when an open feed drops and once when it comes
// back, not on every reconnect attempt in between.
func (r *EventRelay) feedState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch state {
	case domain.ConnOpen.String():
		if r.lostSent {
			r.n.Enqueue(EventFeedRestored, "Live feed restored", "The live price feed is connected again.")
		}
		r.wasOpen = true
		r.lostSent = false
	case domain.ConnClosed.String():
		if r.wasOpen && !r.lostSent {
			r.n.Enqueue(EventFeedLost, "Live feed lost", "The live price feed disconnected; reconnecting.")
			r.lostSent = true
		}
	}
}
