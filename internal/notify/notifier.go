// Package notify delivers alerts to chat channels (Telegram, Discord).
// Senders are filtered by event type so operators receive only the alerts
// they asked for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event types understood by the filter.
const (
	EventOrderCompleted = "order_completed"
	EventOrderCancelled = "order_cancelled"
	EventFeedLost       = "feed_lost"
	EventFeedRestored   = "feed_restored"
)

const defaultQueueSize = 64

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

type message struct {
	event, title, body string
}

// Notifier fans notifications out to its senders. Enqueue is non-blocking
// and safe to call from feed callbacks; Run delivers the queue.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	queue   chan message
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		queue:   make(chan message, defaultQueueSize),
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Active reports whether any sender is configured.
func (n *Notifier) Active() bool {
	return len(n.senders) > 0
}

// Enabled reports whether event passes the filter and there is a sender.
func (n *Notifier) Enabled(event string) bool {
	if len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify sends synchronously if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, body string) error {
	if !n.Enabled(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, body)
}

// Enqueue schedules a notification for Run. It drops the message when the
// queue is full and reports whether it was accepted.
func (n *Notifier) Enqueue(event, title, body string) bool {
	if !n.Enabled(event) {
		return false
	}
	select {
	case n.queue <- message{event: event, title: title, body: body}:
		return true
	default:
		n.logger.Warn("notification queue full, dropping", slog.String("event", event))
		return false
	}
}

// Run delivers queued notifications until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-n.queue:
			if err := n.dispatch(ctx, m.title, m.body); err != nil {
				n.logger.Warn("notification failed",
					slog.String("event", m.event),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// dispatch sends to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, body); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
