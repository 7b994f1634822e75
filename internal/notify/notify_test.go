package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSender struct {
	name string
	err  error

	mu     sync.Mutex
	titles []string
}

func (s *recordSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordSender) Name() string { return s.name }

func (s *recordSender) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventOrderCompleted}, quiet())

	require.NoError(t, n.Notify(context.Background(), EventFeedLost, "lost", ""))
	require.NoError(t, n.Notify(context.Background(), EventOrderCompleted, "done", ""))
	assert.Equal(t, []string{"done"}, s.Titles())
}

func TestNotifyContinuesPastFailingSender(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("boom")}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quiet())

	err := n.Notify(context.Background(), EventOrderCompleted, "done", "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "bad: boom")
	assert.Len(t, good.Titles(), 1)
}

func TestEnqueueAndRun(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()

	assert.True(t, n.Enqueue(EventOrderCompleted, "done", ""))
	assert.Eventually(t, func() bool { return len(s.Titles()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestEnqueueWithoutSendersIsDisabled(t *testing.T) {
	n := NewNotifier(nil, nil, quiet())
	assert.False(t, n.Enqueue(EventOrderCompleted, "done", ""))
}

func TestEventRelay(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, quiet())
	r := NewEventRelay(n)

	// Closed before ever opening: no alert.
	r.Handle(session.Event{Kind: session.EventFeedState, State: "closed"})
	r.Handle(session.Event{Kind: session.EventFeedState, State: "open"})
	r.Handle(session.Event{Kind: session.EventFeedState, State: "closed"})
	r.Handle(session.Event{Kind: session.EventFeedState, State: "connecting"})
	r.Handle(session.Event{Kind: session.EventFeedState, State: "closed"})
	r.Handle(session.Event{Kind: session.EventFeedState, State: "open"})
	r.Handle(session.Event{Kind: session.EventOrdersCompleted, Orders: []domain.OrderCompletion{
		{ID: 1, Status: domain.OrderStatusCompleted},
		{ID: 2, Status: domain.OrderStatusCancelled},
		{ID: 3, Status: domain.OrderStatusPending},
	}})

	var titles []string
	for len(n.queue) > 0 {
		titles = append(titles, (<-n.queue).title)
	}
	assert.Equal(t, []string{"Live feed lost", "Live feed restored", "Order completed", "Order cancelled"}, titles)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("123:abc", "42", srv.URL)
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad webhook"}`))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
