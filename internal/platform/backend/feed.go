package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/metrics"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds a single dial attempt.
	handshakeTimeout = 15 * time.Second

	// DefaultPingInterval is the heartbeat period while the connection is open.
	DefaultPingInterval = 15 * time.Second

	// baseReconnectDelay is the delay before the first reconnection attempt.
	baseReconnectDelay = time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// ReconnectDelay returns the backoff before the next reconnection given the
// number of attempts already scheduled: min(2^attempts * 1s, 60s).
func ReconnectDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= 6 {
		return maxReconnectDelay
	}
	d := baseReconnectDelay << attempts
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

// Conn is the subset of *websocket.Conn the feed uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a stream connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer returns a DialFunc backed by gorilla/websocket.
func WebsocketDialer() DialFunc {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: conn}, nil
	}
}

// wsConn serialises writes and applies the write deadline.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) ReadMessage() (int, []byte, error) { return w.conn.ReadMessage() }

func (w *wsConn) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, data)
}

func (w *wsConn) Close() error {
	w.mu.Lock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = w.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	w.mu.Unlock()
	return w.conn.Close()
}

// StreamURL derives the stream endpoint from the backend base URL by
// switching http(s) to ws(s).
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("backend: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("backend: unsupported base url scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// FeedConfig configures a FeedClient. Zero values select production defaults.
type FeedConfig struct {
	URL          string
	PingInterval time.Duration
	Dial         DialFunc
	Clock        Clock
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// FeedClient owns one WebSocket connection to the backend's event stream. It
// sends heartbeats while open, reconnects with capped exponential backoff on
// any close, and dispatches decoded events to registered handlers in arrival
// order.
//
// Every connection attempt gets a generation number; timer callbacks and read
// loops belonging to an older generation are no-ops.
type FeedClient struct {
	url          string
	pingInterval time.Duration
	dial         DialFunc
	clock        Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu                sync.Mutex
	state             domain.ConnState
	reconnectAttempts int
	lastPongAt        time.Time
	conn              Conn
	heartbeat         Timer
	reconnect         Timer
	stopped           bool
	gen               uint64

	decodeErrors atomic.Int64

	priceHandlers registry[domain.PriceUpdate]
	orderHandlers registry[[]domain.OrderCompletion]
	stateHandlers registry[domain.ConnState]
}

// NewFeedClient creates an idle feed client.
func NewFeedClient(cfg FeedConfig) *FeedClient {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.Dial == nil {
		cfg.Dial = WebsocketDialer()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FeedClient{
		url:          cfg.URL,
		pingInterval: cfg.PingInterval,
		dial:         cfg.Dial,
		clock:        cfg.Clock,
		logger:       cfg.Logger.With(slog.String("component", "feed")),
		metrics:      cfg.Metrics,
		state:        domain.ConnIdle,
	}
}

// Connect dials the stream. A failed dial is handled like any other close
// and schedules a reconnection, so Connect only returns an error once the
// client has been disconnected.
func (f *FeedClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return fmt.Errorf("backend/feed: %w", domain.ErrFeedStopped)
	}
	if f.state == domain.ConnConnecting || f.state == domain.ConnOpen {
		f.mu.Unlock()
		return nil
	}
	if f.reconnect != nil {
		f.reconnect.Stop()
		f.reconnect = nil
	}
	f.gen++
	gen := f.gen
	f.state = domain.ConnConnecting
	f.mu.Unlock()

	f.stateChanged(domain.ConnConnecting)
	f.dialAndOpen(ctx, gen)
	return nil
}

// Disconnect cancels the heartbeat and any pending reconnection and closes
// the socket. It is terminal: the client never connects again.
func (f *FeedClient) Disconnect() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	f.gen++
	f.stopHeartbeatLocked()
	if f.reconnect != nil {
		f.reconnect.Stop()
		f.reconnect = nil
	}
	conn := f.conn
	f.conn = nil
	prev := f.state
	f.state = domain.ConnClosed
	f.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if prev != domain.ConnClosed {
		f.stateChanged(domain.ConnClosed)
	}
	f.logger.Info("feed disconnected")
}

// Close implements io.Closer via Disconnect.
func (f *FeedClient) Close() error {
	f.Disconnect()
	return nil
}

// State returns the connection state.
func (f *FeedClient) State() domain.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ReconnectAttempts returns the number of reconnections scheduled since the
// last successful open.
func (f *FeedClient) ReconnectAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnectAttempts
}

// LastPongAt returns when the last pong arrived; ok is false if none has.
func (f *FeedClient) LastPongAt() (t time.Time, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPongAt, !f.lastPongAt.IsZero()
}

// DecodeErrors returns the number of malformed messages discarded.
func (f *FeedClient) DecodeErrors() int64 {
	return f.decodeErrors.Load()
}

// Status returns a snapshot of the connection for presentation.
func (f *FeedClient) Status() domain.FeedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := domain.FeedStatus{State: f.state, ReconnectAttempts: f.reconnectAttempts}
	if !f.lastPongAt.IsZero() {
		t := f.lastPongAt
		st.LastPongAt = &t
	}
	return st
}

// OnPriceUpdate registers h for price_update events. The returned func
// removes it.
func (f *FeedClient) OnPriceUpdate(h func(domain.PriceUpdate)) (unsubscribe func()) {
	return f.priceHandlers.add(h)
}

// OnOrdersCompleted registers h for order_completed events.
func (f *FeedClient) OnOrdersCompleted(h func([]domain.OrderCompletion)) (unsubscribe func()) {
	return f.orderHandlers.add(h)
}

// OnStateChange registers h for connection state transitions.
func (f *FeedClient) OnStateChange(h func(domain.ConnState)) (unsubscribe func()) {
	return f.stateHandlers.add(h)
}

// HandleMessage decodes one stream frame and dispatches it. Malformed frames
// are logged and counted; they never affect the connection.
func (f *FeedClient) HandleMessage(raw []byte) {
	var env StreamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		f.decodeFailed(raw, err)
		return
	}

	switch env.Type {
	case "pong":
		f.mu.Lock()
		f.lastPongAt = f.clock.Now()
		f.mu.Unlock()

	case "price_update":
		var msg PriceUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.decodeFailed(raw, err)
			return
		}
		f.priceHandlers.emit(domain.PriceUpdate{
			Pair:      msg.Pair,
			Price:     msg.Price,
			Timestamp: msg.Timestamp,
		})

	case "order_completed":
		var msg OrderCompletedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.decodeFailed(raw, err)
			return
		}
		completions := make([]domain.OrderCompletion, 0, len(msg.Orders))
		for _, o := range msg.Orders {
			completions = append(completions, domain.OrderCompletion{
				ID:     o.ID,
				Status: domain.NormalizeOrderStatus(o.Status),
			})
		}
		f.orderHandlers.emit(completions)

	default:
		f.logger.Debug("ignoring stream message", slog.String("type", env.Type))
	}

	f.metrics.IncMessage(env.Type)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// dialAndOpen performs one connection attempt for generation gen.
func (f *FeedClient) dialAndOpen(ctx context.Context, gen uint64) {
	conn, err := f.dial(ctx, f.url)

	f.mu.Lock()
	if gen != f.gen || f.stopped {
		f.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("feed dial failed",
			slog.String("url", f.url),
			slog.String("error", fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err).Error()),
		)
		f.handleClose(gen)
		return
	}

	f.conn = conn
	f.state = domain.ConnOpen
	f.reconnectAttempts = 0
	f.scheduleHeartbeatLocked(gen)
	f.mu.Unlock()

	f.logger.Info("feed connected", slog.String("url", f.url))
	f.stateChanged(domain.ConnOpen)

	go f.readLoop(conn, gen)
}

// readLoop reads frames until the connection fails or is superseded.
func (f *FeedClient) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			f.fail(gen, err)
			return
		}
		if !f.current(gen) {
			return
		}
		f.HandleMessage(data)
	}
}

// fail forces the connection closed after a read or write error and takes
// the regular close path.
func (f *FeedClient) fail(gen uint64, cause error) {
	f.mu.Lock()
	if gen != f.gen || f.state != domain.ConnOpen {
		f.mu.Unlock()
		return
	}
	f.state = domain.ConnClosing
	conn := f.conn
	f.mu.Unlock()

	f.stateChanged(domain.ConnClosing)
	f.logger.Warn("feed connection lost",
		slog.String("error", fmt.Errorf("%w: %v", domain.ErrWSDisconnect, cause).Error()),
	)
	if conn != nil {
		_ = conn.Close()
	}
	f.handleClose(gen)
}

// handleClose clears the heartbeat and schedules the next attempt.
func (f *FeedClient) handleClose(gen uint64) {
	f.mu.Lock()
	if gen != f.gen || f.state == domain.ConnClosed {
		f.mu.Unlock()
		return
	}
	f.stopHeartbeatLocked()
	f.conn = nil
	f.state = domain.ConnClosed

	delay := ReconnectDelay(f.reconnectAttempts)
	f.reconnect = f.clock.AfterFunc(delay, func() { f.redial(gen) })
	f.reconnectAttempts++
	attempts := f.reconnectAttempts
	f.mu.Unlock()

	f.metrics.IncReconnect()
	f.logger.Info("feed reconnect scheduled",
		slog.Duration("delay", delay),
		slog.Int("attempt", attempts),
	)
	f.stateChanged(domain.ConnClosed)
}

// redial is the backoff timer callback.
func (f *FeedClient) redial(gen uint64) {
	f.mu.Lock()
	if gen != f.gen || f.stopped || f.state != domain.ConnClosed {
		f.mu.Unlock()
		return
	}
	f.reconnect = nil
	f.gen++
	next := f.gen
	f.state = domain.ConnConnecting
	f.mu.Unlock()

	f.stateChanged(domain.ConnConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	f.dialAndOpen(ctx, next)
}

// scheduleHeartbeatLocked arms the next ping. Caller must hold f.mu.
func (f *FeedClient) scheduleHeartbeatLocked(gen uint64) {
	f.stopHeartbeatLocked()
	f.heartbeat = f.clock.AfterFunc(f.pingInterval, func() { f.sendPing(gen) })
}

// stopHeartbeatLocked cancels the pending ping. Caller must hold f.mu.
func (f *FeedClient) stopHeartbeatLocked() {
	if f.heartbeat != nil {
		f.heartbeat.Stop()
		f.heartbeat = nil
	}
}

// sendPing writes one heartbeat and re-arms the timer. The write happens
// under f.mu so no ping can go out once the state has left Open.
func (f *FeedClient) sendPing(gen uint64) {
	payload, _ := json.Marshal(pingMessage{Type: "ping"})

	f.mu.Lock()
	if gen != f.gen || f.state != domain.ConnOpen || f.conn == nil {
		f.mu.Unlock()
		return
	}
	if err := f.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		f.mu.Unlock()
		f.fail(gen, err)
		return
	}
	f.scheduleHeartbeatLocked(gen)
	f.mu.Unlock()

	f.metrics.IncPing()
}

func (f *FeedClient) current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.gen
}

func (f *FeedClient) decodeFailed(raw []byte, err error) {
	n := f.decodeErrors.Add(1)
	f.metrics.IncDecodeError()

	sample := raw
	if len(sample) > 256 {
		sample = sample[:256]
	}
	f.logger.Warn("discarding malformed stream message",
		slog.String("error", fmt.Errorf("%w: %v", domain.ErrDecode, err).Error()),
		slog.String("raw", string(sample)),
		slog.Int64("total", n),
	)
}

func (f *FeedClient) stateChanged(s domain.ConnState) {
	f.metrics.SetFeedState(s)
	f.stateHandlers.emit(s)
}

// registry is an ordered, copy-on-write list of event handlers.
type registry[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []registryEntry[T]
}

type registryEntry[T any] struct {
	id uint64
	fn func(T)
}

func (r *registry[T]) add(fn func(T)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	entries := make([]registryEntry[T], len(r.entries), len(r.entries)+1)
	copy(entries, r.entries)
	r.entries = append(entries, registryEntry[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			kept := make([]registryEntry[T], 0, len(r.entries))
			for _, e := range r.entries {
				if e.id != id {
					kept = append(kept, e)
				}
			}
			r.entries = kept
		})
	}
}

func (r *registry[T]) emit(v T) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()
	for _, e := range entries {
		e.fn(v)
	}
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
