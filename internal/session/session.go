// Package session ties one mounted dashboard together: it owns the view
// containers, their pollers and the feed subscriptions, and releases all of
// them on Unmount.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/metrics"
	"github.com/alanyoungcy/tradedesk/internal/periodic"
	"github.com/alanyoungcy/tradedesk/internal/view"
	"github.com/google/uuid"
)

var (
	ErrAlreadyMounted = errors.New("session already mounted")
	ErrUnmounted      = errors.New("session unmounted")
)

// Feed is the live feed surface a session needs.
type Feed interface {
	Connect(ctx context.Context) error
	Disconnect()
	OnPriceUpdate(h func(domain.PriceUpdate)) func()
	OnOrdersCompleted(h func([]domain.OrderCompletion)) func()
	OnStateChange(h func(domain.ConnState)) func()
	Status() domain.FeedStatus
}

// Config holds the polling cadence and the analysed symbol.
type Config struct {
	Symbol             string
	PricesInterval     time.Duration
	NewsInterval       time.Duration
	AnalysisInterval   time.Duration
	SimulationInterval time.Duration
	HistoryLimit       int
}

// DefaultConfig matches the dashboard's refresh cadence.
func DefaultConfig() Config {
	return Config{
		Symbol:             "BTC",
		PricesInterval:     60 * time.Second,
		NewsInterval:       5 * time.Minute,
		AnalysisInterval:   5 * time.Minute,
		SimulationInterval: 60 * time.Second,
		HistoryLimit:       10_000,
	}
}

// Session is one mounted dashboard.
type Session struct {
	id      string
	cfg     Config
	gw      view.Gateway
	feed    Feed
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	Orders      *view.OrdersView
	Prices      *view.PriceHistory
	Market      *view.MarketPricesView
	News        *view.NewsView
	Analysis    *view.AnalysisView
	Simulation  *view.SimulationView
	Stats       *view.StatsView
	DemoAccount *view.DemoAccountView
	Chat        *view.ChatView

	mu        sync.Mutex
	mounted   bool
	unmounted bool
	mountedAt time.Time
	cancel    context.CancelFunc
	tasks     []*periodic.Task
	unsubs    []func()

	listeners listeners
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics counts poller runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides the wall clock used for charts and messages.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMessages selects the catalog for user-facing errors.
func WithMessages(m view.Messages) Option {
	return func(s *Session) { s.rebuildViews(m) }
}

// New creates an unmounted session over gw and feed.
func New(cfg Config, gw view.Gateway, feed Feed, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	s := &Session{
		id:   uuid.NewString(),
		cfg:  cfg,
		feed: feed,
		now:  time.Now,
	}
	s.logger = logger.With(slog.String("component", "session"), slog.String("session_id", s.id))
	s.gw = gw
	s.rebuildViews(view.English)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mount subscribes the containers to the feed, starts the one-shot loads and
// the pollers, and connects the feed. The pollers live until Unmount or
// until ctx is cancelled.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unmounted {
		return fmt.Errorf("session: mount: %w", ErrUnmounted)
	}
	if s.mounted {
		return fmt.Errorf("session: mount: %w", ErrAlreadyMounted)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mounted = true
	s.mountedAt = s.now()

	s.unsubs = append(s.unsubs,
		s.feed.OnPriceUpdate(func(u domain.PriceUpdate) {
			s.Prices.Append(u)
			s.listeners.emit(Event{Kind: EventPriceUpdate, Price: &u})
		}),
		s.feed.OnOrdersCompleted(func(c []domain.OrderCompletion) {
			s.Orders.ApplyCompletions(c)
			s.listeners.emit(Event{Kind: EventOrdersCompleted, Orders: c})
		}),
		s.feed.OnStateChange(func(st domain.ConnState) {
			s.listeners.emit(Event{Kind: EventFeedState, State: st.String()})
		}),
	)

	s.start(ctx, "orders.load", 0, s.Orders.Load)
	s.start(ctx, "stats.load", 0, s.Stats.Refresh)
	s.start(ctx, "demo_account.load", 0, s.DemoAccount.Refresh)
	s.start(ctx, "market_prices.poll", s.cfg.PricesInterval, s.Market.Refresh)
	s.start(ctx, "news.poll", s.cfg.NewsInterval, s.News.Refresh)
	s.start(ctx, "analysis.poll", s.cfg.AnalysisInterval, s.Analysis.Refresh)
	s.start(ctx, "simulation.poll", s.cfg.SimulationInterval, s.Simulation.Refresh)
	s.start(ctx, "feed.connect", 0, s.feed.Connect)

	s.logger.Info("session mounted", slog.String("symbol", s.cfg.Symbol))
	return nil
}

// Unmount releases every subscription, poller and the socket. A session
// cannot be mounted again.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	wasMounted := s.mounted
	s.mounted = false
	cancel := s.cancel
	tasks := s.tasks
	unsubs := s.unsubs
	s.tasks, s.unsubs, s.cancel = nil, nil, nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	s.feed.Disconnect()
	for _, t := range tasks {
		t.Stop()
	}
	s.listeners.clear()

	if wasMounted {
		s.logger.Info("session unmounted")
	}
}

// Close implements io.Closer via Unmount.
func (s *Session) Close() error {
	s.Unmount()
	return nil
}

// Subscribe registers h for feed events relayed by this session. The
// returned func removes it; Unmount removes every listener.
func (s *Session) Subscribe(h func(Event)) (unsubscribe func()) {
	return s.listeners.add(h)
}

// Chart returns chart data for pair over r as of now.
func (s *Session) Chart(pair string, r view.Range) []view.ChartPoint {
	return s.Prices.Chart(pair, r, s.now())
}

// Snapshot aggregates every container and the feed status.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	mounted := s.mounted
	mountedAt := s.mountedAt
	s.mu.Unlock()

	latest := s.Prices.LatestAll()

	return Snapshot{
		SessionID:   s.id,
		Mounted:     mounted,
		MountedAt:   mountedAt,
		Feed:        s.feed.Status(),
		Orders:      s.Orders.Snapshot(),
		LatestPrice: latest,
		Market:      s.Market.Snapshot(),
		News:        s.News.Snapshot(),
		Analysis:    s.Analysis.Snapshot(),
		Simulation:  s.Simulation.Snapshot(),
		Stats:       s.Stats.Snapshot(),
		DemoAccount: s.DemoAccount.Snapshot(),
		Chat:        s.Chat.Snapshot(),
	}
}

// start runs action every interval (once when interval is zero) under the
// session's lifetime. Caller must hold s.mu.
func (s *Session) start(ctx context.Context, name string, interval time.Duration, action periodic.Action) {
	task := periodic.Every(ctx, interval, action,
		periodic.WithName(name),
		periodic.WithLogger(s.logger),
		periodic.WithMetrics(s.metrics),
	)
	s.tasks = append(s.tasks, task)
}

func (s *Session) rebuildViews(messages view.Messages) {
	opts := view.Options{
		Logger:   s.logger,
		Messages: messages,
		Now:      func() time.Time { return s.now() },
	}
	s.Orders = view.NewOrdersView(s.gw, opts)
	s.Prices = view.NewPriceHistory(s.cfg.HistoryLimit)
	s.Market = view.NewMarketPricesView(s.gw, opts)
	s.News = view.NewNewsView(s.gw, opts)
	s.Analysis = view.NewAnalysisView(s.gw, s.cfg.Symbol, opts)
	s.Simulation = view.NewSimulationView(s.gw, s.cfg.Symbol, opts)
	s.Stats = view.NewStatsView(s.gw, opts)
	s.DemoAccount = view.NewDemoAccountView(s.gw, opts)
	s.Chat = view.NewChatView(s.gw, opts)
}
