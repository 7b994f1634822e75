package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (c *memCache) SetPrice(_ context.Context, pair string, p decimal.Decimal, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = map[string]decimal.Decimal{}
	}
	c.prices[pair] = p
	return nil
}

func (c *memCache) GetPrice(_ context.Context, pair string) (decimal.Decimal, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[pair]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return p, time.Time{}, nil
}

func (c *memCache) GetPrices(_ context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]decimal.Decimal{}
	for _, p := range pairs {
		if v, ok := c.prices[p]; ok {
			out[p] = v
		}
	}
	return out, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string]int
	stream    []domain.StreamMessage
}

func (b *memBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string]int{}
	}
	b.published[channel]++
	return nil
}

func (b *memBus) Append(_ context.Context, _ string, payload []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := time.Now().Format("150405.000000000")
	b.stream = append(b.stream, domain.StreamMessage{ID: id, Payload: payload})
	return id, nil
}

func (b *memBus) ReadAfter(_ context.Context, _ string, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count > len(b.stream) {
		count = len(b.stream)
	}
	return append([]domain.StreamMessage(nil), b.stream[:count]...), nil
}

func (b *memBus) Published(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[channel]
}

type memPriceStore struct {
	mu    sync.Mutex
	ticks []domain.PriceUpdate
}

func (s *memPriceStore) InsertBatch(_ context.Context, updates []domain.PriceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, updates...)
	return nil
}

func (s *memPriceStore) ListByPair(context.Context, string, domain.ListOpts) ([]domain.PriceUpdate, error) {
	return nil, nil
}

func (s *memPriceStore) ListBefore(context.Context, time.Time) ([]domain.PriceUpdate, error) {
	return nil, nil
}

func (s *memPriceStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *memPriceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

type memOrderStore struct {
	mu       sync.Mutex
	orders   map[int64]domain.Order
	upserted int
}

func (s *memOrderStore) Upsert(ctx context.Context, o domain.Order) error {
	return s.UpsertBatch(ctx, []domain.Order{o})
}

func (s *memOrderStore) UpsertBatch(_ context.Context, orders []domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders == nil {
		s.orders = map[int64]domain.Order{}
	}
	for _, o := range orders {
		s.orders[o.ID] = o
		s.upserted++
	}
	return nil
}

func (s *memOrderStore) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	return nil
}

func (s *memOrderStore) GetByID(_ context.Context, id int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *memOrderStore) List(context.Context, domain.ListOpts) ([]domain.Order, error) {
	return nil, nil
}

func (s *memOrderStore) ListBefore(context.Context, time.Time) ([]domain.Order, error) {
	return nil, nil
}

type memArchiver struct {
	cutoffs []time.Time
}

func (a *memArchiver) ArchivePrices(_ context.Context, before time.Time) (int64, error) {
	a.cutoffs = append(a.cutoffs, before)
	return 3, nil
}

func (a *memArchiver) ArchiveOrders(_ context.Context, before time.Time) (int64, error) {
	a.cutoffs = append(a.cutoffs, before)
	return 1, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func priceEvent(pair string, price int64, ts int64) session.Event {
	return session.Event{Kind: session.EventPriceUpdate, Price: &domain.PriceUpdate{
		Pair: pair, Price: decimal.NewFromInt(price), Timestamp: ts,
	}}
}

func TestRecorderMirrorsEvents(t *testing.T) {
	cache := &memCache{}
	bus := &memBus{}
	prices := &memPriceStore{}
	orders := &memOrderStore{}
	r := NewRecorder(RecorderConfig{
		Cache: cache, Bus: bus, Prices: prices, Orders: orders,
		BatchSize: 2, FlushInterval: time.Hour,
	}, quiet())

	require.NoError(t, r.SyncOrders(context.Background(), []domain.Order{{ID: 7, Status: domain.OrderStatusPending}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	r.Handle(priceEvent("BTC/USD", 50000, 1))
	r.Handle(priceEvent("ETH/USD", 3000, 2))
	r.Handle(session.Event{Kind: session.EventOrdersCompleted, Orders: []domain.OrderCompletion{
		{ID: 7, Status: domain.OrderStatusCompleted},
		{ID: 8, Status: domain.OrderStatusCompleted},
	}})

	assert.Eventually(t, func() bool { return prices.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return bus.Published(ChannelOrders) == 1 }, time.Second, 5*time.Millisecond)

	o, err := orders.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)

	latest, err := r.LatestPrices(context.Background(), []string{"BTC/USD", "XRP/USD"})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.True(t, latest["BTC/USD"].Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 2, bus.Published(ChannelPrices))

	assert.Eventually(t, func() bool {
		events, err := r.RecentEvents(context.Background(), "0", 10)
		return err == nil && len(events) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.EqualValues(t, 2, r.Recorded())
}

func TestRecorderFlushesOnShutdown(t *testing.T) {
	prices := &memPriceStore{}
	r := NewRecorder(RecorderConfig{Prices: prices, BatchSize: 100, FlushInterval: time.Hour}, quiet())

	r.Handle(priceEvent("BTC/USD", 1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 1, prices.Len())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(RecorderConfig{}, quiet())
	for i := 0; i < defaultQueueSize+5; i++ {
		r.Handle(priceEvent("BTC/USD", 1, int64(i)))
	}
	assert.EqualValues(t, 5, r.Dropped())
}

func TestRecorderArchive(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a := &memArchiver{}
	r := NewRecorder(RecorderConfig{
		Archiver:  a,
		Retention: 24 * time.Hour,
		Now:       func() time.Time { return now },
	}, quiet())

	require.NoError(t, r.Archive(context.Background()))
	require.Len(t, a.cutoffs, 2)
	assert.Equal(t, now.Add(-24*time.Hour), a.cutoffs[0])
}

func TestRecorderWithoutSinks(t *testing.T) {
	r := NewRecorder(RecorderConfig{}, quiet())
	require.NoError(t, r.SyncOrders(context.Background(), []domain.Order{{ID: 1}}))
	require.NoError(t, r.Archive(context.Background()))
	events, err := r.RecentEvents(context.Background(), "0", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
