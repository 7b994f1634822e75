// Package service holds the process-level workers that sit beside the
// dashboard session.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/session"
	"github.com/shopspring/decimal"
)

// Channel and stream names on the event bus.
const (
	ChannelPrices = "prices"
	ChannelOrders = "orders"
	StreamFeed    = "feed"
)

const (
	defaultQueueSize     = 1024
	defaultBatchSize     = 200
	defaultFlushInterval = 2 * time.Second
)

// RecorderConfig wires the optional sinks. A nil sink is skipped.
type RecorderConfig struct {
	Cache    domain.PriceCache
	Bus      domain.EventBus
	Prices   domain.PriceStore
	Orders   domain.OrderStore
	Archiver domain.Archiver

	BatchSize     int
	FlushInterval time.Duration
	// Retention is how long ticks stay in the database before Archive moves
	// them out.
	Retention time.Duration
	Now       func() time.Time
}

// Recorder mirrors session events into Redis, Postgres and the archive.
// Handle never blocks the feed: events go through a bounded queue drained
// by Run, and are dropped (and counted) when the queue is full.
type Recorder struct {
	cfg    RecorderConfig
	queue  chan session.Event
	logger *slog.Logger

	dropped  atomic.Int64
	recorded atomic.Int64
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		queue:  make(chan session.Event, defaultQueueSize),
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// Handle is a session.Subscribe callback.
func (r *Recorder) Handle(ev session.Event) {
	select {
	case r.queue <- ev:
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("recorder queue full, dropping events", slog.Int64("dropped", r.dropped.Load()))
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Recorded reports how many price ticks were written to the price store.
func (r *Recorder) Recorded() int64 { return r.recorded.Load() }

// Run drains the queue until ctx is cancelled, flushing buffered ticks on
// exit with a short grace context.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.PriceUpdate, 0, r.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		r.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			grace, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		drain:
			for {
				select {
				case ev := <-r.queue:
					batch = r.apply(grace, ev, batch)
				default:
					break drain
				}
			}
			flush(grace)
			cancel()
			return nil
		case ev := <-r.queue:
			batch = r.apply(ctx, ev, batch)
			if len(batch) >= r.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (r *Recorder) apply(ctx context.Context, ev session.Event, batch []domain.PriceUpdate) []domain.PriceUpdate {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("encode event", slog.String("error", err.Error()))
		return batch
	}

	switch ev.Kind {
	case session.EventPriceUpdate:
		if ev.Price == nil {
			return batch
		}
		u := *ev.Price
		if r.cfg.Cache != nil {
			if err := r.cfg.Cache.SetPrice(ctx, u.Pair, u.Price, u.Time()); err != nil {
				r.warn("cache price", err, slog.String("pair", u.Pair))
			}
		}
		r.publish(ctx, ChannelPrices, payload)
		if r.cfg.Prices != nil {
			batch = append(batch, u)
		}
	case session.EventOrdersCompleted:
		r.updateOrders(ctx, ev.Orders)
		r.publish(ctx, ChannelOrders, payload)
	}

	if r.cfg.Bus != nil {
		if _, err := r.cfg.Bus.Append(ctx, StreamFeed, payload); err != nil {
			r.warn("append feed stream", err)
		}
	}
	return batch
}

func (r *Recorder) publish(ctx context.Context, channel string, payload []byte) {
	if r.cfg.Bus == nil {
		return
	}
	if err := r.cfg.Bus.Publish(ctx, channel, payload); err != nil {
		r.warn("publish", err, slog.String("channel", channel))
	}
}

func (r *Recorder) updateOrders(ctx context.Context, completions []domain.OrderCompletion) {
	if r.cfg.Orders == nil {
		return
	}
	for _, c := range completions {
		err := r.cfg.Orders.UpdateStatus(ctx, c.ID, c.Status)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Not synced yet; the next SyncOrders carries the final status.
			r.logger.Debug("completion for unknown order", slog.Int64("order_id", c.ID))
		case err != nil:
			r.warn("update order status", err, slog.Int64("order_id", c.ID))
		}
	}
}

func (r *Recorder) flush(ctx context.Context, batch []domain.PriceUpdate) {
	if err := r.cfg.Prices.InsertBatch(ctx, batch); err != nil {
		r.warn("insert price batch", err, slog.Int("size", len(batch)))
		return
	}
	r.recorded.Add(int64(len(batch)))
}

// SyncOrders upserts the backend's order list so later completions find
// their rows.
func (r *Recorder) SyncOrders(ctx context.Context, orders []domain.Order) error {
	if r.cfg.Orders == nil || len(orders) == 0 {
		return nil
	}
	if err := r.cfg.Orders.UpsertBatch(ctx, orders); err != nil {
		return fmt.Errorf("recorder: sync orders: %w", err)
	}
	return nil
}

// Archive moves data older than the retention window to cold storage.
func (r *Recorder) Archive(ctx context.Context) error {
	if r.cfg.Archiver == nil || r.cfg.Retention <= 0 {
		return nil
	}
	cutoff := r.cfg.Now().Add(-r.cfg.Retention)

	prices, err := r.cfg.Archiver.ArchivePrices(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("recorder: archive prices: %w", err)
	}
	orders, err := r.cfg.Archiver.ArchiveOrders(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("recorder: archive orders: %w", err)
	}
	r.logger.Info("archive complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("prices", prices),
		slog.Int64("orders", orders),
	)
	return nil
}

// RecentEvents returns feed events from the durable stream after lastID.
func (r *Recorder) RecentEvents(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if r.cfg.Bus == nil {
		return nil, nil
	}
	msgs, err := r.cfg.Bus.ReadAfter(ctx, StreamFeed, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("recorder: recent events: %w", err)
	}
	return msgs, nil
}

// LatestPrices reads the cached latest price for each pair.
func (r *Recorder) LatestPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	if r.cfg.Cache == nil {
		return map[string]decimal.Decimal{}, nil
	}
	prices, err := r.cfg.Cache.GetPrices(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("recorder: latest prices: %w", err)
	}
	return prices, nil
}

func (r *Recorder) warn(msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))
	r.logger.Warn(msg, attrs...)
}
