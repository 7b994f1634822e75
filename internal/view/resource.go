package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Resource is a container for one fetched value that is loaded once or
// refreshed by a poller. A failed refresh keeps the last good value.
type Resource[T any] struct {
	name    string
	fetch   func(ctx context.Context) (T, error)
	clone   func(T) T
	failMsg string
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	data      T
	loaded    bool
	state     LoadState
	updatedAt time.Time
}

// ResourceSnapshot is a copy of a Resource's state.
type ResourceSnapshot[T any] struct {
	Load      LoadState  `json:"load"`
	Data      T          `json:"data"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func newResource[T any](name string, fetch func(context.Context) (T, error), clone func(T) T, failKey MessageKey, opts Options) *Resource[T] {
	opts = opts.withDefaults()
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Resource[T]{
		name:    name,
		fetch:   fetch,
		clone:   clone,
		failMsg: opts.Messages.Get(failKey),
		logger:  opts.Logger.With(slog.String("component", "view"), slog.String("view", name)),
		now:     opts.Now,
		state:   loadingState(),
	}
}

// Name identifies the resource in logs and snapshots.
func (r *Resource[T]) Name() string { return r.name }

// Refresh fetches the value once. The error is the gateway's; the
// container records it as a failed LoadState.
func (r *Resource[T]) Refresh(ctx context.Context) error {
	v, err := r.fetch(ctx)
	if torn(ctx) {
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.state = failedState(r.failMsg)
		r.logger.Warn("refresh failed", slog.String("error", err.Error()))
		return fmt.Errorf("view: %s: %w", r.name, err)
	}
	r.data = v
	r.loaded = true
	r.state = readyState()
	r.updatedAt = r.now()
	return nil
}

// Snapshot returns a copy of the current state.
func (r *Resource[T]) Snapshot() ResourceSnapshot[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := ResourceSnapshot[T]{Load: r.state, Data: r.clone(r.data)}
	if r.loaded {
		t := r.updatedAt
		snap.UpdatedAt = &t
	}
	return snap
}

// MarketPricesView polls spot prices keyed by coin id.
type MarketPricesView = Resource[domain.MarketPrices]

// NewMarketPricesView creates the market prices container.
func NewMarketPricesView(gw MarketGateway, opts Options) *MarketPricesView {
	return newResource("market_prices", gw.GetCryptoPrices, func(p domain.MarketPrices) domain.MarketPrices {
		if p == nil {
			return nil
		}
		out := make(domain.MarketPrices, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out
	}, MsgPricesLoadFailed, opts)
}

// NewsView polls crypto headlines.
type NewsView = Resource[[]domain.NewsArticle]

// NewNewsView creates the news container.
func NewNewsView(gw MarketGateway, opts Options) *NewsView {
	return newResource("news", gw.GetCryptoNews, cloneSlice[domain.NewsArticle], MsgNewsLoadFailed, opts)
}

// StatsView holds the user's trading statistics.
type StatsView = Resource[domain.Stats]

// NewStatsView creates the stats container.
func NewStatsView(gw AccountGateway, opts Options) *StatsView {
	return newResource("stats", gw.GetStats, func(s domain.Stats) domain.Stats {
		if s.PerformanceByPair != nil {
			perf := make(map[string]decimal.Decimal, len(s.PerformanceByPair))
			for k, v := range s.PerformanceByPair {
				perf[k] = v
			}
			s.PerformanceByPair = perf
		}
		return s
	}, MsgStatsLoadFailed, opts)
}

// DemoAccountView holds the paper-trading account.
type DemoAccountView = Resource[domain.DemoAccount]

// NewDemoAccountView creates the demo account container.
func NewDemoAccountView(gw AccountGateway, opts Options) *DemoAccountView {
	return newResource("demo_account", gw.GetDemoAccount, func(a domain.DemoAccount) domain.DemoAccount {
		a.Transactions = cloneSlice(a.Transactions)
		return a
	}, MsgDemoAccountLoadFailed, opts)
}

// Analysis is the AI commentary for one symbol.
type Analysis struct {
	Analysis        domain.MarketAnalysis   `json:"analysis"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// AnalysisView polls the AI analysis and recommendations for a symbol. Both
// requests are issued concurrently and must both succeed.
type AnalysisView = Resource[Analysis]

// NewAnalysisView creates the AI analysis container for symbol.
func NewAnalysisView(gw AnalysisGateway, symbol string, opts Options) *AnalysisView {
	fetch := func(ctx context.Context) (Analysis, error) {
		var out Analysis
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a, err := gw.GetAnalysis(gctx, symbol)
			out.Analysis = a
			return err
		})
		g.Go(func() error {
			recs, err := gw.GetRecommendations(gctx, symbol)
			out.Recommendations = recs
			return err
		})
		if err := g.Wait(); err != nil {
			return Analysis{}, err
		}
		return out, nil
	}
	return newResource("analysis", fetch, func(a Analysis) Analysis {
		a.Analysis.Support = cloneSlice(a.Analysis.Support)
		a.Analysis.Resistance = cloneSlice(a.Analysis.Resistance)
		a.Recommendations = cloneSlice(a.Recommendations)
		return a
	}, MsgAnalysisLoadFailed, opts)
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
