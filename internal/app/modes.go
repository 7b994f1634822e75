package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradedesk/internal/notify"
	"github.com/alanyoungcy/tradedesk/internal/periodic"
	"github.com/alanyoungcy/tradedesk/internal/server"
	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/server/ws"
)

const (
	shutdownTimeout   = 5 * time.Second
	orderSyncInterval = 5 * time.Minute
)

// DashboardMode mounts the session and serves it on the local API.
func (a *App) DashboardMode(ctx context.Context, deps *Dependencies) error {
	return a.run(ctx, deps, true, false)
}

// RecordMode mounts the session and mirrors its events into Redis,
// Postgres and the S3 archive.
func (a *App) RecordMode(ctx context.Context, deps *Dependencies) error {
	return a.run(ctx, deps, false, true)
}

// FullMode serves the dashboard and records it.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	return a.run(ctx, deps, a.cfg.Server.Enabled, true)
}

func (a *App) run(ctx context.Context, deps *Dependencies, serve, record bool) error {
	if record && deps.Recorder == nil {
		return fmt.Errorf("app: mode %q records but storage is not wired", a.cfg.Mode)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	sess := deps.Session

	// Listeners are registered before Mount so the first events are seen.
	if deps.Notifier.Active() {
		relay := notify.NewEventRelay(deps.Notifier)
		sess.Subscribe(relay.Handle)
		g.Go(func() error {
			return deps.Notifier.Run(ctx)
		})
	}

	if record {
		a.startRecorder(ctx, g, deps)
	}

	if serve {
		a.startHTTPServer(ctx, g, deps)
	}

	if err := sess.Mount(ctx); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("app: mount session: %w", err)
	}
	a.logger.InfoContext(ctx, "dashboard session mounted", slog.String("session_id", sess.ID()))

	g.Go(func() error {
		<-ctx.Done()
		sess.Unmount()
		return nil
	})

	return g.Wait()
}

// startRecorder subscribes the recorder to the session and schedules the
// archive and order-sync jobs.
func (a *App) startRecorder(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	rec := deps.Recorder
	deps.Session.Subscribe(rec.Handle)

	g.Go(func() error {
		return rec.Run(ctx)
	})

	tasks := []*periodic.Task{
		periodic.Every(ctx, orderSyncInterval, func(ctx context.Context) error {
			return rec.SyncOrders(ctx, deps.Session.Orders.Snapshot().Orders)
		},
			periodic.WithName("orders.sync"),
			periodic.WithLogger(a.logger),
			periodic.WithMetrics(deps.Metrics),
		),
	}
	if deps.Archiver != nil && a.cfg.Archive.Enabled {
		tasks = append(tasks, periodic.Every(ctx, a.cfg.Archive.Interval.Duration, rec.Archive,
			periodic.WithName("archive"),
			periodic.WithLogger(a.logger),
			periodic.WithMetrics(deps.Metrics),
		))
	}

	g.Go(func() error {
		<-ctx.Done()
		for _, t := range tasks {
			t.Stop()
		}
		a.logger.Info("recorder stopped",
			slog.Int64("recorded", rec.Recorded()),
			slog.Int64("dropped", rec.Dropped()),
		)
		return nil
	})
}

// startHTTPServer adds the hub and the HTTP server to the group. The server
// is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sess := deps.Session

	hub := ws.NewHub(func() any { return sess.Snapshot() }, a.cfg.Server.CORSOrigins, a.logger)
	sess.Subscribe(hub.Publish)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	h := server.Handlers{
		Health:    handler.NewHealthHandler(a.cfg.Mode, deps.Health, a.logger),
		Dashboard: handler.NewDashboardHandler(sess, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}
	if deps.Recorder != nil {
		h.History = handler.NewHistoryHandler(deps.PriceStore, deps.OrderStore, deps.Recorder, a.logger)
	}

	srv := server.NewServer(server.Config{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		RateLimitRPS: a.cfg.Server.RateLimitRPS,
		RateBurst:    a.cfg.Server.RateLimitBurst,
	}, h, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
