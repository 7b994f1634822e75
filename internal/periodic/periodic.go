// Package periodic runs cancellable recurring work. Every poller in the
// dashboard goes through Every so teardown has one handle to release.
package periodic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/metrics"
)

// Action is one unit of recurring work. A returned error is logged and the
// loop continues.
type Action func(ctx context.Context) error

// Task is a running periodic loop.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

type options struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Task.
type Option func(*options)

// WithName labels the task in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used for action failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics counts every run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Every runs action immediately and then once per interval until Stop is
// called or ctx is cancelled. A non-positive interval runs action once.
// Runs never overlap: a slow action delays the next tick.
func Every(ctx context.Context, interval time.Duration, action Action, opts ...Option) *Task {
	o := options{name: "task", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   o.name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	logger := o.logger.With(slog.String("component", "periodic"), slog.String("task", o.name))

	go func() {
		defer close(t.done)

		run := func() {
			err := action(ctx)
			if ctx.Err() != nil {
				return
			}
			o.metrics.ObservePoll(o.name, err)
			if err != nil {
				logger.Warn("periodic run failed", slog.String("error", err.Error()))
			}
		}

		run()
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("periodic loop stopped")
				return
			case <-ticker.C:
				run()
			}
		}
	}()

	return t
}

// Name returns the task label.
func (t *Task) Name() string { return t.name }

// Stop cancels the loop and waits for an in-flight run to return.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }
