// Package view holds the per-screen state containers of the dashboard. Each
// container merges gateway responses and feed events into render-ready
// state and hands out copies through Snapshot.
package view

import (
	"context"
	"log/slog"
	"time"
)

// Status is the load status of a container.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// LoadState tells presentation whether to render a loading or error
// affordance. It is independent of the feed connection state.
type LoadState struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

func loadingState() LoadState { return LoadState{Status: StatusLoading} }

func readyState() LoadState { return LoadState{Status: StatusReady} }

func failedState(msg string) LoadState { return LoadState{Status: StatusFailed, Error: msg} }

// Options carries what every container shares.
type Options struct {
	Logger   *slog.Logger
	Messages Messages
	// Now is the wall clock. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Messages == nil {
		o.Messages = English
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// torn reports whether the requesting context was cancelled while a fetch
// was in flight; its result must then be dropped.
func torn(ctx context.Context) bool {
	return ctx.Err() != nil
}
