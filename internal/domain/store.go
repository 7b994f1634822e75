package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderStore persists orders mirrored from the backend and the live feed.
type OrderStore interface {
	Upsert(ctx context.Context, order Order) error
	UpsertBatch(ctx context.Context, orders []Order) error
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
	GetByID(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, opts ListOpts) ([]Order, error)
	ListBefore(ctx context.Context, before time.Time) ([]Order, error)
}

// PriceStore persists the raw price tick history.
type PriceStore interface {
	InsertBatch(ctx context.Context, updates []PriceUpdate) error
	ListByPair(ctx context.Context, pair string, opts ListOpts) ([]PriceUpdate, error)
	ListBefore(ctx context.Context, before time.Time) ([]PriceUpdate, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
