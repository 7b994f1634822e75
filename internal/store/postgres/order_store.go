package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// OrderStore implements domain.OrderStore.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore on pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const upsertOrderSQL = `
	INSERT INTO orders (id, pair, amount, price, side, status, created_at, updated_at)
	VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, NOW())
	ON CONFLICT (id) DO UPDATE SET
		pair = EXCLUDED.pair,
		amount = EXCLUDED.amount,
		price = EXCLUDED.price,
		side = EXCLUDED.side,
		status = EXCLUDED.status,
		updated_at = NOW()`

func orderArgs(o domain.Order) []any {
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return []any{
		o.ID, o.Pair, o.Amount.String(), o.Price.String(),
		string(o.Side), string(o.Status), created,
	}
}

// Upsert inserts o or overwrites the stored row with the same id.
func (s *OrderStore) Upsert(ctx context.Context, o domain.Order) error {
	if _, err := s.pool.Exec(ctx, upsertOrderSQL, orderArgs(o)...); err != nil {
		return fmt.Errorf("postgres: upsert order %d: %w", o.ID, err)
	}
	return nil
}

// UpsertBatch upserts orders in one round trip.
func (s *OrderStore) UpsertBatch(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(upsertOrderSQL, orderArgs(o)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, o := range orders {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert order batch (id %d): %w", o.ID, err)
		}
	}
	return nil
}

// UpdateStatus sets the status of a stored order.
func (s *OrderStore) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update order status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const orderSelectCols = `id, pair, amount::text, price::text, side, status, created_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var (
		o             domain.Order
		amount, price string
		side, status  string
	)
	if err := scanner.Scan(&o.ID, &o.Pair, &amount, &price, &side, &status, &o.CreatedAt); err != nil {
		return domain.Order{}, err
	}
	var err error
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Order{}, fmt.Errorf("amount: %w", err)
	}
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Order{}, fmt.Errorf("price: %w", err)
	}
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID returns one order or domain.ErrNotFound.
func (s *OrderStore) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %d: %w", id, err)
	}
	return o, nil
}

// List returns orders newest first.
func (s *OrderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	var q queryBuilder
	q.add(`SELECT ` + orderSelectCols + ` FROM orders WHERE TRUE`)
	if opts.Since != nil {
		q.add(" AND created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		q.add(" AND created_at <= ?", *opts.Until)
	}
	q.add(" ORDER BY created_at DESC, id DESC")
	q.page(opts)

	rows, err := s.pool.Query(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders: %w", err)
	}
	return orders, nil
}

// ListBefore returns orders created before the cutoff, oldest first.
func (s *OrderStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE created_at < $1 ORDER BY created_at ASC, id ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders before: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders before: %w", err)
	}
	return orders, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)
