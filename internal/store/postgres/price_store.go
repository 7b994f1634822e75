package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// PriceStore implements domain.PriceStore over the price_ticks table.
// A tick is keyed by (pair, timestamp); replays are ignored.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore creates a PriceStore on pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// InsertBatch stores updates in one round trip.
func (s *PriceStore) InsertBatch(ctx context.Context, updates []domain.PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	const query = `
		INSERT INTO price_ticks (pair, ts_ms, price)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (pair, ts_ms) DO NOTHING`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.Pair, u.Timestamp, u.Price.String())
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, u := range updates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert price %s@%d: %w", u.Pair, u.Timestamp, err)
		}
	}
	return nil
}

const priceSelectCols = `pair, ts_ms, price::text`

func scanPriceRows(rows pgx.Rows) ([]domain.PriceUpdate, error) {
	var out []domain.PriceUpdate
	for rows.Next() {
		var (
			u     domain.PriceUpdate
			price string
		)
		if err := rows.Scan(&u.Pair, &u.Timestamp, &price); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		u.Price = p
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListByPair returns ticks for pair in timestamp order.
func (s *PriceStore) ListByPair(ctx context.Context, pair string, opts domain.ListOpts) ([]domain.PriceUpdate, error) {
	var q queryBuilder
	q.add(`SELECT `+priceSelectCols+` FROM price_ticks WHERE pair = ?`, pair)
	if opts.Since != nil {
		q.add(" AND ts_ms >= ?", opts.Since.UnixMilli())
	}
	if opts.Until != nil {
		q.add(" AND ts_ms <= ?", opts.Until.UnixMilli())
	}
	q.add(" ORDER BY ts_ms ASC")
	q.page(opts)

	rows, err := s.pool.Query(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices %s: %w", pair, err)
	}
	defer rows.Close()

	out, err := scanPriceRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan prices %s: %w", pair, err)
	}
	return out, nil
}

// ListBefore returns every tick older than the cutoff.
func (s *PriceStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PriceUpdate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceSelectCols+` FROM price_ticks WHERE ts_ms < $1 ORDER BY ts_ms ASC, pair ASC`,
		before.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices before: %w", err)
	}
	defer rows.Close()

	out, err := scanPriceRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan prices before: %w", err)
	}
	return out, nil
}

// DeleteBefore removes ticks older than the cutoff and reports how many.
func (s *PriceStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_ticks WHERE ts_ms < $1`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("postgres: delete prices before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.PriceStore = (*PriceStore)(nil)
