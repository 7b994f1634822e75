package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceCache keeps the latest price per pair in a hash at
// "{prefix}:price:{pair}" with fields "price" (decimal string) and "ts"
// (unix milliseconds).
type PriceCache struct {
	c *Client
}

// NewPriceCache creates a PriceCache backed by c.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{c: c}
}

func (pc *PriceCache) priceKey(pair string) string {
	return pc.c.key("price", pair)
}

// SetPrice stores the latest price for pair. Older timestamps do not
// overwrite newer ones already in the cache.
func (pc *PriceCache) SetPrice(ctx context.Context, pair string, price decimal.Decimal, ts time.Time) error {
	key := pc.priceKey(pair)
	fields := encodePrice(price, ts)

	err := pc.c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, "ts").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != "" {
			if prev, perr := strconv.ParseInt(cur, 10, 64); perr == nil && prev > ts.UnixMilli() {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", pair, err)
	}
	return nil
}

// GetPrice returns the latest price for pair, or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, pair string) (decimal.Decimal, time.Time, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.priceKey(pair)).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", pair, err)
	}
	price, ts, err := decodePrice(vals)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", pair, err)
	}
	return price, ts, nil
}

// GetPrices fetches several pairs in one pipeline. Missing or unparsable
// entries are omitted.
func (pc *PriceCache) GetPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	if len(pairs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	pipe := pc.c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(pairs))
	for _, pair := range pairs {
		cmds[pair] = pipe.HGetAll(ctx, pc.priceKey(pair))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(pairs))
	for pair, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		price, _, err := decodePrice(vals)
		if err != nil {
			continue
		}
		result[pair] = price
	}
	return result, nil
}

func encodePrice(price decimal.Decimal, ts time.Time) map[string]any {
	return map[string]any{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixMilli(), 10),
	}
}

func decodePrice(vals map[string]string) (decimal.Decimal, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse price %q: %w", priceStr, err)
	}
	ms, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse ts %q: %w", tsStr, err)
	}
	return price, time.UnixMilli(ms), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
