package redis

import (
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePrice(t *testing.T) {
	ts := time.UnixMilli(1_700_000_000_123)
	fields := encodePrice(decimal.RequireFromString("50123.45"), ts)

	vals := map[string]string{}
	for k, v := range fields {
		vals[k] = v.(string)
	}
	assert.Equal(t, "50123.45", vals["price"])
	assert.Equal(t, "1700000000123", vals["ts"])

	price, got, err := decodePrice(vals)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("50123.45")))
	assert.True(t, got.Equal(ts))
}

func TestDecodePriceMissing(t *testing.T) {
	_, _, err := decodePrice(map[string]string{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = decodePrice(map[string]string{"price": "1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = decodePrice(map[string]string{"price": "abc", "ts": "1"})
	assert.Error(t, err)
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "tradedesk:price:BTC/USD", joinKey("tradedesk", "price", "BTC/USD"))
	assert.Equal(t, "desk:stream:prices", joinKey("desk", "stream", "prices"))
}
