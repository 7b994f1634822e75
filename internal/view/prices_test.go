package view

import (
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestMovingAverageOfFivePoints(t *testing.T) {
	h := NewPriceHistory(0)
	for i, p := range []int64{100, 102, 98, 104, 101} {
		h.Append(domain.PriceUpdate{Pair: "BTC/USD", Price: dec(p), Timestamp: int64(i + 1)})
	}

	points := h.Chart("", "", time.UnixMilli(10))
	require.Len(t, points, 5)
	for i := 0; i < 4; i++ {
		assert.False(t, points[i].MovingAverage.Valid, "index %d", i)
	}
	require.True(t, points[4].MovingAverage.Valid)
	assert.True(t, points[4].MovingAverage.Decimal.Equal(dec(101)), points[4].MovingAverage.Decimal.String())
}

func TestMovingAverageSlides(t *testing.T) {
	ma := MovingAverage([]decimal.Decimal{dec(1), dec(2), dec(3), dec(4), dec(5), dec(6), dec(7)}, 5)
	require.Len(t, ma, 7)
	assert.True(t, ma[4].Decimal.Equal(dec(3)))
	assert.True(t, ma[5].Decimal.Equal(dec(4)))
	assert.True(t, ma[6].Decimal.Equal(dec(5)))
}

func TestRangeFilter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := domain.PriceUpdate{Pair: "BTC/USD", Price: dec(1), Timestamp: now.Add(-61 * time.Minute).UnixMilli()}
	edge := domain.PriceUpdate{Pair: "BTC/USD", Price: dec(2), Timestamp: now.Add(-time.Hour).UnixMilli()}
	recent := domain.PriceUpdate{Pair: "BTC/USD", Price: dec(3), Timestamp: now.Add(-5 * time.Minute).UnixMilli()}

	points := BuildChart([]domain.PriceUpdate{old, edge, recent}, Range1h, now)
	require.Len(t, points, 2)
	assert.Equal(t, edge.Timestamp, points[0].Timestamp)
	assert.Equal(t, recent.Timestamp, points[1].Timestamp)

	assert.Len(t, BuildChart([]domain.PriceUpdate{old, edge, recent}, Range24h, now), 3)
}

func TestMovingAverageUsesUnfilteredIndex(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var series []domain.PriceUpdate
	for i, p := range []int64{10, 20, 30, 40} {
		series = append(series, domain.PriceUpdate{Pair: "X", Price: dec(p), Timestamp: now.Add(-48 * time.Hour).Add(time.Duration(i) * time.Minute).UnixMilli()})
	}
	series = append(series, domain.PriceUpdate{Pair: "X", Price: dec(50), Timestamp: now.Add(-time.Minute).UnixMilli()})

	points := BuildChart(series, Range1h, now)
	require.Len(t, points, 1)
	require.True(t, points[0].MovingAverage.Valid)
	assert.True(t, points[0].MovingAverage.Decimal.Equal(dec(30)))
}

func TestPriceHistoryKeepsArrivalOrder(t *testing.T) {
	h := NewPriceHistory(0)
	h.Append(domain.PriceUpdate{Pair: "BTC/USD", Price: dec(1), Timestamp: 5})
	h.Append(domain.PriceUpdate{Pair: "ETH/USD", Price: dec(2), Timestamp: 3})
	h.Append(domain.PriceUpdate{Pair: "BTC/USD", Price: dec(3), Timestamp: 4})

	ups := h.Updates()
	require.Len(t, ups, 3)
	assert.Equal(t, []int64{5, 3, 4}, []int64{ups[0].Timestamp, ups[1].Timestamp, ups[2].Timestamp})

	latest, ok := h.Latest("BTC/USD")
	require.True(t, ok)
	assert.True(t, latest.Price.Equal(dec(3)))
	_, ok = h.Latest("DOGE/USD")
	assert.False(t, ok)

	btc := h.Chart("BTC/USD", Range7d, time.UnixMilli(10))
	assert.Len(t, btc, 2)
	assert.Len(t, h.LatestAll(), 2)
}

func TestPriceHistoryLimit(t *testing.T) {
	h := NewPriceHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.Append(domain.PriceUpdate{Pair: "BTC/USD", Price: dec(i), Timestamp: i})
	}
	ups := h.Updates()
	require.Len(t, ups, 3)
	assert.Equal(t, int64(3), ups[0].Timestamp)
}

func TestParseRange(t *testing.T) {
	for _, s := range []string{"1h", "24h", "7d"} {
		r, err := ParseRange(s)
		require.NoError(t, err)
		assert.Equal(t, Range(s), r)
	}
	_, err := ParseRange("30d")
	assert.Error(t, err)
	assert.Equal(t, 7*24*time.Hour, Range7d.Duration())
}
