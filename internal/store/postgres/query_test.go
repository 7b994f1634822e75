package postgres

import (
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilderNumbersPlaceholders(t *testing.T) {
	since := time.Unix(100, 0)
	var q queryBuilder
	q.add("SELECT * FROM price_ticks WHERE pair = ?", "BTC/USD")
	q.add(" AND ts_ms >= ?", since.UnixMilli())
	q.page(domain.ListOpts{Limit: 10, Offset: 20})

	assert.Equal(t, "SELECT * FROM price_ticks WHERE pair = $1 AND ts_ms >= $2 LIMIT $3 OFFSET $4", q.sql())
	assert.Equal(t, []any{"BTC/USD", int64(100_000), 10, 20}, q.args)
}

func TestQueryBuilderNoPaging(t *testing.T) {
	var q queryBuilder
	q.add("SELECT 1")
	q.page(domain.ListOpts{})
	assert.Equal(t, "SELECT 1", q.sql())
	assert.Empty(t, q.args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/desk?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "desk"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}
