package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/auth"
	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestListOrdersSendsBearerToken(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"orders":[
			{"id":42,"pair":"BTC/USD","amount":0.5,"price":"43000.10","type":"buy","status":"pending","createdAt":"2024-05-01T10:00:00Z"},
			{"id":43,"pair":"ETH/USD","amount":2,"price":3000,"type":"SELL","status":"Completed","createdAt":1714557600000}
		]}`)
	})

	c := NewClient(srv.URL, auth.StaticTokenSource("tok-123"))
	orders, err := c.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, int64(42), orders[0].ID)
	assert.Equal(t, domain.OrderSideBuy, orders[0].Side)
	assert.Equal(t, domain.OrderStatusPending, orders[0].Status)
	assert.True(t, orders[0].Price.Equal(decimal.RequireFromString("43000.10")))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), orders[0].CreatedAt.UTC())

	assert.Equal(t, domain.OrderSideSell, orders[1].Side)
	assert.Equal(t, domain.OrderStatusCompleted, orders[1].Status)
	assert.Equal(t, int64(1714557600000), orders[1].CreatedAt.UnixMilli())
}

func TestAuthMissingDoesNotSendRequest(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	cases := map[string]auth.TokenSource{
		"nil source":   nil,
		"empty token":  auth.StaticTokenSource("  "),
		"source error": auth.TokenFunc(func(context.Context) (string, error) { return "", errors.New("idp down") }),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewClient(srv.URL, src)
			_, err := c.GetStats(context.Background())
			require.Error(t, err)

			var reqErr *domain.RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, 0, reqErr.Status)
			assert.True(t, errors.Is(err, domain.ErrRequestFailed))
			assert.True(t, errors.Is(err, domain.ErrAuthMissing))
		})
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestPublicEndpointsNeedNoToken(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"bitcoin":{"usd":64000.5,"usd_24h_change":-1.25},"ethereum":{"usd":3100,"usd_24h_change":2.5}}`)
	})

	c := NewClient(srv.URL, nil)
	prices, err := c.GetCryptoPrices(context.Background())
	require.NoError(t, err)
	require.Contains(t, prices, "bitcoin")
	assert.True(t, prices["bitcoin"].USD.Equal(decimal.RequireFromString("64000.5")))
	assert.True(t, prices["bitcoin"].Change24h.Equal(decimal.RequireFromString("-1.25")))
}

func TestNon2xxBecomesRequestError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"insufficient balance"}`)
	})

	c := NewClient(srv.URL, auth.StaticTokenSource("tok"))
	_, err := c.CreateOrder(context.Background(), domain.OrderRequest{
		Pair:   "BTC/USD",
		Amount: decimal.NewFromInt(1),
		Side:   domain.OrderSideBuy,
		Price:  decimal.NewFromInt(100),
	})

	var reqErr *domain.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Equal(t, "insufficient balance", reqErr.Message)
	assert.Equal(t, "orders.create: HTTP 400: insufficient balance", reqErr.Error())
	assert.True(t, errors.Is(err, domain.ErrRequestFailed))
}

func TestNoRetries(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(srv.URL, nil)
	_, err := c.GetCryptoNews(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())

	var reqErr *domain.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.Status)
	assert.Equal(t, "Service Unavailable", reqErr.Message)
}

func TestNetworkFailureIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil, WithTimeout(time.Second))
	_, err := c.GetCryptoNews(context.Background())

	var reqErr *domain.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 0, reqErr.Status)
	assert.NotNil(t, reqErr.Err)
}

func TestCreateOrderPostsBodyAndFillsGaps(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ETH/USD", body["pair"])
		assert.Equal(t, "sell", body["type"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":77,"status":"pending"}`)
	})

	c := NewClient(srv.URL, auth.StaticTokenSource("tok"))
	order, err := c.CreateOrder(context.Background(), domain.OrderRequest{
		Pair:   "ETH/USD",
		Amount: decimal.RequireFromString("1.5"),
		Side:   domain.OrderSideSell,
		Price:  decimal.NewFromInt(3000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), order.ID)
	assert.Equal(t, "ETH/USD", order.Pair)
	assert.Equal(t, domain.OrderSideSell, order.Side)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("1.5")))
	assert.False(t, order.CreatedAt.IsZero())
}

func TestCreateOrderValidatesLocally(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", auth.StaticTokenSource("tok"))
	_, err := c.CreateOrder(context.Background(), domain.OrderRequest{Pair: "BTC/USD", Side: domain.OrderSideBuy})
	assert.True(t, errors.Is(err, domain.ErrInvalidOrder))
	assert.True(t, errors.Is(err, domain.ErrRequestFailed))
}

func TestSymbolEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ai/analysis/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC", r.PathValue("symbol"))
		_, _ = io.WriteString(w, `{"symbol":"BTC","trend":{"direction":"up","strength":0.7},"support":[40000],"resistance":[45000],"volatility":0.12,"lastUpdate":"2024-05-01T00:00:00Z"}`)
	})
	mux.HandleFunc("GET /api/ai/recommendations/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"type":"buy","confidence":0.75,"reason":"strong support","price":42000}]`)
	})
	mux.HandleFunc("GET /api/predictions/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"p1","symbol":"BTC","predictedPrice":65000,"confidence":0.8,"timeframe":"24h","createdAt":"2024-05-01T00:00:00Z"}]`)
	})
	mux.HandleFunc("GET /api/simulation/current", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"s1","userId":"u1","initialBalance":10000,"currentBalance":10250,"trades":[{"id":"t1","type":"buy","amount":0.1,"price":60000,"timestamp":"2024-05-01T00:00:00Z","pnl":250}],"performance":{"totalPnL":250,"winRate":1,"avgReturn":0.025}}`)
	})
	mux.HandleFunc("POST /api/simulation/trade", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"t2","type":"sell","amount":0.1,"price":65000,"timestamp":"2024-05-02T00:00:00Z","newBalance":10750}`)
	})
	mux.HandleFunc("POST /api/chatbot", func(w http.ResponseWriter, r *http.Request) {
		var req APIChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = io.WriteString(w, `{"response":"echo: `+req.Message+`"}`)
	})
	srv := newTestServer(t, mux.ServeHTTP)

	c := NewClient(srv.URL, nil, WithRateLimit(1000, 10))
	ctx := context.Background()

	analysis, err := c.GetAnalysis(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "up", analysis.Trend.Direction)
	require.Len(t, analysis.Support, 1)

	recs, err := c.GetRecommendations(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "strong support", recs[0].Reason)

	preds, err := c.GetPredictions(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.True(t, preds[0].PredictedPrice.Equal(decimal.NewFromInt(65000)))
	assert.False(t, preds[0].ActualPrice.Valid)

	sim, err := c.GetCurrentSimulation(ctx)
	require.NoError(t, err)
	require.Len(t, sim.Trades, 1)
	assert.True(t, sim.Trades[0].PnL.Valid)

	res, err := c.SimulateTrade(ctx, domain.SimTradeRequest{Side: domain.OrderSideSell, Amount: decimal.RequireFromString("0.1"), Symbol: "BTC", Price: decimal.NewFromInt(65000)})
	require.NoError(t, err)
	assert.Equal(t, "t2", res.Trade.ID)
	require.True(t, res.NewBalance.Valid)
	assert.True(t, res.NewBalance.Decimal.Equal(decimal.NewFromInt(10750)))

	reply, err := c.Chat(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", reply)
}

func TestStatsAndDemoAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"totalVolume":1500.5,"totalProfitLoss":-20,"successRate":62.5,"performanceByPair":{"BTC/USD":12.5}}`)
	})
	mux.HandleFunc("GET /api/demo-account", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"balance":10000,"transactions":[{"type":"buy","amount":1,"pair":"BTC/USD","price":60000}]}`)
	})
	srv := newTestServer(t, mux.ServeHTTP)

	c := NewClient(srv.URL, auth.StaticTokenSource("tok"))

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "62.5", stats.SuccessRate)
	assert.True(t, stats.PerformanceByPair["BTC/USD"].Equal(decimal.RequireFromString("12.5")))

	acct, err := c.GetDemoAccount(context.Background())
	require.NoError(t, err)
	require.Len(t, acct.Transactions, 1)
	assert.Equal(t, domain.OrderSideBuy, acct.Transactions[0].Side)
}

func TestDecodeFailureIsRequestError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"news": "not-a-list"}`)
	})

	c := NewClient(srv.URL, nil)
	_, err := c.GetCryptoNews(context.Background())
	assert.True(t, errors.Is(err, domain.ErrRequestFailed))
	assert.True(t, errors.Is(err, domain.ErrDecode))
}

func TestSimulateTradeWithoutBalance(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"t1","type":"buy","amount":1,"price":65000}`)
	})

	c := NewClient(srv.URL, nil)
	res, err := c.SimulateTrade(context.Background(), domain.SimTradeRequest{Side: domain.OrderSideBuy, Amount: decimal.NewFromInt(1), Symbol: "BTC", Price: decimal.NewFromInt(65000)})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Trade.ID)
	assert.False(t, res.NewBalance.Valid)
}
