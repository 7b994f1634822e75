package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

var errBackend = &domain.RequestError{Op: "test", Status: 500, Message: "Internal Server Error"}

func testOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// fakeGateway is a scripted Gateway.
type fakeGateway struct {
	mu sync.Mutex

	orders     []domain.Order
	ordersErr  error
	created    domain.Order
	createErr  error
	createReqs []domain.OrderRequest

	prices    domain.MarketPrices
	pricesErr error
	news      []domain.NewsArticle
	newsErr   error

	stats   domain.Stats
	demo    domain.DemoAccount
	acctErr error

	analysis    domain.MarketAnalysis
	analysisErr error
	recs        []domain.Recommendation
	recsErr     error

	sim        domain.Simulation
	simErr     error
	preds      []domain.Prediction
	predsErr   error
	tradeRes   domain.SimTradeResult
	tradeErr   error
	tradeReqs  []domain.SimTradeRequest
	chatReply  string
	chatErr    error
	chatCalls  int
	block      chan struct{}
	calls      map[string]int
}

func (g *fakeGateway) hit(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[op]++
}

func (g *fakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) wait(ctx context.Context) error {
	if g.block == nil {
		return nil
	}
	select {
	case <-g.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGateway) ListOrders(ctx context.Context) ([]domain.Order, error) {
	g.hit("orders")
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return append([]domain.Order(nil), g.orders...), g.ordersErr
}

func (g *fakeGateway) CreateOrder(_ context.Context, req domain.OrderRequest) (domain.Order, error) {
	g.hit("create")
	g.mu.Lock()
	g.createReqs = append(g.createReqs, req)
	g.mu.Unlock()
	return g.created, g.createErr
}

func (g *fakeGateway) GetCryptoPrices(context.Context) (domain.MarketPrices, error) {
	g.hit("prices")
	return g.prices, g.pricesErr
}

func (g *fakeGateway) GetCryptoNews(context.Context) ([]domain.NewsArticle, error) {
	g.hit("news")
	return g.news, g.newsErr
}

func (g *fakeGateway) GetStats(context.Context) (domain.Stats, error) {
	g.hit("stats")
	return g.stats, g.acctErr
}

func (g *fakeGateway) GetDemoAccount(context.Context) (domain.DemoAccount, error) {
	g.hit("demo")
	return g.demo, g.acctErr
}

func (g *fakeGateway) GetAnalysis(_ context.Context, symbol string) (domain.MarketAnalysis, error) {
	g.hit("analysis:" + symbol)
	return g.analysis, g.analysisErr
}

func (g *fakeGateway) GetRecommendations(_ context.Context, symbol string) ([]domain.Recommendation, error) {
	g.hit("recommendations:" + symbol)
	return g.recs, g.recsErr
}

func (g *fakeGateway) GetCurrentSimulation(context.Context) (domain.Simulation, error) {
	g.hit("simulation")
	return g.sim, g.simErr
}

func (g *fakeGateway) GetPredictions(_ context.Context, symbol string) ([]domain.Prediction, error) {
	g.hit("predictions:" + symbol)
	return g.preds, g.predsErr
}

func (g *fakeGateway) SimulateTrade(_ context.Context, req domain.SimTradeRequest) (domain.SimTradeResult, error) {
	g.hit("trade")
	g.mu.Lock()
	g.tradeReqs = append(g.tradeReqs, req)
	g.mu.Unlock()
	return g.tradeRes, g.tradeErr
}

func (g *fakeGateway) Chat(_ context.Context, message string) (string, error) {
	g.hit("chat")
	if g.chatErr != nil {
		return "", g.chatErr
	}
	if g.chatReply != "" {
		return g.chatReply, nil
	}
	return "", errors.New("no reply scripted")
}

var _ Gateway = (*fakeGateway)(nil)
