package view

import (
	"context"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// OrdersGateway is the backend surface OrdersView needs.
type OrdersGateway interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
}

// MarketGateway serves prices and news.
type MarketGateway interface {
	GetCryptoPrices(ctx context.Context) (domain.MarketPrices, error)
	GetCryptoNews(ctx context.Context) ([]domain.NewsArticle, error)
}

// AccountGateway serves the signed-in user's account data.
type AccountGateway interface {
	GetStats(ctx context.Context) (domain.Stats, error)
	GetDemoAccount(ctx context.Context) (domain.DemoAccount, error)
}

// AnalysisGateway serves AI commentary.
type AnalysisGateway interface {
	GetAnalysis(ctx context.Context, symbol string) (domain.MarketAnalysis, error)
	GetRecommendations(ctx context.Context, symbol string) ([]domain.Recommendation, error)
}

// SimulationGateway serves the paper-trading simulator.
type SimulationGateway interface {
	GetCurrentSimulation(ctx context.Context) (domain.Simulation, error)
	GetPredictions(ctx context.Context, symbol string) ([]domain.Prediction, error)
	SimulateTrade(ctx context.Context, req domain.SimTradeRequest) (domain.SimTradeResult, error)
}

// ChatGateway serves the assistant.
type ChatGateway interface {
	Chat(ctx context.Context, message string) (string, error)
}

// Gateway is everything the dashboard reads from the backend.
type Gateway interface {
	OrdersGateway
	MarketGateway
	AccountGateway
	AnalysisGateway
	SimulationGateway
	ChatGateway
}
