package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimTrade is a trade executed inside the simulator.
type SimTrade struct {
	ID        string               `json:"id"`
	Side      OrderSide            `json:"type"`
	Amount    decimal.Decimal      `json:"amount"`
	Price     decimal.Decimal      `json:"price"`
	Timestamp time.Time            `json:"timestamp"`
	PnL       decimal.NullDecimal  `json:"pnl"`
}

// SimPerformance aggregates simulator results.
type SimPerformance struct {
	TotalPnL  decimal.Decimal `json:"total_pnl"`
	WinRate   float64         `json:"win_rate"`
	AvgReturn float64         `json:"avg_return"`
}

// Simulation is the user's current paper-trading simulation.
type Simulation struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Trades         []SimTrade      `json:"trades"`
	Performance    SimPerformance  `json:"performance"`
}

// Prediction is a model price forecast for a symbol.
type Prediction struct {
	ID             string              `json:"id"`
	Symbol         string              `json:"symbol"`
	PredictedPrice decimal.Decimal     `json:"predicted_price"`
	Confidence     float64             `json:"confidence"`
	Timeframe      string              `json:"timeframe"`
	ActualPrice    decimal.NullDecimal `json:"actual_price"`
	Accuracy       *float64            `json:"accuracy,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// SimTradeRequest is the body of POST /api/simulation/trade.
type SimTradeRequest struct {
	Side   OrderSide
	Amount decimal.Decimal
	Symbol string
	Price  decimal.Decimal
}

// SimTradeResult is the executed trade plus the balance after it.
// NewBalance is invalid when the backend did not report one.
type SimTradeResult struct {
	Trade      SimTrade
	NewBalance decimal.NullDecimal
}
