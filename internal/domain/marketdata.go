package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CoinQuote is a spot price with its 24h change in percent.
type CoinQuote struct {
	USD       decimal.Decimal `json:"usd"`
	Change24h decimal.Decimal `json:"usd_24h_change"`
}

// MarketPrices is the /api/crypto-prices payload keyed by coin id
// ("bitcoin", "ethereum", ...).
type MarketPrices map[string]CoinQuote

// NewsArticle is one crypto news headline.
type NewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Trend is the direction and strength of the AI-detected market trend.
type Trend struct {
	Direction string  `json:"direction"` // "up", "down" or "neutral"
	Strength  float64 `json:"strength"`
}

// MarketAnalysis is the AI commentary for a symbol.
type MarketAnalysis struct {
	Symbol     string            `json:"symbol"`
	Trend      Trend             `json:"trend"`
	Support    []decimal.Decimal `json:"support"`
	Resistance []decimal.Decimal `json:"resistance"`
	Volatility float64           `json:"volatility"`
	LastUpdate time.Time         `json:"last_update"`
}

// Recommendation is an AI trade suggestion.
type Recommendation struct {
	Type       string          `json:"type"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
	Price      decimal.Decimal `json:"price"`
}
