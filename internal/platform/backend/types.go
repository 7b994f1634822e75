package backend

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
)

// flexTime unmarshals from an RFC3339 string, a numeric string or a JSON
// number of unix milliseconds. The backend is not consistent about which.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*f = flexTime(time.UnixMilli(ms))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexTime(time.UnixMilli(n))
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s}
}

func (f flexTime) Time() time.Time { return time.Time(f) }

// --------------------------------------------------------------------------
// Stream messages
// --------------------------------------------------------------------------

// StreamEnvelope carries the discriminator of every server->client frame.
type StreamEnvelope struct {
	Type string `json:"type"`
}

// PriceUpdateMessage is a price_update frame.
type PriceUpdateMessage struct {
	Type      string          `json:"type"`
	Pair      string          `json:"pair"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

// OrderCompletedMessage is an order_completed frame.
type OrderCompletedMessage struct {
	Type   string `json:"type"`
	Orders []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"orders"`
}

// pingMessage is the client heartbeat frame.
type pingMessage struct {
	Type string `json:"type"`
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// APIOrder is an order as returned by /api/orders.
type APIOrder struct {
	ID        int64           `json:"id"`
	Pair      string          `json:"pair"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	CreatedAt flexTime        `json:"createdAt"`
}

// APIOrdersResponse is the body of GET /api/orders.
type APIOrdersResponse struct {
	Orders []APIOrder `json:"orders"`
}

// APIOrderRequest is the body of POST /api/orders.
type APIOrderRequest struct {
	Pair   string          `json:"pair"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
	Price  decimal.Decimal `json:"price"`
}

// APIError is the {error} body the backend returns on failure.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// APIStats is the body of GET /api/stats.
type APIStats struct {
	TotalVolume       decimal.Decimal            `json:"totalVolume"`
	TotalProfitLoss   decimal.Decimal            `json:"totalProfitLoss"`
	SuccessRate       json.Number                `json:"successRate"`
	PerformanceByPair map[string]decimal.Decimal `json:"performanceByPair"`
}

// APIDemoAccount is the body of GET /api/demo-account.
type APIDemoAccount struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []struct {
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
		Pair   string          `json:"pair"`
		Price  decimal.Decimal `json:"price"`
	} `json:"transactions"`
}

// APICoinQuote is one entry of GET /api/crypto-prices.
type APICoinQuote struct {
	USD       decimal.Decimal `json:"usd"`
	Change24h decimal.Decimal `json:"usd_24h_change"`
}

// APINewsResponse is the body of GET /api/crypto-news.
type APINewsResponse struct {
	News []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
	} `json:"news"`
}

// APIAnalysis is the body of GET /api/ai/analysis/:symbol.
type APIAnalysis struct {
	Symbol string `json:"symbol"`
	Trend  struct {
		Direction string  `json:"direction"`
		Strength  float64 `json:"strength"`
	} `json:"trend"`
	Support    []decimal.Decimal `json:"support"`
	Resistance []decimal.Decimal `json:"resistance"`
	Volatility float64           `json:"volatility"`
	LastUpdate flexTime          `json:"lastUpdate"`
}

// APIRecommendation is one entry of GET /api/ai/recommendations/:symbol.
type APIRecommendation struct {
	Type       string          `json:"type"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
	Price      decimal.Decimal `json:"price"`
}

// APISimTrade is a simulator trade; the trade endpoint adds newBalance.
type APISimTrade struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Amount     decimal.Decimal     `json:"amount"`
	Price      decimal.Decimal     `json:"price"`
	Timestamp  flexTime            `json:"timestamp"`
	PnL        decimal.NullDecimal `json:"pnl"`
	NewBalance decimal.NullDecimal `json:"newBalance"`
}

// APISimulation is the body of GET /api/simulation/current.
type APISimulation struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	Trades         []APISimTrade   `json:"trades"`
	Performance    struct {
		TotalPnL  decimal.Decimal `json:"totalPnL"`
		WinRate   float64         `json:"winRate"`
		AvgReturn float64         `json:"avgReturn"`
	} `json:"performance"`
}

// APIPrediction is one entry of GET /api/predictions/:symbol.
type APIPrediction struct {
	ID             string              `json:"id"`
	Symbol         string              `json:"symbol"`
	PredictedPrice decimal.Decimal     `json:"predictedPrice"`
	Confidence     float64             `json:"confidence"`
	Timeframe      string              `json:"timeframe"`
	ActualPrice    decimal.NullDecimal `json:"actualPrice"`
	Accuracy       *float64            `json:"accuracy,omitempty"`
	CreatedAt      flexTime            `json:"createdAt"`
}

// APISimTradeRequest is the body of POST /api/simulation/trade.
type APISimTradeRequest struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// APIChatRequest is the body of POST /api/chatbot.
type APIChatRequest struct {
	Message string `json:"message"`
}

// APIChatResponse is the reply of POST /api/chatbot.
type APIChatResponse struct {
	Response string `json:"response"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// ToDomainOrder converts an APIOrder to a domain.Order. An unrecognised side
// is kept verbatim in lower case.
func (a *APIOrder) ToDomainOrder() domain.Order {
	o := domain.Order{
		ID:        a.ID,
		Pair:      a.Pair,
		Amount:    a.Amount,
		Price:     a.Price,
		Status:    domain.NormalizeOrderStatus(a.Status),
		CreatedAt: a.CreatedAt.Time(),
	}
	if side, ok := domain.ParseOrderSide(a.Type); ok {
		o.Side = side
	} else {
		o.Side = domain.OrderSide(strings.ToLower(a.Type))
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	return o
}

// ToDomainStats converts an APIStats to domain.Stats.
func (s *APIStats) ToDomainStats() domain.Stats {
	perf := make(map[string]decimal.Decimal, len(s.PerformanceByPair))
	for pair, v := range s.PerformanceByPair {
		perf[pair] = v
	}
	return domain.Stats{
		TotalVolume:       s.TotalVolume,
		TotalProfitLoss:   s.TotalProfitLoss,
		SuccessRate:       s.SuccessRate.String(),
		PerformanceByPair: perf,
	}
}

// ToDomainDemoAccount converts an APIDemoAccount to domain.DemoAccount.
func (d *APIDemoAccount) ToDomainDemoAccount() domain.DemoAccount {
	acct := domain.DemoAccount{
		Balance:      d.Balance,
		Transactions: make([]domain.DemoTransaction, 0, len(d.Transactions)),
	}
	for _, tx := range d.Transactions {
		side, _ := domain.ParseOrderSide(tx.Type)
		acct.Transactions = append(acct.Transactions, domain.DemoTransaction{
			Side:   side,
			Amount: tx.Amount,
			Pair:   tx.Pair,
			Price:  tx.Price,
		})
	}
	return acct
}

// ToDomainNews converts an APINewsResponse to domain news articles.
func (n *APINewsResponse) ToDomainNews() []domain.NewsArticle {
	out := make([]domain.NewsArticle, 0, len(n.News))
	for _, a := range n.News {
		out = append(out, domain.NewsArticle{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
		})
	}
	return out
}

// ToDomainAnalysis converts an APIAnalysis to domain.MarketAnalysis.
func (a *APIAnalysis) ToDomainAnalysis() domain.MarketAnalysis {
	return domain.MarketAnalysis{
		Symbol:     a.Symbol,
		Trend:      domain.Trend{Direction: a.Trend.Direction, Strength: a.Trend.Strength},
		Support:    append([]decimal.Decimal(nil), a.Support...),
		Resistance: append([]decimal.Decimal(nil), a.Resistance...),
		Volatility: a.Volatility,
		LastUpdate: a.LastUpdate.Time(),
	}
}

// ToDomainRecommendation converts an APIRecommendation.
func (r *APIRecommendation) ToDomainRecommendation() domain.Recommendation {
	return domain.Recommendation{
		Type:       r.Type,
		Confidence: r.Confidence,
		Reason:     r.Reason,
		Price:      r.Price,
	}
}

// ToDomainSimTrade converts an APISimTrade to domain.SimTrade.
func (t *APISimTrade) ToDomainSimTrade() domain.SimTrade {
	side, _ := domain.ParseOrderSide(t.Type)
	return domain.SimTrade{
		ID:        t.ID,
		Side:      side,
		Amount:    t.Amount,
		Price:     t.Price,
		Timestamp: t.Timestamp.Time(),
		PnL:       t.PnL,
	}
}

// ToDomainSimulation converts an APISimulation to domain.Simulation.
func (s *APISimulation) ToDomainSimulation() domain.Simulation {
	sim := domain.Simulation{
		ID:             s.ID,
		UserID:         s.UserID,
		InitialBalance: s.InitialBalance,
		CurrentBalance: s.CurrentBalance,
		Trades:         make([]domain.SimTrade, 0, len(s.Trades)),
		Performance: domain.SimPerformance{
			TotalPnL:  s.Performance.TotalPnL,
			WinRate:   s.Performance.WinRate,
			AvgReturn: s.Performance.AvgReturn,
		},
	}
	for i := range s.Trades {
		sim.Trades = append(sim.Trades, s.Trades[i].ToDomainSimTrade())
	}
	return sim
}

// ToDomainPrediction converts an APIPrediction to domain.Prediction.
func (p *APIPrediction) ToDomainPrediction() domain.Prediction {
	return domain.Prediction{
		ID:             p.ID,
		Symbol:         p.Symbol,
		PredictedPrice: p.PredictedPrice,
		Confidence:     p.Confidence,
		Timeframe:      p.Timeframe,
		ActualPrice:    p.ActualPrice,
		Accuracy:       p.Accuracy,
		CreatedAt:      p.CreatedAt.Time(),
	}
}
