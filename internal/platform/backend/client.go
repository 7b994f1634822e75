package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/auth"
	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// Client is the REST gateway to the trading backend. Each method issues
// exactly one request; there are no retries at this layer. Every failure is
// a *domain.RequestError.
type Client struct {
	http    *resty.Client
	tokens  auth.TokenSource
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRateLimit paces outbound requests to rps with the given burst. A
// non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics instruments requests.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a gateway for the backend at baseURL, e.g.
// "https://crypto-trading-platform-backend.onrender.com".
func NewClient(baseURL string, tokens auth.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(defaultTimeout),
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOrders fetches the signed-in user's orders.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var resp APIOrdersResponse
	if err := c.do(ctx, call{op: "orders.list", method: http.MethodGet, path: "/api/orders", auth: true}, &resp); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, resp.Orders[i].ToDomainOrder())
	}
	return orders, nil
}

// CreateOrder submits a new order. Fields missing from the backend's reply
// are filled from the request.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, &domain.RequestError{Op: "orders.create", Message: err.Error(), Err: err}
	}

	body := APIOrderRequest{
		Pair:   req.Pair,
		Amount: req.Amount,
		Type:   string(req.Side),
		Price:  req.Price,
	}
	var created APIOrder
	if err := c.do(ctx, call{op: "orders.create", method: http.MethodPost, path: "/api/orders", auth: true, body: body}, &created); err != nil {
		return domain.Order{}, err
	}

	order := created.ToDomainOrder()
	if order.Pair == "" {
		order.Pair = req.Pair
	}
	if order.Amount.IsZero() {
		order.Amount = req.Amount
	}
	if order.Price.IsZero() {
		order.Price = req.Price
	}
	if created.Type == "" {
		order.Side = req.Side
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	return order, nil
}

// GetStats fetches the user's trading statistics.
func (c *Client) GetStats(ctx context.Context) (domain.Stats, error) {
	var resp APIStats
	if err := c.do(ctx, call{op: "stats.get", method: http.MethodGet, path: "/api/stats", auth: true}, &resp); err != nil {
		return domain.Stats{}, err
	}
	return resp.ToDomainStats(), nil
}

// GetDemoAccount fetches the paper-trading account.
func (c *Client) GetDemoAccount(ctx context.Context) (domain.DemoAccount, error) {
	var resp APIDemoAccount
	if err := c.do(ctx, call{op: "demo_account.get", method: http.MethodGet, path: "/api/demo-account", auth: true}, &resp); err != nil {
		return domain.DemoAccount{}, err
	}
	return resp.ToDomainDemoAccount(), nil
}

// GetCryptoPrices fetches spot prices keyed by coin id.
func (c *Client) GetCryptoPrices(ctx context.Context) (domain.MarketPrices, error) {
	var resp map[string]APICoinQuote
	if err := c.do(ctx, call{op: "crypto_prices.get", method: http.MethodGet, path: "/api/crypto-prices"}, &resp); err != nil {
		return nil, err
	}
	prices := make(domain.MarketPrices, len(resp))
	for coin, q := range resp {
		prices[coin] = domain.CoinQuote{USD: q.USD, Change24h: q.Change24h}
	}
	return prices, nil
}

// GetCryptoNews fetches the latest headlines.
func (c *Client) GetCryptoNews(ctx context.Context) ([]domain.NewsArticle, error) {
	var resp APINewsResponse
	if err := c.do(ctx, call{op: "crypto_news.get", method: http.MethodGet, path: "/api/crypto-news"}, &resp); err != nil {
		return nil, err
	}
	return resp.ToDomainNews(), nil
}

// GetAnalysis fetches the AI market analysis for symbol.
func (c *Client) GetAnalysis(ctx context.Context, symbol string) (domain.MarketAnalysis, error) {
	var resp APIAnalysis
	err := c.do(ctx, call{
		op:         "ai.analysis",
		method:     http.MethodGet,
		path:       "/api/ai/analysis/{symbol}",
		pathParams: map[string]string{"symbol": symbol},
	}, &resp)
	if err != nil {
		return domain.MarketAnalysis{}, err
	}
	analysis := resp.ToDomainAnalysis()
	if analysis.Symbol == "" {
		analysis.Symbol = symbol
	}
	return analysis, nil
}

// GetRecommendations fetches AI trade recommendations for symbol.
func (c *Client) GetRecommendations(ctx context.Context, symbol string) ([]domain.Recommendation, error) {
	var resp []APIRecommendation
	err := c.do(ctx, call{
		op:         "ai.recommendations",
		method:     http.MethodGet,
		path:       "/api/ai/recommendations/{symbol}",
		pathParams: map[string]string{"symbol": symbol},
	}, &resp)
	if err != nil {
		return nil, err
	}
	recs := make([]domain.Recommendation, 0, len(resp))
	for i := range resp {
		recs = append(recs, resp[i].ToDomainRecommendation())
	}
	return recs, nil
}

// GetCurrentSimulation fetches the running paper-trading simulation.
func (c *Client) GetCurrentSimulation(ctx context.Context) (domain.Simulation, error) {
	var resp APISimulation
	if err := c.do(ctx, call{op: "simulation.current", method: http.MethodGet, path: "/api/simulation/current"}, &resp); err != nil {
		return domain.Simulation{}, err
	}
	return resp.ToDomainSimulation(), nil
}

// GetPredictions fetches model price predictions for symbol.
func (c *Client) GetPredictions(ctx context.Context, symbol string) ([]domain.Prediction, error) {
	var resp []APIPrediction
	err := c.do(ctx, call{
		op:         "predictions.list",
		method:     http.MethodGet,
		path:       "/api/predictions/{symbol}",
		pathParams: map[string]string{"symbol": symbol},
	}, &resp)
	if err != nil {
		return nil, err
	}
	preds := make([]domain.Prediction, 0, len(resp))
	for i := range resp {
		preds = append(preds, resp[i].ToDomainPrediction())
	}
	return preds, nil
}

// SimulateTrade executes a paper trade in the simulator.
func (c *Client) SimulateTrade(ctx context.Context, req domain.SimTradeRequest) (domain.SimTradeResult, error) {
	body := APISimTradeRequest{
		Type:   string(req.Side),
		Amount: req.Amount,
		Symbol: req.Symbol,
		Price:  req.Price,
	}
	var resp APISimTrade
	if err := c.do(ctx, call{op: "simulation.trade", method: http.MethodPost, path: "/api/simulation/trade", body: body}, &resp); err != nil {
		return domain.SimTradeResult{}, err
	}

	trade := resp.ToDomainSimTrade()
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.Side == "" {
		trade.Side = req.Side
	}
	if trade.Amount.IsZero() {
		trade.Amount = req.Amount
	}
	if trade.Price.IsZero() {
		trade.Price = req.Price
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now().UTC()
	}
	return domain.SimTradeResult{Trade: trade, NewBalance: resp.NewBalance}, nil
}

// Chat sends a message to the assistant and returns its reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var resp APIChatResponse
	if err := c.do(ctx, call{op: "chatbot.send", method: http.MethodPost, path: "/api/chatbot", body: APIChatRequest{Message: message}}, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

type call struct {
	op         string
	method     string
	path       string
	pathParams map[string]string
	auth       bool
	body       any
}

// do issues c and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	start := time.Now()
	status := 0
	defer func() {
		c.metrics.ObserveRequest(cl.op, status, time.Since(start))
	}()

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-Request-ID", uuid.NewString())

	if cl.auth {
		token, err := c.token(ctx)
		if err != nil {
			return &domain.RequestError{Op: cl.op, Message: "auth token unavailable", Err: err}
		}
		r.SetAuthToken(token)
	}
	if len(cl.pathParams) > 0 {
		r.SetPathParams(cl.pathParams)
	}
	if cl.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &domain.RequestError{Op: cl.op, Err: err}
		}
	}

	resp, err := r.Execute(cl.method, cl.path)
	if err != nil {
		return &domain.RequestError{Op: cl.op, Err: err}
	}
	status = resp.StatusCode()

	if !resp.IsSuccess() {
		return &domain.RequestError{Op: cl.op, Status: status, Message: errorMessage(resp)}
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &domain.RequestError{Op: cl.op, Message: "decode response", Err: fmt.Errorf("%w: %v", domain.ErrDecode, err)}
	}
	return nil
}

// token fetches the bearer token, mapping every failure to ErrAuthMissing.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", domain.ErrAuthMissing
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuthMissing) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAuthMissing, err)
	}
	if strings.TrimSpace(token) == "" {
		return "", domain.ErrAuthMissing
	}
	return token, nil
}

// errorMessage extracts {error} or {message} from a failed response, falling
// back to the status text.
func errorMessage(resp *resty.Response) string {
	var apiErr APIError
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.text() != "" {
		return apiErr.text()
	}
	if text := strings.TrimSpace(string(resp.Body())); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(resp.StatusCode())
}
