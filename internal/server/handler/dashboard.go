package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/session"
	"github.com/alanyoungcy/tradedesk/internal/view"
	"github.com/shopspring/decimal"
)

// DashboardHandler exposes the mounted session: snapshots for presentation
// and the user actions (orders, simulated trades, chat, manual refresh).
type DashboardHandler struct {
	s      *session.Session
	logger *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler over s.
func NewDashboardHandler(s *session.Session, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		s:      s,
		logger: logger.With(slog.String("handler", "dashboard")),
	}
}

// Snapshot returns every container at once.
// GET /api/view/snapshot
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.s.Snapshot())
}

// OrderPage returns one page of the order history.
// GET /api/view/orders?page=1
func (h *DashboardHandler) OrderPage(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = n
	}
	writeJSON(w, http.StatusOK, h.s.Orders.Page(page))
}

type submitOrderRequest struct {
	Pair   string          `json:"pair"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
	Price  decimal.Decimal `json:"price"`
}

// SubmitOrder places an order through the backend.
// POST /api/view/orders
func (h *DashboardHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var body submitOrderRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	side, ok := domain.ParseOrderSide(body.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "type must be buy or sell")
		return
	}

	order, err := h.s.Orders.Submit(r.Context(), domain.OrderRequest{
		Pair:   strings.TrimSpace(body.Pair),
		Amount: body.Amount,
		Side:   side,
		Price:  body.Price,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "submit order failed", slog.String("error", err.Error()))
		writeBackendError(w, err, "failed to submit order")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Chart returns chart points for a pair and range.
// GET /api/view/chart?pair=BTC/USD&range=24h
func (h *DashboardHandler) Chart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pair := q.Get("pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "pair query parameter required")
		return
	}
	rng := view.Range24h
	if v := q.Get("range"); v != "" {
		parsed, err := view.ParseRange(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng = parsed
	}
	points := h.s.Chart(pair, rng)
	if points == nil {
		points = []view.ChartPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":   pair,
		"range":  rng,
		"points": points,
	})
}

type simTradeRequest struct {
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
}

// SimulateTrade executes a paper trade at the latest predicted price.
// POST /api/view/simulation/trade
func (h *DashboardHandler) SimulateTrade(w http.ResponseWriter, r *http.Request) {
	var body simTradeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	side, ok := domain.ParseOrderSide(body.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	trade, err := h.s.Simulation.ExecuteTrade(r.Context(), side, body.Amount)
	if err != nil {
		writeBackendError(w, err, "failed to execute trade")
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat sends a message to the assistant and returns the conversation.
// POST /api/view/chat
func (h *DashboardHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	// A failed reply is already part of the conversation as a bot message.
	_ = h.s.Chat.Send(r.Context(), body.Message)
	writeJSON(w, http.StatusOK, h.s.Chat.Snapshot())
}

// Refresh reloads one container on demand.
// POST /api/view/refresh/{resource}
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("resource")
	refresh, ok := h.refreshers()[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource "+strconv.Quote(name))
		return
	}
	if err := refresh(r.Context()); err != nil {
		writeBackendError(w, err, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed", "resource": name})
}

func (h *DashboardHandler) refreshers() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"orders":        h.s.Orders.Load,
		"market_prices": h.s.Market.Refresh,
		"news":          h.s.News.Refresh,
		"analysis":      h.s.Analysis.Refresh,
		"simulation":    h.s.Simulation.Refresh,
		"stats":         h.s.Stats.Refresh,
		"demo_account":  h.s.DemoAccount.Refresh,
	}
}
