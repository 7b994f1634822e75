package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
)

// EventSource reads recorded feed events and cached prices.
type EventSource interface {
	RecentEvents(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error)
	LatestPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error)
}

// HistoryHandler serves what record mode has persisted.
type HistoryHandler struct {
	prices domain.PriceStore
	orders domain.OrderStore
	events EventSource
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(prices domain.PriceStore, orders domain.OrderStore, events EventSource, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		prices: prices,
		orders: orders,
		events: events,
		logger: logger.With(slog.String("handler", "history")),
	}
}

// Prices lists stored ticks for a pair.
// GET /api/history/prices?pair=BTC/USD&since=<unix ms>&limit=50
func (h *HistoryHandler) Prices(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "pair query parameter required")
		return
	}
	opts := parseListOpts(r)
	if v := r.URL.Query().Get("since"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be unix milliseconds")
			return
		}
		since := time.UnixMilli(ms)
		opts.Since = &since
	}

	ticks, err := h.prices.ListByPair(r.Context(), pair, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list prices failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}
	if ticks == nil {
		ticks = []domain.PriceUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pair": pair, "prices": ticks})
}

// Orders lists stored orders newest first.
// GET /api/history/orders?limit=50&offset=0
func (h *HistoryHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list orders failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Events pages through the recorded feed stream.
// GET /api/history/events?after=0&count=100
func (h *HistoryHandler) Events(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	count := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && n > 0 && n <= 1000 {
		count = n
	}

	msgs, err := h.events.RecentEvents(r.Context(), after, count)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	type event struct {
		ID    string          `json:"id"`
		Event json.RawMessage `json:"event"`
	}
	out := make([]event, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, event{ID: m.ID, Event: json.RawMessage(m.Payload)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// LatestPrices reads the cached latest price per pair.
// GET /api/history/latest?pairs=BTC/USD,ETH/USD
func (h *HistoryHandler) LatestPrices(w http.ResponseWriter, r *http.Request) {
	var pairs []string
	for _, p := range strings.Split(r.URL.Query().Get("pairs"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			pairs = append(pairs, p)
		}
	}
	if len(pairs) == 0 {
		writeError(w, http.StatusBadRequest, "pairs query parameter required")
		return
	}

	prices, err := h.events.LatestPrices(r.Context(), pairs)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "latest prices failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read prices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}
