package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// OrdersPerPage is the order history page size.
const OrdersPerPage = 5

// OrdersView holds the user's orders. Status is the only field it mutates
// after an order is added, and only from a matching completion event.
type OrdersView struct {
	gw       OrdersGateway
	logger   *slog.Logger
	messages Messages

	mu          sync.RWMutex
	orders      []domain.Order
	state       LoadState
	submitError string
}

// OrdersSnapshot is a copy of the orders state.
type OrdersSnapshot struct {
	Load        LoadState      `json:"load"`
	Orders      []domain.Order `json:"orders"`
	SubmitError string         `json:"submit_error,omitempty"`
}

// OrderPage is one page of order history.
type OrderPage struct {
	Orders      []domain.Order `json:"orders"`
	Page        int            `json:"page"`
	TotalPages  int            `json:"total_pages"`
	TotalOrders int            `json:"total_orders"`
}

// NewOrdersView creates the orders container in the loading state.
func NewOrdersView(gw OrdersGateway, opts Options) *OrdersView {
	opts = opts.withDefaults()
	return &OrdersView{
		gw:       gw,
		logger:   opts.Logger.With(slog.String("component", "view"), slog.String("view", "orders")),
		messages: opts.Messages,
		state:    loadingState(),
	}
}

// Load fetches the order list once and replaces the local copy.
func (v *OrdersView) Load(ctx context.Context) error {
	orders, err := v.gw.ListOrders(ctx)
	if torn(ctx) {
		return ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.state = failedState(v.messages.Get(MsgOrdersLoadFailed))
		v.logger.Warn("load orders failed", slog.String("error", err.Error()))
		return fmt.Errorf("view: orders: %w", err)
	}
	v.orders = orders
	v.state = readyState()
	return nil
}

// ApplyCompletions sets the status of every held order whose id matches a
// completion. Unknown ids are ignored. It returns the number of orders
// updated.
func (v *OrdersView) ApplyCompletions(completions []domain.OrderCompletion) int {
	if len(completions) == 0 {
		return 0
	}
	status := make(map[int64]domain.OrderStatus, len(completions))
	for _, c := range completions {
		status[c.ID] = c.Status
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	updated := 0
	for i := range v.orders {
		if s, ok := status[v.orders[i].ID]; ok {
			v.orders[i].Status = s
			updated++
		}
	}
	return updated
}

// Submit places a new order and appends it on success.
func (v *OrdersView) Submit(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	order, err := v.gw.CreateOrder(ctx, req)
	if torn(ctx) {
		return domain.Order{}, ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.submitError = v.messages.Get(MsgOrderSubmitFailed)
		v.logger.Warn("submit order failed",
			slog.String("pair", req.Pair),
			slog.String("error", err.Error()),
		)
		return domain.Order{}, fmt.Errorf("view: submit order: %w", err)
	}
	v.submitError = ""
	v.orders = append(v.orders, order)
	return order, nil
}

// Snapshot returns a copy of the orders state.
func (v *OrdersView) Snapshot() OrdersSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return OrdersSnapshot{
		Load:        v.state,
		Orders:      cloneSlice(v.orders),
		SubmitError: v.submitError,
	}
}

// Page returns page n (1-based) of the order history. n is clamped to
// [1, TotalPages]; an empty history has a single empty page.
func (v *OrdersView) Page(n int) OrderPage {
	v.mu.RLock()
	defer v.mu.RUnlock()

	total := len(v.orders)
	pages := (total + OrdersPerPage - 1) / OrdersPerPage
	if pages < 1 {
		pages = 1
	}
	n = min(max(n, 1), pages)

	start := (n - 1) * OrdersPerPage
	end := min(start+OrdersPerPage, total)

	return OrderPage{
		Orders:      append([]domain.Order{}, v.orders[start:end]...),
		Page:        n,
		TotalPages:  pages,
		TotalOrders: total,
	}
}
