package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id int64, status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:        id,
		Pair:      "BTC/USD",
		Amount:    decimal.NewFromInt(1),
		Price:     decimal.NewFromInt(100),
		Side:      domain.OrderSideBuy,
		Status:    status,
		CreatedAt: time.Unix(id, 0),
	}
}

func TestOrdersViewLoadStates(t *testing.T) {
	gw := &fakeGateway{orders: []domain.Order{order(1, domain.OrderStatusPending)}}
	v := NewOrdersView(gw, testOptions())

	assert.Equal(t, StatusLoading, v.Snapshot().Load.Status)

	require.NoError(t, v.Load(context.Background()))
	snap := v.Snapshot()
	assert.Equal(t, StatusReady, snap.Load.Status)
	assert.Len(t, snap.Orders, 1)
}

func TestOrdersViewLoadFailure(t *testing.T) {
	gw := &fakeGateway{ordersErr: errBackend}
	v := NewOrdersView(gw, testOptions())

	err := v.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRequestFailed))

	snap := v.Snapshot()
	assert.Equal(t, StatusFailed, snap.Load.Status)
	assert.Equal(t, English.Get(MsgOrdersLoadFailed), snap.Load.Error)
}

func TestOrdersViewMergesCompletionById(t *testing.T) {
	gw := &fakeGateway{orders: []domain.Order{
		order(41, domain.OrderStatusPending),
		order(42, domain.OrderStatusPending),
		order(43, domain.OrderStatusCancelled),
	}}
	v := NewOrdersView(gw, testOptions())
	require.NoError(t, v.Load(context.Background()))

	updated := v.ApplyCompletions([]domain.OrderCompletion{
		{ID: 42, Status: domain.OrderStatusCompleted},
		{ID: 999, Status: domain.OrderStatusCompleted},
	})
	assert.Equal(t, 1, updated)

	snap := v.Snapshot()
	require.Len(t, snap.Orders, 3)
	assert.Equal(t, order(41, domain.OrderStatusPending), snap.Orders[0])
	assert.Equal(t, order(42, domain.OrderStatusCompleted), snap.Orders[1])
	assert.Equal(t, order(43, domain.OrderStatusCancelled), snap.Orders[2])
}

func TestOrdersViewSnapshotIsACopy(t *testing.T) {
	gw := &fakeGateway{orders: []domain.Order{order(1, domain.OrderStatusPending)}}
	v := NewOrdersView(gw, testOptions())
	require.NoError(t, v.Load(context.Background()))

	snap := v.Snapshot()
	snap.Orders[0].Status = domain.OrderStatusCancelled

	assert.Equal(t, domain.OrderStatusPending, v.Snapshot().Orders[0].Status)
}

func TestOrdersViewSubmit(t *testing.T) {
	gw := &fakeGateway{created: order(7, domain.OrderStatusPending)}
	v := NewOrdersView(gw, testOptions())
	require.NoError(t, v.Load(context.Background()))

	req := domain.OrderRequest{Pair: "BTC/USD", Amount: decimal.NewFromInt(1), Side: domain.OrderSideBuy, Price: decimal.NewFromInt(100)}
	got, err := v.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Len(t, v.Snapshot().Orders, 1)

	// Completion for the submitted order lands too.
	v.ApplyCompletions([]domain.OrderCompletion{{ID: 7, Status: domain.OrderStatusCompleted}})
	assert.Equal(t, domain.OrderStatusCompleted, v.Snapshot().Orders[0].Status)

	gw.createErr = errBackend
	_, err = v.Submit(context.Background(), req)
	require.Error(t, err)
	snap := v.Snapshot()
	assert.Len(t, snap.Orders, 1)
	assert.Equal(t, English.Get(MsgOrderSubmitFailed), snap.SubmitError)
	assert.Equal(t, StatusReady, snap.Load.Status, "submit failure does not fail the list")
}

func TestOrdersViewPagination(t *testing.T) {
	var orders []domain.Order
	for i := int64(1); i <= 12; i++ {
		orders = append(orders, order(i, domain.OrderStatusPending))
	}
	v := NewOrdersView(&fakeGateway{orders: orders}, testOptions())
	require.NoError(t, v.Load(context.Background()))

	p := v.Page(1)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 12, p.TotalOrders)
	require.Len(t, p.Orders, 5)
	assert.Equal(t, int64(1), p.Orders[0].ID)

	p = v.Page(3)
	require.Len(t, p.Orders, 2)
	assert.Equal(t, int64(11), p.Orders[0].ID)

	assert.Equal(t, 3, v.Page(99).Page)
	assert.Equal(t, 1, v.Page(0).Page)
	assert.Equal(t, 1, v.Page(-4).Page)
}

func TestOrdersViewEmptyPagination(t *testing.T) {
	v := NewOrdersView(&fakeGateway{}, testOptions())
	p := v.Page(2)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.TotalPages)
	assert.NotNil(t, p.Orders)
	assert.Empty(t, p.Orders)
}

func TestOrdersViewDropsResultAfterTeardown(t *testing.T) {
	gw := &fakeGateway{orders: []domain.Order{order(1, domain.OrderStatusPending)}, block: make(chan struct{})}
	v := NewOrdersView(gw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Load(ctx) }()

	require.Eventually(t, func() bool { return gw.Calls("orders") == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusLoading, v.Snapshot().Load.Status)
	assert.Empty(t, v.Snapshot().Orders)
}
