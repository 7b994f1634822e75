package view

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedSimulation(t *testing.T, gw *fakeGateway) *SimulationView {
	t.Helper()
	v := NewSimulationView(gw, "BTC", testOptions())
	require.NoError(t, v.Refresh(context.Background()))
	return v
}

func TestSimulationViewRefresh(t *testing.T) {
	gw := &fakeGateway{
		sim:   domain.Simulation{ID: "s1", CurrentBalance: decimal.NewFromInt(10000)},
		preds: []domain.Prediction{{ID: "p1", Symbol: "BTC", PredictedPrice: decimal.NewFromInt(65000)}},
	}
	v := NewSimulationView(gw, "BTC", testOptions())
	assert.Equal(t, StatusLoading, v.Snapshot().Load.Status)

	require.NoError(t, v.Refresh(context.Background()))
	snap := v.Snapshot()
	assert.Equal(t, StatusReady, snap.Load.Status)
	require.NotNil(t, snap.Simulation)
	assert.Equal(t, "s1", snap.Simulation.ID)
	assert.Equal(t, 1, gw.Calls("predictions:BTC"))
}

func TestSimulationViewRefreshFailure(t *testing.T) {
	v := NewSimulationView(&fakeGateway{simErr: errBackend}, "BTC", testOptions())
	require.Error(t, v.Refresh(context.Background()))
	snap := v.Snapshot()
	assert.Equal(t, StatusFailed, snap.Load.Status)
	assert.Nil(t, snap.Simulation)
}

func TestExecuteTradeUsesFirstPrediction(t *testing.T) {
	gw := &fakeGateway{
		sim: domain.Simulation{ID: "s1", CurrentBalance: decimal.NewFromInt(10000)},
		preds: []domain.Prediction{
			{ID: "p1", PredictedPrice: decimal.NewFromInt(65000)},
			{ID: "p2", PredictedPrice: decimal.NewFromInt(70000)},
		},
		tradeRes: domain.SimTradeResult{
			Trade:      domain.SimTrade{ID: "t1", Side: domain.OrderSideBuy, Amount: decimal.RequireFromString("0.1")},
			NewBalance: decimal.NewNullDecimal(decimal.NewFromInt(3500)),
		},
	}
	v := loadedSimulation(t, gw)

	trade, err := v.ExecuteTrade(context.Background(), domain.OrderSideBuy, decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", trade.ID)

	require.Len(t, gw.tradeReqs, 1)
	assert.True(t, gw.tradeReqs[0].Price.Equal(decimal.NewFromInt(65000)))
	assert.Equal(t, "BTC", gw.tradeReqs[0].Symbol)

	snap := v.Snapshot()
	require.Len(t, snap.Simulation.Trades, 1)
	assert.True(t, snap.Simulation.CurrentBalance.Equal(decimal.NewFromInt(3500)))
}

func TestExecuteTradeKeepsBalanceWhenNoneReported(t *testing.T) {
	gw := &fakeGateway{
		sim:      domain.Simulation{ID: "s1", CurrentBalance: decimal.NewFromInt(10000)},
		preds:    []domain.Prediction{{ID: "p1", PredictedPrice: decimal.NewFromInt(65000)}},
		tradeRes: domain.SimTradeResult{Trade: domain.SimTrade{ID: "t1", Side: domain.OrderSideBuy, Amount: decimal.NewFromInt(1)}},
	}
	v := loadedSimulation(t, gw)

	_, err := v.ExecuteTrade(context.Background(), domain.OrderSideBuy, decimal.NewFromInt(1))
	require.NoError(t, err)

	snap := v.Snapshot()
	require.Len(t, snap.Simulation.Trades, 1)
	assert.True(t, snap.Simulation.CurrentBalance.Equal(decimal.NewFromInt(10000)))
}

func TestExecuteTradeRejectedLocally(t *testing.T) {
	gw := &fakeGateway{sim: domain.Simulation{ID: "s1"}}
	v := loadedSimulation(t, gw)

	_, err := v.ExecuteTrade(context.Background(), domain.OrderSideBuy, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrInvalidTrade), "no prediction")

	gw.preds = []domain.Prediction{{PredictedPrice: decimal.NewFromInt(1)}}
	require.NoError(t, v.Refresh(context.Background()))

	_, err = v.ExecuteTrade(context.Background(), domain.OrderSideBuy, decimal.Zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidTrade))
	_, err = v.ExecuteTrade(context.Background(), domain.OrderSide("hold"), decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrInvalidTrade))

	assert.Equal(t, 0, gw.Calls("trade"))
}

func TestExecuteTradeFailureRecordsError(t *testing.T) {
	gw := &fakeGateway{
		sim:      domain.Simulation{ID: "s1"},
		preds:    []domain.Prediction{{PredictedPrice: decimal.NewFromInt(1)}},
		tradeErr: errBackend,
	}
	v := loadedSimulation(t, gw)

	_, err := v.ExecuteTrade(context.Background(), domain.OrderSideSell, decimal.NewFromInt(1))
	require.Error(t, err)

	snap := v.Snapshot()
	assert.Equal(t, English.Get(MsgTradeFailed), snap.TradeError)
	assert.Equal(t, StatusReady, snap.Load.Status)
	assert.Empty(t, snap.Simulation.Trades)
}
