package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SimulationView holds the paper-trading simulation and the model
// predictions for one symbol.
type SimulationView struct {
	gw       SimulationGateway
	symbol   string
	logger   *slog.Logger
	messages Messages

	mu          sync.RWMutex
	sim         *domain.Simulation
	predictions []domain.Prediction
	state       LoadState
	tradeError  string
}

// SimulationSnapshot is a copy of the simulator state.
type SimulationSnapshot struct {
	Load        LoadState           `json:"load"`
	Symbol      string              `json:"symbol"`
	Simulation  *domain.Simulation  `json:"simulation"`
	Predictions []domain.Prediction `json:"predictions"`
	TradeError  string              `json:"trade_error,omitempty"`
}

// NewSimulationView creates the simulator container for symbol.
func NewSimulationView(gw SimulationGateway, symbol string, opts Options) *SimulationView {
	opts = opts.withDefaults()
	return &SimulationView{
		gw:       gw,
		symbol:   symbol,
		logger:   opts.Logger.With(slog.String("component", "view"), slog.String("view", "simulation")),
		messages: opts.Messages,
		state:    loadingState(),
	}
}

// Refresh fetches the simulation and predictions concurrently.
func (v *SimulationView) Refresh(ctx context.Context) error {
	var (
		sim   domain.Simulation
		preds []domain.Prediction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sim, err = v.gw.GetCurrentSimulation(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		preds, err = v.gw.GetPredictions(gctx, v.symbol)
		return err
	})
	err := g.Wait()
	if torn(ctx) {
		return ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.state = failedState(v.messages.Get(MsgSimulationLoadFailed))
		v.logger.Warn("refresh simulation failed", slog.String("error", err.Error()))
		return fmt.Errorf("view: simulation: %w", err)
	}
	v.sim = &sim
	v.predictions = preds
	v.state = readyState()
	return nil
}

// ExecuteTrade places a paper trade priced at the first prediction. It is
// rejected locally when amount is not positive or no prediction is held.
func (v *SimulationView) ExecuteTrade(ctx context.Context, side domain.OrderSide, amount decimal.Decimal) (domain.SimTrade, error) {
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return domain.SimTrade{}, fmt.Errorf("view: trade side %q: %w", side, domain.ErrInvalidTrade)
	}
	if !amount.IsPositive() {
		return domain.SimTrade{}, fmt.Errorf("view: trade amount %s: %w", amount, domain.ErrInvalidTrade)
	}

	v.mu.RLock()
	var price decimal.Decimal
	havePrediction := len(v.predictions) > 0
	if havePrediction {
		price = v.predictions[0].PredictedPrice
	}
	v.mu.RUnlock()

	if !havePrediction {
		return domain.SimTrade{}, fmt.Errorf("view: no prediction to price trade: %w", domain.ErrInvalidTrade)
	}

	res, err := v.gw.SimulateTrade(ctx, domain.SimTradeRequest{
		Side:   side,
		Amount: amount,
		Symbol: v.symbol,
		Price:  price,
	})
	if torn(ctx) {
		return domain.SimTrade{}, ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.tradeError = v.messages.Get(MsgTradeFailed)
		v.logger.Warn("simulated trade failed", slog.String("error", err.Error()))
		return domain.SimTrade{}, fmt.Errorf("view: simulate trade: %w", err)
	}
	v.tradeError = ""
	if v.sim != nil {
		next := *v.sim
		next.Trades = append(cloneSlice(v.sim.Trades), res.Trade)
		if res.NewBalance.Valid {
			next.CurrentBalance = res.NewBalance.Decimal
		}
		v.sim = &next
	}
	return res.Trade, nil
}

// Snapshot returns a copy of the simulator state.
func (v *SimulationView) Snapshot() SimulationSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snap := SimulationSnapshot{
		Load:        v.state,
		Symbol:      v.symbol,
		Predictions: cloneSlice(v.predictions),
		TradeError:  v.tradeError,
	}
	if v.sim != nil {
		sim := *v.sim
		sim.Trades = cloneSlice(v.sim.Trades)
		snap.Simulation = &sim
	}
	return snap
}
