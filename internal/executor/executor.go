package executor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sher1096/ai-trading-game-enhanced/internal/exchange"
	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
	"github.com/sher1096/ai-trading-game-enhanced/internal/portfolio"
	"github.com/sher1096/ai-trading-game-enhanced/internal/risk"
)

// Notifier receives trade events for operator-facing channels. May be nil.
type Notifier interface {
	NotifyTrade(trade models.Trade, cash float64)
}

// Executor turns advisory decisions into ledger mutations and, in live
// mode, real exchange orders. The ledger stays the source of truth in
// both modes; live orders are mirrored into it after they fill.
type Executor struct {
	ledger   *portfolio.Ledger
	risk     *risk.Manager
	client   exchange.Client
	notifier Notifier

	live    bool
	dryRun  bool
	maxLev  float64
	dfltLev float64
}

// Options configures an executor.
type Options struct {
	Live            bool
	DryRun          bool
	MaxLeverage     float64
	DefaultLeverage float64
}

func New(ledger *portfolio.Ledger, riskMgr *risk.Manager, client exchange.Client, notifier Notifier, opts Options) *Executor {
	if opts.DefaultLeverage < 1 {
		opts.DefaultLeverage = 1
	}
	if opts.MaxLeverage < 1 {
		opts.MaxLeverage = opts.DefaultLeverage
	}
	return &Executor{
		ledger:   ledger,
		risk:     riskMgr,
		client:   client,
		notifier: notifier,
		live:     opts.Live,
		dryRun:   opts.DryRun,
		maxLev:   opts.MaxLeverage,
		dfltLev:  opts.DefaultLeverage,
	}
}

// SetNotifier wires the operator channel after construction. The bot
// needs the engine, which needs the executor, so this binds late.
func (e *Executor) SetNotifier(n Notifier) {
	e.notifier = n
}

// Execute applies one decision at the given mark price. Hold decisions
// never mutate the ledger except through a triggered stop or target.
func (e *Executor) Execute(ctx context.Context, d models.Decision, price float64) models.ExecutionResult {
	switch d.Signal {
	case models.SignalBuyToEnter:
		return e.executeBuy(ctx, d, price)
	case models.SignalSellToEnter:
		return e.executeSell(ctx, d, price)
	case models.SignalClosePosition:
		return e.closePosition(ctx, d.Coin, price, d.Reason)
	case models.SignalHold:
		return e.executeHold(ctx, d.Coin, price)
	default:
		log.Printf("⚠️ %s: unknown signal %q, treating as hold", d.Coin, d.Signal)
		return e.executeHold(ctx, d.Coin, price)
	}
}

func (e *Executor) executeBuy(ctx context.Context, d models.Decision, price float64) models.ExecutionResult {
	// An open short is flattened before going long.
	if pos, ok := e.ledger.Position(d.Coin); ok && pos.Side == models.SideShort {
		res := e.closePosition(ctx, d.Coin, price, "reversing short before long entry")
		if !res.Success {
			return res
		}
	}

	qty := d.Quantity
	if qty <= 0 {
		balance, existing := e.sizingInputs(ctx, d.Coin, models.SideLong)
		qty = e.risk.PositionSize(d.Confidence, price, balance, existing)
	}
	if qty <= 0 {
		return models.ExecutionResult{
			Success:     true,
			ActionTaken: "skip",
			Message:     fmt.Sprintf("%s: risk limits size the buy to zero (confidence %.0f)", d.Coin, d.Confidence),
		}
	}

	leverage := e.clampLeverage(d.Leverage)
	if e.dryRun {
		return e.dryRunResult(d.Coin, fmt.Sprintf("would buy %.6f at %.4f with %gx leverage", qty, price, leverage))
	}

	if e.live {
		if err := e.placeLive(ctx, d.Coin, models.SideLong, false, qty, int(leverage)); err != nil {
			return models.ExecutionResult{Success: false, ActionTaken: "buy", Message: err.Error()}
		}
	}

	trade, err := e.ledger.OpenOrIncrease(d.Coin, models.SideLong, qty, price, leverage)
	if err != nil {
		return models.ExecutionResult{Success: false, ActionTaken: "buy", Message: err.Error()}
	}

	log.Printf("✅ %s: bought %.6f at %.4f (%gx, confidence %.0f) | %s",
		d.Coin, qty, price, leverage, d.Confidence, d.Reason)
	e.notify(*trade)
	return models.ExecutionResult{Success: true, ActionTaken: "buy", Message: d.Reason, Trade: trade}
}

// executeSell closes an open long and, on the simulated book, opens or
// adds to a short. Live trading never opens a fresh short: a live sell
// against a flat book stands aside.
func (e *Executor) executeSell(ctx context.Context, d models.Decision, price float64) models.ExecutionResult {
	if pos, ok := e.ledger.Position(d.Coin); ok && pos.Side == models.SideLong {
		res := e.closePosition(ctx, d.Coin, price, d.Reason)
		if !res.Success || e.live {
			return res
		}
	} else if e.live {
		return models.ExecutionResult{
			Success:     true,
			ActionTaken: "skip",
			Message:     fmt.Sprintf("%s: sell signal with no long position, standing aside", d.Coin),
		}
	}

	qty := d.Quantity
	if qty <= 0 {
		balance, existing := e.sizingInputs(ctx, d.Coin, models.SideShort)
		qty = e.risk.PositionSize(d.Confidence, price, balance, existing)
	}
	if qty <= 0 {
		return models.ExecutionResult{
			Success:     true,
			ActionTaken: "skip",
			Message:     fmt.Sprintf("%s: risk limits size the short to zero (confidence %.0f)", d.Coin, d.Confidence),
		}
	}

	leverage := e.clampLeverage(d.Leverage)
	if e.dryRun {
		return e.dryRunResult(d.Coin, fmt.Sprintf("would short %.6f at %.4f with %gx leverage", qty, price, leverage))
	}

	trade, err := e.ledger.OpenOrIncrease(d.Coin, models.SideShort, qty, price, leverage)
	if err != nil {
		return models.ExecutionResult{Success: false, ActionTaken: "sell", Message: err.Error()}
	}

	log.Printf("✅ %s: shorted %.6f at %.4f (%gx, confidence %.0f) | %s",
		d.Coin, qty, price, leverage, d.Confidence, d.Reason)
	e.notify(*trade)
	return models.ExecutionResult{Success: true, ActionTaken: "sell", Message: d.Reason, Trade: trade}
}

// sizingInputs returns the balance and the already-held same-side
// quantity an entry is sized against. Live entries size off the real
// account; the ledger only mirrors fills and drifts once the two
// disagree. Lookup failures fall back to the ledger.
func (e *Executor) sizingInputs(ctx context.Context, coin string, side models.Side) (float64, float64) {
	balance := e.ledger.Cash()
	var existing float64
	if pos, ok := e.ledger.Position(coin); ok && pos.Side == side {
		existing = pos.Quantity
	}
	if !e.live || e.client == nil {
		return balance, existing
	}

	bal, err := e.client.GetBalance(ctx)
	if err != nil {
		log.Printf("⚠️ %s: account balance lookup failed, sizing off the ledger: %v", coin, err)
	} else {
		balance = bal
	}

	positions, err := e.client.GetPositions(ctx)
	if err != nil {
		log.Printf("⚠️ %s: open position lookup failed, sizing off the ledger: %v", coin, err)
		return balance, existing
	}
	for _, p := range positions {
		if p.Coin == coin && p.Side == side {
			existing = p.Quantity
		}
	}
	return balance, existing
}

func (e *Executor) closePosition(ctx context.Context, coin string, price float64, reason string) models.ExecutionResult {
	pos, ok := e.ledger.Position(coin)
	if !ok {
		return models.ExecutionResult{
			Success:     false,
			ActionTaken: "close",
			Message:     fmt.Sprintf("%s: %v", coin, portfolio.ErrNoPosition),
		}
	}

	if e.dryRun {
		return e.dryRunResult(coin, fmt.Sprintf("would close %s %.6f at %.4f", pos.Side, pos.Quantity, price))
	}

	if e.live {
		if err := e.placeLive(ctx, coin, pos.Side, true, pos.Quantity, int(pos.Leverage)); err != nil {
			return models.ExecutionResult{Success: false, ActionTaken: "close", Message: err.Error()}
		}
	}

	trade, err := e.ledger.Close(coin, price)
	if err != nil {
		return models.ExecutionResult{Success: false, ActionTaken: "close", Message: err.Error()}
	}

	log.Printf("🎯 %s: closed %s %.6f at %.4f | net P&L %.2f | %s",
		coin, pos.Side, pos.Quantity, price, trade.RealizedPnL, reason)
	e.notify(*trade)
	return models.ExecutionResult{Success: true, ActionTaken: "close", Message: reason, Trade: trade}
}

// executeHold leaves the book alone unless a stop-loss or take-profit
// has triggered on the open position.
func (e *Executor) executeHold(ctx context.Context, coin string, price float64) models.ExecutionResult {
	pos, ok := e.ledger.Position(coin)
	if !ok {
		return models.ExecutionResult{Success: true, ActionTaken: "hold", Message: "no position"}
	}

	if should, reason := e.risk.ShouldClose(&pos, price); should {
		return e.closePosition(ctx, coin, price, reason)
	}
	return models.ExecutionResult{Success: true, ActionTaken: "hold", Message: "position within limits"}
}

func (e *Executor) placeLive(ctx context.Context, coin string, side models.Side, reduceOnly bool, qty float64, leverage int) error {
	if e.client == nil {
		return errors.New("live mode without an exchange client")
	}
	if !reduceOnly {
		if err := e.client.SetLeverage(ctx, coin, leverage); err != nil {
			return err
		}
	}
	res, err := e.client.PlaceMarketOrder(ctx, coin, side, reduceOnly, qty)
	if err != nil {
		return err
	}
	log.Printf("📡 %s: order %d %s filled %.6f at %.4f", coin, res.OrderID, res.Status, res.ExecutedQty, res.AvgPrice)
	return nil
}

func (e *Executor) clampLeverage(lev float64) float64 {
	if lev < 1 {
		return e.dfltLev
	}
	if lev > e.maxLev {
		return e.maxLev
	}
	return lev
}

func (e *Executor) dryRunResult(coin, msg string) models.ExecutionResult {
	log.Printf("🧪 %s: dry run, %s", coin, msg)
	return models.ExecutionResult{Success: true, ActionTaken: "dry_run", Message: msg}
}

func (e *Executor) notify(trade models.Trade) {
	if e.notifier != nil {
		e.notifier.NotifyTrade(trade, e.ledger.Cash())
	}
}
