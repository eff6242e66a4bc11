package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sher1096/ai-trading-game-enhanced/internal/analysis"
	"github.com/sher1096/ai-trading-game-enhanced/internal/exchange"
	"github.com/sher1096/ai-trading-game-enhanced/internal/executor"
	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
	"github.com/sher1096/ai-trading-game-enhanced/internal/portfolio"
)

// Options drives the engine loops.
type Options struct {
	Interval        string        // primary kline interval
	BarLimit        int           // bars fetched per evaluation
	AnalyzeEvery    time.Duration // signal evaluation cadence
	MonitorEvery    time.Duration // stop/target check cadence
	CallTimeout     time.Duration // per external call
	TrendBars       int           // bars per trend timeframe
	TrendTimeframes []string
}

// Engine runs the evaluation and position-monitoring loops over a set of
// instruments. Each coin's evaluation is single-flight: a tick that fires
// while the previous run is still fetching data gets skipped.
type Engine struct {
	client   exchange.Client
	analyzer *analysis.Analyzer
	exec     *executor.Executor
	ledger   *portfolio.Ledger
	sup      *Supervisor

	coins []string
	opts  Options

	mu         sync.RWMutex
	isRunning  bool
	stopChan   chan struct{}
	onAnalysis func(string)

	markMu     sync.RWMutex
	markPrices map[string]markPrice
}

type markPrice struct {
	price float64
	at    time.Time
}

func New(client exchange.Client, analyzer *analysis.Analyzer, exec *executor.Executor, ledger *portfolio.Ledger, coins []string, opts Options) *Engine {
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.BarLimit <= 0 {
		opts.BarLimit = 700
	}
	if opts.AnalyzeEvery <= 0 {
		opts.AnalyzeEvery = 2 * time.Minute
	}
	if opts.MonitorEvery <= 0 {
		opts.MonitorEvery = 30 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 15 * time.Second
	}
	if opts.TrendBars <= 0 {
		opts.TrendBars = 4
	}
	return &Engine{
		client:     client,
		analyzer:   analyzer,
		exec:       exec,
		ledger:     ledger,
		sup:        NewSupervisor(),
		coins:      coins,
		opts:       opts,
		stopChan:   make(chan struct{}),
		markPrices: make(map[string]markPrice),
	}
}

// SetAnalysisCallback registers a human-readable sink for evaluation
// summaries. Used by the notification bot.
func (e *Engine) SetAnalysisCallback(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAnalysis = fn
}

func (e *Engine) Start() {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	log.Println("🚀 Trading engine started")
	go e.analyzeLoop()
	go e.monitorLoop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isRunning {
		return
	}
	e.isRunning = false
	close(e.stopChan)
	log.Println("⏸️ Trading engine stopped")
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

// Supervisor exposes per-coin evaluation state for status reporting.
func (e *Engine) Supervisor() *Supervisor {
	return e.sup
}

// Coins returns the instruments the engine trades.
func (e *Engine) Coins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.coins))
	copy(out, e.coins)
	return out
}

// RemoveCoin drops an instrument from the trading set and deregisters
// its evaluation state. Open positions on the coin are untouched; the
// monitor loop no longer sweeps them.
func (e *Engine) RemoveCoin(coin string) {
	e.mu.Lock()
	kept := e.coins[:0]
	for _, c := range e.coins {
		if c != coin {
			kept = append(kept, c)
		}
	}
	e.coins = kept
	e.mu.Unlock()

	e.sup.Deregister(coin)
}

func (e *Engine) analyzeLoop() {
	// First pass immediately, then on the ticker.
	e.evaluateAll()

	ticker := time.NewTicker(e.opts.AnalyzeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.evaluateAll()
		}
	}
}

func (e *Engine) evaluateAll() {
	for _, coin := range e.Coins() {
		if !e.sup.TryAcquire(coin) {
			log.Printf("⏭️ %s: previous evaluation still running, skipping tick", coin)
			continue
		}
		go func(coin string) {
			sig := e.evaluateCoin(coin)
			e.sup.Release(coin, sig)
		}(coin)
	}
}

// evaluateCoin fetches market data, runs the fusion analysis and hands
// the resulting decision to the executor.
func (e *Engine) evaluateCoin(coin string) models.Signal {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.CallTimeout)
	defer cancel()

	bars, err := e.client.GetKlines(ctx, coin, e.opts.Interval, e.opts.BarLimit)
	if err != nil {
		log.Printf("❌ %s: fetching klines: %v", coin, err)
		return models.Signal{Action: models.ActionHold, Reason: err.Error()}
	}
	if len(bars) == 0 {
		log.Printf("❌ %s: empty kline response", coin)
		return models.Signal{Action: models.ActionHold, Reason: "no market data"}
	}

	multiTF := make(map[string][]models.Bar, len(e.opts.TrendTimeframes))
	for _, tf := range e.opts.TrendTimeframes {
		tfBars, err := e.client.GetKlines(ctx, coin, tf, e.opts.TrendBars)
		if err != nil {
			log.Printf("⚠️ %s: fetching %s bars for trend check: %v", coin, tf, err)
			continue
		}
		multiTF[tf] = tfBars
	}

	ev := e.analyzer.Evaluate(bars, multiTF)
	price := bars[len(bars)-1].Close

	summary := fmt.Sprintf("%s: %s (confidence %.0f) at %.4f: %s",
		coin, ev.Signal.Action, ev.Signal.Confidence, price, ev.Signal.Reason)
	log.Println("📊 " + summary)
	e.emitAnalysis(summary)

	res := e.exec.Execute(ctx, decisionFromSignal(coin, ev.Signal), price)
	if !res.Success {
		log.Printf("❌ %s: execution failed: %s", coin, res.Message)
	}
	return ev.Signal
}

// monitorLoop checks open positions against stops and targets between
// full evaluations.
func (e *Engine) monitorLoop() {
	ticker := time.NewTicker(e.opts.MonitorEvery)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkPositions()
		}
	}
}

// UpdateMarkPrice feeds a streamed tick into the monitor's price cache,
// sparing the next sweep a REST round trip.
func (e *Engine) UpdateMarkPrice(symbol string, price float64) {
	e.markMu.Lock()
	e.markPrices[symbol] = markPrice{price: price, at: time.Now()}
	e.markMu.Unlock()
}

// streamedPrice returns the cached mark price if it is fresher than two
// monitor intervals.
func (e *Engine) streamedPrice(coin string) (float64, bool) {
	e.markMu.RLock()
	mp, ok := e.markPrices[coin]
	e.markMu.RUnlock()
	if !ok || time.Since(mp.at) > 2*e.opts.MonitorEvery {
		return 0, false
	}
	return mp.price, true
}

func (e *Engine) checkPositions() {
	for _, coin := range e.Coins() {
		if _, ok := e.ledger.Position(coin); !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.opts.CallTimeout)
		price, ok := e.streamedPrice(coin)
		if !ok {
			var err error
			price, err = e.client.GetPrice(ctx, coin)
			if err != nil {
				cancel()
				log.Printf("⚠️ %s: price check failed: %v", coin, err)
				continue
			}
		}

		res := e.exec.Execute(ctx, models.Decision{Coin: coin, Signal: models.SignalHold}, price)
		cancel()
		if res.ActionTaken == "close" && res.Success {
			e.emitAnalysis(fmt.Sprintf("%s: position closed by risk check at %.4f", coin, price))
		}
	}
}

// ProcessAdvice executes an external advisory payload against the book.
// Prices come from the exchange at execution time, not from the payload.
func (e *Engine) ProcessAdvice(ctx context.Context, raw []byte) ([]models.ExecutionResult, error) {
	decisions, err := ParseDecisions(raw)
	if err != nil {
		return nil, err
	}

	results := make([]models.ExecutionResult, 0, len(decisions))
	for _, d := range decisions {
		callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
		price, err := e.client.GetPrice(callCtx, d.Coin)
		if err != nil {
			cancel()
			results = append(results, models.ExecutionResult{
				Success: false, ActionTaken: string(d.Signal),
				Message: fmt.Sprintf("%s: price lookup failed: %v", d.Coin, err),
			})
			continue
		}
		results = append(results, e.exec.Execute(callCtx, d, price))
		cancel()
	}
	return results, nil
}

// Snapshot prices every coin with an open position and returns the
// derived portfolio state.
func (e *Engine) Snapshot(ctx context.Context) models.Portfolio {
	prices := make(map[string]float64)
	for _, coin := range e.Coins() {
		if _, ok := e.ledger.Position(coin); !ok {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
		price, err := e.client.GetPrice(callCtx, coin)
		cancel()
		if err != nil {
			continue
		}
		prices[coin] = price
	}
	return e.ledger.Snapshot(prices)
}

func (e *Engine) emitAnalysis(msg string) {
	e.mu.RLock()
	fn := e.onAnalysis
	e.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func decisionFromSignal(coin string, sig models.Signal) models.Decision {
	d := models.Decision{
		Coin:       coin,
		Confidence: sig.Confidence,
		Reason:     sig.Reason,
	}
	switch sig.Action {
	case models.ActionBuy:
		d.Signal = models.SignalBuyToEnter
	case models.ActionSell:
		d.Signal = models.SignalSellToEnter
	default:
		d.Signal = models.SignalHold
	}
	return d
}
