package models

import "time"

// Bar is a single OHLCV candle. Bars arrive oldest first and are never
// mutated after they are produced.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Action is a trading decision direction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Tier is the priority class of a signal inside the fusion engine.
type Tier int

const (
	Tier1         Tier = 1 // trend alignment / multi-timeframe
	Tier2         Tier = 2 // candlestick patterns
	TierAuxiliary Tier = 3 // single-indicator crossovers
)

// Signal is one evaluated trading opinion. Confidence is 0-100.
type Signal struct {
	Action     Action
	Confidence float64
	Reason     string
	Tier       Tier
}

// Side distinguishes long and short positions.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is an open holding. At most one exists per (coin, side) in a
// ledger, and only the ledger mutates it.
type Position struct {
	ID            string
	Coin          string
	Side          Side
	Quantity      float64
	AvgEntryPrice float64
	Leverage      float64
	OpenedAt      time.Time
}

// Notional returns the position value at the given price.
func (p *Position) Notional(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the signed open profit at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.Side == SideShort {
		return (p.AvgEntryPrice - price) * p.Quantity
	}
	return (price - p.AvgEntryPrice) * p.Quantity
}

// Trade is the immutable audit record appended on every ledger mutation.
type Trade struct {
	ID          string
	Coin        string
	Action      Action
	Quantity    float64
	Price       float64
	Leverage    float64
	Side        Side
	RealizedPnL float64
	Fee         float64
	Timestamp   time.Time
}

// Portfolio is a derived snapshot: always recomputed from cash, open
// positions and current prices, never stored as the source of truth.
type Portfolio struct {
	Cash           float64
	PositionsValue float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	TotalValue     float64
	Positions      []*Position
}

// Stats aggregates the closed-trade history of one account.
type Stats struct {
	TotalTrades      int
	ProfitableTrades int
	LosingTrades     int
	RealizedPnL      float64
	UnrealizedPnL    float64
	TotalPnL         float64
	WinRate          float64
	MaxProfit        float64
	MaxLoss          float64
	TotalFees        float64
}

// DecisionSignal is the per-coin instruction an advisory source hands the
// trading cycle.
type DecisionSignal string

const (
	SignalBuyToEnter    DecisionSignal = "buy_to_enter"
	SignalSellToEnter   DecisionSignal = "sell_to_enter"
	SignalClosePosition DecisionSignal = "close_position"
	SignalHold          DecisionSignal = "hold"
)

// Decision is one parsed advisory instruction for a single coin.
type Decision struct {
	Coin       string
	Signal     DecisionSignal
	Quantity   float64
	Leverage   float64
	Confidence float64
	Reason     string
}

// ExecutionResult reports what the executor actually did with a signal.
type ExecutionResult struct {
	Success     bool
	ActionTaken string
	Message     string
	Trade       *Trade
}
