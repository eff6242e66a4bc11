package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

var (
	// ErrInsufficientFunds is returned when the margin plus fee for an
	// open exceeds available cash. The ledger is left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoPosition is returned when closing a coin with no open position.
	ErrNoPosition = errors.New("no open position")
	// ErrInvalidOrder is returned for non-positive quantity, price or leverage.
	ErrInvalidOrder = errors.New("invalid order parameters")
)

// Ledger tracks simulated cash, margin positions and the trade history.
// All money math is plain float64, same as the exchange quotes it.
type Ledger struct {
	mu sync.Mutex

	cash        float64
	initialCash float64
	feeRate     float64
	positions   map[string]*models.Position
	trades      []models.Trade
	realizedPnL float64
	totalFees   float64
	wins        int
	losses      int
	maxProfit   float64
	maxLoss     float64
}

// NewLedger creates a ledger seeded with cash. feeRate is the taker fee
// fraction applied to notional on every open and close.
func NewLedger(cash, feeRate float64) *Ledger {
	return &Ledger{
		cash:        cash,
		initialCash: cash,
		feeRate:     feeRate,
		positions:   make(map[string]*models.Position),
	}
}

// OpenOrIncrease opens a position on coin, or adds to the existing one on
// the same side at a weighted-average entry price. Margin (notional over
// leverage) plus the fee must be covered by cash before anything mutates.
func (l *Ledger) OpenOrIncrease(coin string, side models.Side, quantity, price, leverage float64) (*models.Trade, error) {
	if quantity <= 0 || price <= 0 || leverage < 1 {
		return nil, ErrInvalidOrder
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.positions[coin]; ok && pos.Side != side {
		return nil, fmt.Errorf("%s already has an open %s position: %w", coin, pos.Side, ErrInvalidOrder)
	}

	notional := quantity * price
	margin := notional / leverage
	fee := notional * l.feeRate
	if margin+fee > l.cash {
		return nil, fmt.Errorf("need %.2f margin + %.2f fee, have %.2f cash: %w",
			margin, fee, l.cash, ErrInsufficientFunds)
	}

	l.cash -= margin + fee
	l.totalFees += fee

	pos, ok := l.positions[coin]
	if ok {
		totalQty := pos.Quantity + quantity
		pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.Quantity + price*quantity) / totalQty
		pos.Quantity = totalQty
		pos.Leverage = leverage
	} else {
		l.positions[coin] = &models.Position{
			ID:            uuid.NewString(),
			Coin:          coin,
			Side:          side,
			Quantity:      quantity,
			AvgEntryPrice: price,
			Leverage:      leverage,
			OpenedAt:      time.Now().UTC(),
		}
	}

	action := models.ActionBuy
	if side == models.SideShort {
		action = models.ActionSell
	}
	trade := models.Trade{
		ID:        uuid.NewString(),
		Coin:      coin,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Leverage:  leverage,
		Side:      side,
		Fee:       fee,
		Timestamp: time.Now().UTC(),
	}
	l.trades = append(l.trades, trade)
	return &trade, nil
}

// Close flattens the whole position on coin at price. The released margin
// plus the net PnL (gross minus the closing fee) is returned to cash.
func (l *Ledger) Close(coin string, price float64) (*models.Trade, error) {
	if price <= 0 {
		return nil, ErrInvalidOrder
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[coin]
	if !ok {
		return nil, fmt.Errorf("%s: %w", coin, ErrNoPosition)
	}

	gross := pos.UnrealizedPnL(price)
	fee := pos.Quantity * price * l.feeRate
	net := gross - fee
	margin := pos.Quantity * pos.AvgEntryPrice / pos.Leverage

	l.cash += margin + net
	l.realizedPnL += net
	l.totalFees += fee
	if net >= 0 {
		l.wins++
		if net > l.maxProfit {
			l.maxProfit = net
		}
	} else {
		l.losses++
		if net < l.maxLoss {
			l.maxLoss = net
		}
	}
	delete(l.positions, coin)

	action := models.ActionSell
	if pos.Side == models.SideShort {
		action = models.ActionBuy
	}
	trade := models.Trade{
		ID:          uuid.NewString(),
		Coin:        coin,
		Action:      action,
		Quantity:    pos.Quantity,
		Price:       price,
		Leverage:    pos.Leverage,
		Side:        pos.Side,
		RealizedPnL: net,
		Fee:         fee,
		Timestamp:   time.Now().UTC(),
	}
	l.trades = append(l.trades, trade)
	return &trade, nil
}

// Position returns a copy of the open position on coin, if any.
func (l *Ledger) Position(coin string) (models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[coin]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// Cash returns free cash not locked as margin.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Snapshot recomputes the full portfolio state at the given mark prices.
// Coins missing from prices are valued at their entry price.
func (l *Ledger) Snapshot(prices map[string]float64) models.Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := models.Portfolio{
		Cash:        l.cash,
		RealizedPnL: l.realizedPnL,
		Positions:   make([]*models.Position, 0, len(l.positions)),
	}
	for coin, pos := range l.positions {
		price, ok := prices[coin]
		if !ok {
			price = pos.AvgEntryPrice
		}
		margin := pos.Quantity * pos.AvgEntryPrice / pos.Leverage
		p.PositionsValue += margin
		p.UnrealizedPnL += pos.UnrealizedPnL(price)
		cp := *pos
		p.Positions = append(p.Positions, &cp)
	}
	p.TotalValue = p.Cash + p.PositionsValue + p.UnrealizedPnL
	return p
}

// Trades returns a copy of the trade history in execution order.
func (l *Ledger) Trades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Stats summarizes account performance at the given mark prices.
func (l *Ledger) Stats(prices map[string]float64) models.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := models.Stats{
		TotalTrades:      len(l.trades),
		ProfitableTrades: l.wins,
		LosingTrades:     l.losses,
		RealizedPnL:      l.realizedPnL,
		MaxProfit:        l.maxProfit,
		MaxLoss:          l.maxLoss,
		TotalFees:        l.totalFees,
	}
	for coin, pos := range l.positions {
		price, ok := prices[coin]
		if !ok {
			price = pos.AvgEntryPrice
		}
		s.UnrealizedPnL += pos.UnrealizedPnL(price)
	}
	s.TotalPnL = s.RealizedPnL + s.UnrealizedPnL
	if closed := l.wins + l.losses; closed > 0 {
		s.WinRate = float64(l.wins) / float64(closed) * 100
	}
	return s
}
