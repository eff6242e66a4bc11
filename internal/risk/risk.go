package risk

import (
	"fmt"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// Config bounds what the executor is allowed to put on.
type Config struct {
	// MinConfidence is the signal confidence floor, 0-100. Signals below
	// it size to zero.
	MinConfidence float64
	// MaxPositionNotional caps the dollar value of any single position.
	MaxPositionNotional float64
	// MaxTotalFraction caps position notional as a fraction of balance.
	MaxTotalFraction float64
	// MaxPositionSize caps quantity in units of the traded coin.
	// Zero means no unit cap.
	MaxPositionSize float64
	// StopLossPct closes a position once it loses this fraction of entry.
	StopLossPct float64
	// TakeProfitPct closes a position once it gains this fraction of entry.
	TakeProfitPct float64
	// BalanceReserve is the fraction of balance never spent on one order.
	BalanceReserve float64
}

// DefaultConfig mirrors the production risk limits.
func DefaultConfig() Config {
	return Config{
		MinConfidence:       60,
		MaxPositionNotional: 1000,
		MaxTotalFraction:    0.5,
		MaxPositionSize:     0,
		StopLossPct:         0.05,
		TakeProfitPct:       0.10,
		BalanceReserve:      0.05,
	}
}

// Manager converts signal confidence into bounded order sizes and decides
// when an open position must be force-closed.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// PositionSize returns how many units to buy for a signal of the given
// confidence at price, with balance of free cash and existingQty already
// held in the same direction. Confidence scales the notional linearly;
// every cap is applied after scaling and the result never goes negative.
func (m *Manager) PositionSize(confidence, price, balance, existingQty float64) float64 {
	if confidence < m.cfg.MinConfidence || price <= 0 || balance <= 0 {
		return 0
	}

	notional := m.cfg.MaxPositionNotional
	if byBalance := balance * m.cfg.MaxTotalFraction; byBalance < notional {
		notional = byBalance
	}

	qty := notional * confidence / 100 / price
	if m.cfg.MaxPositionSize > 0 && qty > m.cfg.MaxPositionSize {
		qty = m.cfg.MaxPositionSize
	}

	qty -= existingQty
	if spendable := balance * (1 - m.cfg.BalanceReserve) / price; qty > spendable {
		qty = spendable
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// ShouldClose reports whether the position has hit its stop-loss or
// take-profit at the given price. Stop-loss wins when both trigger.
func (m *Manager) ShouldClose(pos *models.Position, price float64) (bool, string) {
	if pos == nil || pos.AvgEntryPrice <= 0 || price <= 0 {
		return false, ""
	}

	change := (price - pos.AvgEntryPrice) / pos.AvgEntryPrice
	if pos.Side == models.SideShort {
		change = -change
	}

	if m.cfg.StopLossPct > 0 && change <= -m.cfg.StopLossPct {
		return true, fmt.Sprintf("stop loss hit: %.2f%% against entry %.4f", change*100, pos.AvgEntryPrice)
	}
	if m.cfg.TakeProfitPct > 0 && change >= m.cfg.TakeProfitPct {
		return true, fmt.Sprintf("take profit hit: %+.2f%% from entry %.4f", change*100, pos.AvgEntryPrice)
	}
	return false, ""
}
