package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

func testConfig() Config {
	return Config{
		MinConfidence:       60,
		MaxPositionNotional: 1000,
		MaxTotalFraction:    0.5,
		StopLossPct:         0.05,
		TakeProfitPct:       0.10,
		BalanceReserve:      0.05,
	}
}

func TestPositionSizeScalesWithConfidence(t *testing.T) {
	m := NewManager(testConfig())

	// min(1000, 10000*0.5) = 1000, scaled by 0.8, at price 100
	qty := m.PositionSize(80, 100, 10000, 0)
	assert.InDelta(t, 8, qty, 1e-9)

	qty = m.PositionSize(100, 100, 10000, 0)
	assert.InDelta(t, 10, qty, 1e-9)
}

func TestPositionSizeBelowMinConfidence(t *testing.T) {
	m := NewManager(testConfig())
	assert.Zero(t, m.PositionSize(59.9, 100, 10000, 0))
}

func TestPositionSizeBalanceFractionBinds(t *testing.T) {
	m := NewManager(testConfig())

	// balance 1000: fraction cap 500 beats the 1000 notional cap
	qty := m.PositionSize(100, 100, 1000, 0)
	assert.InDelta(t, 5, qty, 1e-9)
}

func TestPositionSizeSubtractsExisting(t *testing.T) {
	m := NewManager(testConfig())

	qty := m.PositionSize(80, 100, 10000, 3)
	assert.InDelta(t, 5, qty, 1e-9)

	// already at target
	assert.Zero(t, m.PositionSize(80, 100, 10000, 8))
	// above target never goes negative
	assert.Zero(t, m.PositionSize(80, 100, 10000, 20))
}

func TestPositionSizeReservesBalance(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionNotional = 10000
	cfg.MaxTotalFraction = 1
	m := NewManager(cfg)

	// target 10 units but only 95% of the 100 balance is spendable
	qty := m.PositionSize(100, 10, 100, 0)
	assert.InDelta(t, 9.5, qty, 1e-9)
}

func TestPositionSizeUnitCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionSize = 2
	m := NewManager(cfg)

	qty := m.PositionSize(80, 100, 10000, 0)
	assert.InDelta(t, 2, qty, 1e-9)
}

func TestPositionSizeDegenerateInputs(t *testing.T) {
	m := NewManager(testConfig())
	assert.Zero(t, m.PositionSize(80, 0, 10000, 0))
	assert.Zero(t, m.PositionSize(80, 100, 0, 0))
}

func TestShouldCloseStopLossLong(t *testing.T) {
	m := NewManager(testConfig())
	pos := &models.Position{Side: models.SideLong, AvgEntryPrice: 100}

	should, reason := m.ShouldClose(pos, 94)
	assert.True(t, should)
	assert.Contains(t, reason, "stop loss")

	should, _ = m.ShouldClose(pos, 96)
	assert.False(t, should)
}

func TestShouldCloseTakeProfitLong(t *testing.T) {
	m := NewManager(testConfig())
	pos := &models.Position{Side: models.SideLong, AvgEntryPrice: 100}

	should, reason := m.ShouldClose(pos, 111)
	assert.True(t, should)
	assert.Contains(t, reason, "take profit")
}

func TestShouldCloseShortDirectionFlips(t *testing.T) {
	m := NewManager(testConfig())
	pos := &models.Position{Side: models.SideShort, AvgEntryPrice: 100}

	// price rising against a short is the loss side
	should, reason := m.ShouldClose(pos, 106)
	assert.True(t, should)
	assert.Contains(t, reason, "stop loss")

	should, reason = m.ShouldClose(pos, 89)
	assert.True(t, should)
	assert.Contains(t, reason, "take profit")
}

func TestShouldCloseDisabledThresholds(t *testing.T) {
	m := NewManager(Config{})
	pos := &models.Position{Side: models.SideLong, AvgEntryPrice: 100}

	should, _ := m.ShouldClose(pos, 1)
	assert.False(t, should)
}

func TestShouldCloseNilPosition(t *testing.T) {
	m := NewManager(testConfig())
	should, _ := m.ShouldClose(nil, 100)
	assert.False(t, should)
}
