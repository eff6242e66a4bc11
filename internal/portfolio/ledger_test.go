package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

func TestOpenChargesMarginAndFee(t *testing.T) {
	l := NewLedger(10000, 0.0005)

	trade, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 10, 100, 1)
	require.NoError(t, err)
	require.NotNil(t, trade)

	// margin 1000, fee 0.5
	assert.InDelta(t, 8999.5, l.Cash(), 1e-9)
	assert.Equal(t, models.ActionBuy, trade.Action)
	assert.InDelta(t, 0.5, trade.Fee, 1e-9)

	pos, ok := l.Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)
	assert.InDelta(t, 100, pos.AvgEntryPrice, 1e-9)
}

func TestInsufficientFundsLeavesLedgerUntouched(t *testing.T) {
	l := NewLedger(100, 0.0005)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 10, 100, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assert.InDelta(t, 100, l.Cash(), 1e-9)
	assert.Empty(t, l.Trades())
	_, ok := l.Position("BTCUSDT")
	assert.False(t, ok)
}

func TestLeverageShrinksMargin(t *testing.T) {
	l := NewLedger(300, 0)

	// 10 * 100 notional needs only 200 margin at 5x
	_, err := l.OpenOrIncrease("ETHUSDT", models.SideLong, 10, 100, 5)
	require.NoError(t, err)
	assert.InDelta(t, 100, l.Cash(), 1e-9)
}

func TestIncreaseAveragesEntryPrice(t *testing.T) {
	l := NewLedger(10000, 0)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 1, 100, 1)
	require.NoError(t, err)
	_, err = l.OpenOrIncrease("BTCUSDT", models.SideLong, 1, 200, 1)
	require.NoError(t, err)

	pos, ok := l.Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 2, pos.Quantity, 1e-9)
	assert.InDelta(t, 150, pos.AvgEntryPrice, 1e-9)
	assert.Len(t, l.Trades(), 2)
}

func TestOppositeSideOpenRejected(t *testing.T) {
	l := NewLedger(10000, 0)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 1, 100, 1)
	require.NoError(t, err)
	_, err = l.OpenOrIncrease("BTCUSDT", models.SideShort, 1, 100, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCloseReturnsNetPnL(t *testing.T) {
	l := NewLedger(10000, 0.0005)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 10, 100, 1)
	require.NoError(t, err)

	trade, err := l.Close("BTCUSDT", 110)
	require.NoError(t, err)

	// gross 100, close fee 10*110*0.0005 = 0.55
	assert.InDelta(t, 99.45, trade.RealizedPnL, 1e-9)
	assert.InDelta(t, 10098.95, l.Cash(), 1e-9)

	_, ok := l.Position("BTCUSDT")
	assert.False(t, ok)
	assert.Len(t, l.Trades(), 2)
}

func TestCloseShortProfitsOnDecline(t *testing.T) {
	l := NewLedger(10000, 0)

	_, err := l.OpenOrIncrease("SOLUSDT", models.SideShort, 5, 100, 1)
	require.NoError(t, err)

	trade, err := l.Close("SOLUSDT", 90)
	require.NoError(t, err)
	assert.InDelta(t, 50, trade.RealizedPnL, 1e-9)
	assert.Equal(t, models.ActionBuy, trade.Action)
	assert.InDelta(t, 10050, l.Cash(), 1e-9)
}

func TestCloseWithoutPosition(t *testing.T) {
	l := NewLedger(1000, 0)
	_, err := l.Close("BTCUSDT", 100)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestSnapshotDerivesFromPrices(t *testing.T) {
	l := NewLedger(10000, 0)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 10, 100, 1)
	require.NoError(t, err)

	snap := l.Snapshot(map[string]float64{"BTCUSDT": 105})
	assert.InDelta(t, 9000, snap.Cash, 1e-9)
	assert.InDelta(t, 1000, snap.PositionsValue, 1e-9)
	assert.InDelta(t, 50, snap.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 10050, snap.TotalValue, 1e-9)
	require.Len(t, snap.Positions, 1)
}

func TestSnapshotMissingPriceUsesEntry(t *testing.T) {
	l := NewLedger(10000, 0)
	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 10, 100, 1)
	require.NoError(t, err)

	snap := l.Snapshot(nil)
	assert.InDelta(t, 0, snap.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 10000, snap.TotalValue, 1e-9)
}

func TestStatsTracksWinsAndLosses(t *testing.T) {
	l := NewLedger(10000, 0)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 1, 100, 1)
	require.NoError(t, err)
	_, err = l.Close("BTCUSDT", 120)
	require.NoError(t, err)

	_, err = l.OpenOrIncrease("ETHUSDT", models.SideLong, 1, 100, 1)
	require.NoError(t, err)
	_, err = l.Close("ETHUSDT", 90)
	require.NoError(t, err)

	stats := l.Stats(nil)
	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 1, stats.ProfitableTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 10, stats.RealizedPnL, 1e-9)
	assert.InDelta(t, 50, stats.WinRate, 1e-9)
	assert.InDelta(t, 20, stats.MaxProfit, 1e-9)
	assert.InDelta(t, -10, stats.MaxLoss, 1e-9)
}

func TestInvalidOrderParameters(t *testing.T) {
	l := NewLedger(1000, 0)

	_, err := l.OpenOrIncrease("BTCUSDT", models.SideLong, 0, 100, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = l.OpenOrIncrease("BTCUSDT", models.SideLong, 1, -5, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = l.OpenOrIncrease("BTCUSDT", models.SideLong, 1, 100, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}
