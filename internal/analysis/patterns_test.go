package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

func newTestDetector() *PatternDetector {
	return NewPatternDetector(PatternConfig{
		LookbackBars:      20,
		PinbarWickRatio:   2.5,
		ConsolidationBars: 3,
	}, DefaultPolicy)
}

func bar(open, high, low, close float64) models.Bar {
	return models.Bar{Open: open, High: high, Low: low, Close: close}
}

func TestBullishEngulfing(t *testing.T) {
	d := newTestDetector()
	bars := []models.Bar{
		bar(105, 105.5, 99.5, 100), // bearish
		bar(99, 107.5, 98.5, 107),  // bullish, close above prior open
	}

	r := d.BullishEngulfing(bars)
	require.True(t, r.Detected)
	// body ratio 8/5 -> strength trunc(60 + 1.6*10)
	assert.InDelta(t, 76, r.Strength, 1e-9)
}

func TestBullishEngulfingNeedsEngulfedClose(t *testing.T) {
	d := newTestDetector()
	bars := []models.Bar{
		bar(105, 105.5, 99.5, 100),
		bar(99, 104.5, 98.5, 104), // bullish but closes below prior open
	}
	assert.False(t, d.BullishEngulfing(bars).Detected)
}

func TestBearishEngulfingScoresLower(t *testing.T) {
	d := newTestDetector()
	bars := []models.Bar{
		bar(100, 105.5, 99.5, 105), // bullish
		bar(106, 106.5, 97.5, 98),  // bearish, close below prior open
	}

	r := d.BearishEngulfing(bars)
	require.True(t, r.Detected)
	// same 1.6 body ratio scores 62 instead of 76
	assert.InDelta(t, 62, r.Strength, 1e-9)
}

func TestPinbarRejectsNewLow(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	for i := 0; i < 19; i++ {
		bars = append(bars, bar(100.5, 101, 100, 100.8))
	}
	bars = append(bars, bar(100.4, 101, 95, 100.8))

	r := d.Pinbar(bars)
	require.True(t, r.Detected)
	assert.GreaterOrEqual(t, r.Strength, 70.0)
	assert.LessOrEqual(t, r.Strength, 90.0)
}

func TestShootingStarRejectsNewHigh(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	for i := 0; i < 19; i++ {
		bars = append(bars, bar(109.5, 110, 109, 109.8))
	}
	bars = append(bars, bar(109.8, 115, 109.3, 109.5))

	r := d.ShootingStar(bars)
	require.True(t, r.Detected)
	assert.LessOrEqual(t, r.Strength, 70.0)
}

func TestConsolidationAfterRally(t *testing.T) {
	d := newTestDetector()
	bars := []models.Bar{
		bar(99, 100, 98.5, 99.5),
		bar(100, 110.5, 99.9, 110), // rally bar, body covers most of the range
		bar(110, 110.8, 109.5, 110.5),
		bar(110.5, 110.9, 109.6, 110.2),
		bar(110.2, 111, 109.8, 110.6),
	}

	r := d.ConsolidationAfterRally(bars)
	require.True(t, r.Detected)
	assert.InDelta(t, 75, r.Strength, 1e-9)
}

func TestOversoldBounce(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	bars = append(bars, bar(100, 100.8, 99.5, 100.5)) // bullish lead-in
	opens := []float64{100, 98, 96, 94, 92}
	for _, o := range opens {
		bars = append(bars, bar(o, o+0.5, o-2.5, o-2))
	}
	bars = append(bars, bar(90, 93.5, 89.5, 93)) // decisive bullish bar

	r := d.OversoldBounce(bars)
	require.True(t, r.Detected)
	assert.GreaterOrEqual(t, r.Strength, 65.0)
	assert.LessOrEqual(t, r.Strength, 90.0)
}

func TestOversoldBounceNeedsFourBearishBars(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	bars = append(bars, bar(100, 100.8, 99.5, 100.5))
	bars = append(bars, bar(100, 100.8, 99.5, 100.5))
	bars = append(bars, bar(100, 100.8, 99.5, 100.5))
	for _, o := range []float64{100, 98, 96} {
		bars = append(bars, bar(o, o+0.5, o-2.5, o-2))
	}
	bars = append(bars, bar(94, 97.5, 93.5, 97))

	assert.False(t, d.OversoldBounce(bars).Detected)
}

func TestOverboughtPullbackCapsAt75(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	bars = append(bars, bar(100, 100.8, 99.2, 99.5)) // bearish lead-in
	for _, o := range []float64{100, 103, 106, 109, 112, 115, 118, 121} {
		bars = append(bars, bar(o, o+3.5, o-0.5, o+3))
	}
	bars = append(bars, bar(124, 124.5, 120.5, 121)) // decisive bearish bar

	r := d.OverboughtPullback(bars)
	require.True(t, r.Detected)
	assert.LessOrEqual(t, r.Strength, 75.0)
}

func TestSupportResistanceProximity(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	for i := 0; i < 19; i++ {
		bars = append(bars, bar(100, 110, 90, 105))
	}
	bars = append(bars, bar(105, 109, 104, 108.5)) // within 3% of the 110 high

	r := d.SupportResistance(bars)
	assert.True(t, r.NearResistance)
	assert.False(t, r.NearSupport)
	assert.InDelta(t, 110, r.ResistanceLevel, 1e-9)
}

func TestTrendHealthStrongWhenAboveMA5(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	for i := 0; i < 25; i++ {
		p := 100 + float64(i)
		bars = append(bars, bar(p, p+1.2, p-0.5, p+1))
	}

	r := d.TrendHealth(bars)
	assert.True(t, r.Healthy)
	assert.InDelta(t, 90, r.Strength, 1e-9)
}

func TestAnalyzeAllOversoldBounceScenario(t *testing.T) {
	d := newTestDetector()

	var bars []models.Bar
	for i := 0; i < 14; i++ {
		p := 100 + float64(i)
		bars = append(bars, bar(p, p+1.5, p-0.5, p+1))
	}
	for _, o := range []float64{114, 112, 110, 108, 106} {
		bars = append(bars, bar(o, o+0.5, o-2.5, o-2))
	}
	bars = append(bars, bar(104, 107.5, 103.3, 107))

	sig, details := d.AnalyzeAll(bars)
	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.GreaterOrEqual(t, sig.Confidence, 65.0)
	assert.LessOrEqual(t, sig.Confidence, 90.0)
	assert.Equal(t, models.Tier2, sig.Tier)
	assert.NotEmpty(t, details)
}

func TestAnalyzeAllInsufficientData(t *testing.T) {
	d := newTestDetector()
	sig, _ := d.AnalyzeAll([]models.Bar{bar(1, 2, 0.5, 1.5)})

	assert.Equal(t, models.ActionHold, sig.Action)
	assert.Zero(t, sig.Confidence)
}

func TestAnalyzeAllQuietMarketHolds(t *testing.T) {
	d := newTestDetector()
	var bars []models.Bar
	for i := 0; i < 25; i++ {
		if i%2 == 0 {
			bars = append(bars, bar(100, 100.6, 99.7, 100.2))
		} else {
			bars = append(bars, bar(100.2, 100.7, 99.5, 99.9))
		}
	}

	sig, _ := d.AnalyzeAll(bars)
	assert.Equal(t, models.ActionHold, sig.Action)
}
