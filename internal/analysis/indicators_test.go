package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMALeadingWindowIsNaN(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)

	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestSMAShortSeries(t *testing.T) {
	out := SMA([]float64{1, 2}, 5)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestEMASeededFromFirstValue(t *testing.T) {
	// alpha = 2/(2+1); the recursion starts from values[0], not from an
	// SMA of the first window.
	out := EMA([]float64{10, 20, 30}, 2)

	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 2.0/3*20+1.0/3*10, out[1], 1e-9)
	assert.InDelta(t, 2.0/3*30+1.0/3*(2.0/3*20+1.0/3*10), out[2], 1e-9)
}

func TestEMAConvergesTowardConstant(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 42
	}
	out := EMA(values, 10)
	assert.InDelta(t, 42, out[99], 1e-9)
}

func TestRSIAllGainsClampsTo100(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	out := RSI(values, 5)

	assert.True(t, math.IsNaN(out[4]))
	assert.InDelta(t, 100, out[5], 1e-9)
	assert.InDelta(t, 100, out[7], 1e-9)
}

func TestRSIFlatWindowHasNoOpinion(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5, 5}
	out := RSI(values, 3)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRSIStaysInRange(t *testing.T) {
	values := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.0, 46.1, 46.0, 46.4, 46.2, 45.6, 46.3, 46.3}
	out := RSI(values, 14)

	last := out[len(out)-1]
	require.False(t, math.IsNaN(last))
	assert.Greater(t, last, 0.0)
	assert.Less(t, last, 100.0)
}

func TestBollingerUsesSampleStdDev(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	upper, middle, lower := Bollinger(values, 5, 2)

	// mean 3, sample variance 10/4
	sd := math.Sqrt(2.5)
	assert.InDelta(t, 3, middle[4], 1e-9)
	assert.InDelta(t, 3+2*sd, upper[4], 1e-9)
	assert.InDelta(t, 3-2*sd, lower[4], 1e-9)
	assert.True(t, math.IsNaN(upper[3]))
}

func TestMACDSignalSeeding(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	macd, signal, hist := MACD(values, 12, 26, 9)

	// MACD line appears once the slow EMA window fills.
	assert.True(t, math.IsNaN(macd[24]))
	assert.False(t, math.IsNaN(macd[25]))

	// Signal line needs nine MACD values from that point.
	assert.True(t, math.IsNaN(signal[32]))
	assert.False(t, math.IsNaN(signal[33]))
	assert.False(t, math.IsNaN(hist[33]))
	assert.InDelta(t, macd[33]-signal[33], hist[33], 1e-9)
}
