package analysis

import (
	"math"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// Indicator series are full-length: the entry for bar i is the indicator
// value at bar i, or NaN while the trailing window is still filling. NaN
// means "no opinion" downstream, never a bullish or bearish vote.

var nan = math.NaN()

// IsAvailable reports whether an indicator value is usable.
func IsAvailable(v float64) bool {
	return !math.IsNaN(v)
}

// Closes extracts the closing-price series from a bar window.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA returns the simple moving average over a trailing window.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// applied recursively and seeded by the first value. Entries before the
// window has filled are NaN.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	alpha := 2.0 / float64(period+1)
	ema := values[0]
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		if i >= period-1 {
			out[i] = ema
		}
	}
	if period == 1 {
		out[0] = values[0]
	}
	return out
}

// RSI returns the relative strength index using trailing averages of gains
// and losses over the period. A zero loss average with positive gains
// clamps to 100; a flat window (no gains, no losses) stays NaN.
func RSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}

	for i := period; i < len(values); i++ {
		gains := 0.0
		losses := 0.0
		for j := i - period + 1; j <= i; j++ {
			change := values[j] - values[j-1]
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		switch {
		case avgLoss == 0 && avgGain == 0:
			// flat window, no opinion
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - (100 / (1 + rs))
		}
	}
	return out
}

// MACD returns the MACD line, signal line and histogram.
func MACD(values []float64, fast, slow, signalPeriod int) (macd, signal, hist []float64) {
	macd = nanSeries(len(values))
	signal = nanSeries(len(values))
	hist = nanSeries(len(values))

	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	for i := range values {
		if IsAvailable(emaFast[i]) && IsAvailable(emaSlow[i]) {
			macd[i] = emaFast[i] - emaSlow[i]
		}
	}

	// Signal line is an EMA of the MACD line, seeded at the first
	// available MACD value.
	start := firstAvailable(macd)
	if start < 0 || len(values)-start < signalPeriod {
		return macd, signal, hist
	}
	alpha := 2.0 / float64(signalPeriod+1)
	ema := macd[start]
	for i := start + 1; i < len(values); i++ {
		ema = alpha*macd[i] + (1-alpha)*ema
		if i >= start+signalPeriod-1 {
			signal[i] = ema
		}
	}
	if signalPeriod == 1 {
		signal[start] = macd[start]
	}

	for i := range values {
		if IsAvailable(macd[i]) && IsAvailable(signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	return macd, signal, hist
}

// Bollinger returns the upper, middle and lower bands: SMA(period) plus and
// minus stdDev multiples of the rolling sample standard deviation.
func Bollinger(values []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	middle = SMA(values, period)
	upper = nanSeries(len(values))
	lower = nanSeries(len(values))
	if period <= 1 || len(values) < period {
		return upper, middle, lower
	}

	for i := period - 1; i < len(values); i++ {
		mean := middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period-1))
		upper[i] = mean + stdDev*sd
		lower[i] = mean - stdDev*sd
	}
	return upper, middle, lower
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstAvailable(values []float64) int {
	for i, v := range values {
		if IsAvailable(v) {
			return i
		}
	}
	return -1
}
