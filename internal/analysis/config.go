package analysis

import "github.com/sher1096/ai-trading-game-enhanced/internal/models"

// EMAPair is one fast/slow pair checked by the tier-1 alignment signal.
type EMAPair struct {
	Fast int
	Slow int
}

// MACDConfig holds the MACD periods.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

// BollingerConfig holds the Bollinger band parameters.
type BollingerConfig struct {
	Period int
	StdDev float64
}

// TrendStrengthConfig holds the multi-timeframe trend strength parameters.
type TrendStrengthConfig struct {
	Timeframes []string
	BarsCount  int
}

// PatternConfig holds the candlestick detector parameters.
type PatternConfig struct {
	LookbackBars      int
	PinbarWickRatio   float64
	ConsolidationBars int
}

// Config enumerates the indicator set for one analyzer. It is resolved once
// at setup; a nil pointer or empty slice disables that indicator. There is
// no string-keyed dispatch at evaluation time.
type Config struct {
	MAPeriods      []int
	EMAPeriods     []int
	AlignmentPairs []EMAPair
	RSIPeriod      int
	RSIOversold    float64
	RSIOverbought  float64
	MACD           *MACDConfig
	Bollinger      *BollingerConfig
	TrendStrength  *TrendStrengthConfig
	Patterns       *PatternConfig
}

// DefaultConfig mirrors the stock multi-indicator setup: the two long EMA
// alignment pairs, a short/long MA stack, RSI 14, MACD 12/26/9 and 20-bar
// Bollinger bands.
func DefaultConfig() Config {
	return Config{
		MAPeriods:      []int{5, 20},
		EMAPeriods:     []int{144, 169, 576, 676},
		AlignmentPairs: []EMAPair{{Fast: 144, Slow: 576}, {Fast: 169, Slow: 676}},
		RSIPeriod:      14,
		RSIOversold:    30,
		RSIOverbought:  70,
		MACD:           &MACDConfig{Fast: 12, Slow: 26, Signal: 9},
		Bollinger:      &BollingerConfig{Period: 20, StdDev: 2},
		TrendStrength:  &TrendStrengthConfig{Timeframes: []string{"1h", "4h", "1d"}, BarsCount: 3},
		Patterns:       &PatternConfig{LookbackBars: 20, PinbarWickRatio: 2.5, ConsolidationBars: 3},
	}
}

// Frame is a bar window augmented with the computed indicator columns.
type Frame struct {
	Bars  []models.Bar
	Close []float64

	MA  map[int][]float64
	EMA map[int][]float64

	RSI []float64

	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64

	BollUpper  []float64
	BollMiddle []float64
	BollLower  []float64
}

// BuildFrame computes every enabled indicator over the bar window.
func BuildFrame(cfg Config, bars []models.Bar) *Frame {
	closes := Closes(bars)
	f := &Frame{
		Bars:  bars,
		Close: closes,
		MA:    make(map[int][]float64, len(cfg.MAPeriods)),
		EMA:   make(map[int][]float64, len(cfg.EMAPeriods)),
	}

	for _, period := range cfg.MAPeriods {
		f.MA[period] = SMA(closes, period)
	}
	for _, period := range cfg.EMAPeriods {
		f.EMA[period] = EMA(closes, period)
	}
	for _, pair := range cfg.AlignmentPairs {
		for _, period := range []int{pair.Fast, pair.Slow} {
			if _, ok := f.EMA[period]; !ok {
				f.EMA[period] = EMA(closes, period)
			}
		}
	}
	if cfg.RSIPeriod > 0 {
		f.RSI = RSI(closes, cfg.RSIPeriod)
	}
	if cfg.MACD != nil {
		f.MACD, f.MACDSignal, f.MACDHist = MACD(closes, cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal)
	}
	if cfg.Bollinger != nil {
		f.BollUpper, f.BollMiddle, f.BollLower = Bollinger(closes, cfg.Bollinger.Period, cfg.Bollinger.StdDev)
	}
	return f
}

// last returns the final value of a series, or NaN for an empty one.
func last(series []float64) float64 {
	if len(series) == 0 {
		return nan
	}
	return series[len(series)-1]
}

// prev returns the next-to-last value of a series, or NaN.
func prev(series []float64) float64 {
	if len(series) < 2 {
		return nan
	}
	return series[len(series)-2]
}
