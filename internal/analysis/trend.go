package analysis

import (
	"fmt"
	"strings"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// Direction classifies a price sequence.
type Direction string

const (
	DirRising  Direction = "rising"
	DirFalling Direction = "falling"
	DirNeutral Direction = "neutral"
)

// TimeframeTrend is the high/low classification of one timeframe.
type TimeframeTrend struct {
	Timeframe string
	Trend     string // "bullish", "bearish", "neutral"
	HighTrend Direction
	LowTrend  Direction
	Strength  float64
	Detail    string
}

// TrendStrengthAnalyzer judges trend strength from whether recent highs and
// lows are rising or falling in sync, per timeframe and across timeframes.
type TrendStrengthAnalyzer struct {
	cfg TrendStrengthConfig
}

// NewTrendStrengthAnalyzer builds an analyzer for the configured timeframes.
func NewTrendStrengthAnalyzer(cfg TrendStrengthConfig) *TrendStrengthAnalyzer {
	if cfg.BarsCount <= 0 {
		cfg.BarsCount = 3
	}
	return &TrendStrengthAnalyzer{cfg: cfg}
}

// classifySequence calls a direction when at least 70% of the consecutive
// deltas move that way.
func classifySequence(prices []float64) Direction {
	if len(prices) < 2 {
		return DirNeutral
	}
	rising := 0
	falling := 0
	for i := 1; i < len(prices); i++ {
		if prices[i] > prices[i-1] {
			rising++
		} else if prices[i] < prices[i-1] {
			falling++
		}
	}
	total := float64(len(prices) - 1)
	switch {
	case float64(rising) >= total*0.7:
		return DirRising
	case float64(falling) >= total*0.7:
		return DirFalling
	default:
		return DirNeutral
	}
}

// AnalyzeTimeframe classifies the trailing highs and lows of one timeframe.
func (a *TrendStrengthAnalyzer) AnalyzeTimeframe(bars []models.Bar, timeframe string) TimeframeTrend {
	if len(bars) < a.cfg.BarsCount {
		return TimeframeTrend{
			Timeframe: timeframe,
			Trend:     "neutral",
			HighTrend: DirNeutral,
			LowTrend:  DirNeutral,
			Detail:    "insufficient data",
		}
	}

	recent := bars[len(bars)-a.cfg.BarsCount:]
	highs := make([]float64, len(recent))
	lows := make([]float64, len(recent))
	for i, b := range recent {
		highs[i] = b.High
		lows[i] = b.Low
	}

	t := TimeframeTrend{
		Timeframe: timeframe,
		HighTrend: classifySequence(highs),
		LowTrend:  classifySequence(lows),
	}

	switch {
	case t.HighTrend == DirRising && t.LowTrend == DirRising:
		t.Trend, t.Strength = "bullish", 85
		t.Detail = timeframe + ": highs and lows rising in sync"
	case t.HighTrend == DirFalling && t.LowTrend == DirFalling:
		t.Trend, t.Strength = "bearish", 85
		t.Detail = timeframe + ": highs and lows falling in sync"
	case t.HighTrend == DirRising && t.LowTrend == DirNeutral,
		t.HighTrend == DirNeutral && t.LowTrend == DirRising:
		t.Trend, t.Strength = "bullish", 60
		t.Detail = timeframe + ": one side rising, lean bullish"
	case t.HighTrend == DirFalling && t.LowTrend == DirNeutral,
		t.HighTrend == DirNeutral && t.LowTrend == DirFalling:
		t.Trend, t.Strength = "bearish", 60
		t.Detail = timeframe + ": one side falling, lean bearish"
	case t.HighTrend == DirRising && t.LowTrend == DirFalling:
		t.Trend, t.Strength = "neutral", 40
		t.Detail = timeframe + ": range expanding"
	case t.HighTrend == DirFalling && t.LowTrend == DirRising:
		t.Trend, t.Strength = "neutral", 40
		t.Detail = timeframe + ": range contracting"
	default:
		t.Trend, t.Strength = "neutral", 30
		t.Detail = timeframe + ": sideways"
	}
	return t
}

// AnalyzeMultiTimeframe aggregates the per-timeframe classifications into
// one signal: a direction wins when at least 60% of the analysed timeframes
// agree with strength 60 or better.
func (a *TrendStrengthAnalyzer) AnalyzeMultiTimeframe(barsByTimeframe map[string][]models.Bar) (models.Signal, []TimeframeTrend) {
	var results []TimeframeTrend
	var bullish, bearish []string

	for _, tf := range a.cfg.Timeframes {
		bars, ok := barsByTimeframe[tf]
		if !ok || len(bars) == 0 {
			continue
		}
		t := a.AnalyzeTimeframe(bars, tf)
		results = append(results, t)
		if t.Trend == "bullish" && t.Strength >= 60 {
			bullish = append(bullish, fmt.Sprintf("%s(%.0f%%)", tf, t.Strength))
		} else if t.Trend == "bearish" && t.Strength >= 60 {
			bearish = append(bearish, fmt.Sprintf("%s(%.0f%%)", tf, t.Strength))
		}
	}

	total := len(results)
	if total == 0 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "no timeframe data", Tier: models.Tier1}, nil
	}

	sig := models.Signal{Tier: models.Tier1}
	switch {
	case float64(len(bullish)) >= float64(total)*0.6:
		sig.Action = models.ActionBuy
		sig.Confidence = minF(90, 60+float64(len(bullish))*10)
		sig.Reason = "multi-timeframe bullish consensus: " + strings.Join(bullish, ", ")
	case float64(len(bearish)) >= float64(total)*0.6:
		sig.Action = models.ActionSell
		sig.Confidence = minF(90, 60+float64(len(bearish))*10)
		sig.Reason = "multi-timeframe bearish consensus: " + strings.Join(bearish, ", ")
	default:
		sig.Action = models.ActionHold
		sig.Confidence = 40
		sig.Reason = fmt.Sprintf("timeframes diverge: %d bullish, %d bearish", len(bullish), len(bearish))
	}
	return sig, results
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
