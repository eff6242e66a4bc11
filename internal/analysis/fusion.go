package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// Analyzer fuses the indicator, pattern and trend-strength opinions into a
// single actionable signal. It holds no state between evaluations: the
// result is purely a function of the bar window handed in.
type Analyzer struct {
	cfg      Config
	policy   Policy
	trend    *TrendStrengthAnalyzer
	patterns *PatternDetector
}

// Evaluation is the full breakdown behind one fused signal.
type Evaluation struct {
	Signal    models.Signal
	Tier1     []models.Signal
	Tier2     []models.Signal
	Auxiliary []models.Signal
	Details   []string
}

// NewAnalyzer builds an analyzer with the production risk policy.
func NewAnalyzer(cfg Config) *Analyzer {
	return NewAnalyzerWithPolicy(cfg, DefaultPolicy)
}

// NewAnalyzerWithPolicy builds an analyzer with an explicit policy table.
func NewAnalyzerWithPolicy(cfg Config, policy Policy) *Analyzer {
	a := &Analyzer{cfg: cfg, policy: policy}
	if cfg.TrendStrength != nil {
		a.trend = NewTrendStrengthAnalyzer(*cfg.TrendStrength)
	}
	if cfg.Patterns != nil {
		a.patterns = NewPatternDetector(*cfg.Patterns, policy)
	}
	return a
}

// Evaluate computes every enabled analysis over the bar window and resolves
// them under the two-stage priority policy. multiTimeframe may be nil; it
// only feeds the tier-1 trend strength check.
func (a *Analyzer) Evaluate(bars []models.Bar, multiTimeframe map[string][]models.Bar) *Evaluation {
	frame := BuildFrame(a.cfg, bars)
	ev := &Evaluation{}

	// Tier 1: EMA alignment plus multi-timeframe trend strength.
	if align := a.analyzeEMAAlignment(frame); align.Confidence > 0 {
		ev.Tier1 = append(ev.Tier1, align)
	}
	if a.trend != nil && multiTimeframe != nil {
		trendSig, _ := a.trend.AnalyzeMultiTimeframe(multiTimeframe)
		if trendSig.Confidence > 0 {
			ev.Tier1 = append(ev.Tier1, trendSig)
		}
	}

	// Tier 2: candlestick patterns.
	if a.patterns != nil {
		patternSig, details := a.patterns.AnalyzeAll(bars)
		if patternSig.Confidence > 0 {
			ev.Tier2 = append(ev.Tier2, patternSig)
		}
		ev.Details = append(ev.Details, details...)
	}

	// Auxiliary: single-indicator opinions.
	for _, sig := range []models.Signal{
		a.analyzeMAStack(frame),
		a.analyzeEMAStack(frame),
		a.analyzeBollinger(frame),
		a.analyzeRSI(frame),
		a.analyzeMACD(frame),
	} {
		if sig.Confidence > 0 {
			ev.Auxiliary = append(ev.Auxiliary, sig)
		}
	}

	ev.Signal = a.resolve(ev)
	return ev
}

// resolve applies the two-stage decision policy: a strong tier-1 side
// dominates and is boosted by agreement, otherwise the tiers are blended
// 50/30/20 with an extra haircut on the bearish side.
func (a *Analyzer) resolve(ev *Evaluation) models.Signal {
	if len(ev.Tier1)+len(ev.Tier2)+len(ev.Auxiliary) == 0 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "no usable indicator signals"}
	}

	t1Buy, t1Sell, t1BuyN, t1SellN := tierConfidence(ev.Tier1)
	t2Buy, t2Sell, t2BuyN, t2SellN := tierConfidence(ev.Tier2)
	auxBuy, auxSell, auxBuyN, auxSellN := tierConfidence(ev.Auxiliary)

	p := a.policy
	if t1Buy > p.TierDominanceGate || t1Sell > p.TierDominanceGate {
		if t1Buy > t1Sell {
			boost := 0.0
			if t2Buy > t2Sell {
				boost += p.Tier2Boost
			}
			if auxBuy > auxSell {
				boost += p.AuxBoost
			}
			return models.Signal{
				Action:     models.ActionBuy,
				Confidence: math.Trunc(minF(p.FusionBuyCap, t1Buy+boost)),
				Reason: fmt.Sprintf("tier-1 dominant buy (tier1 %d/%d, tier2 %d/%d, aux %d/%d)",
					t1BuyN, len(ev.Tier1), t2BuyN, len(ev.Tier2), auxBuyN, len(ev.Auxiliary)),
			}
		}
		boost := 0.0
		if t2Sell > t2Buy {
			boost += p.Tier2Boost
		}
		if auxSell > auxBuy {
			boost += p.AuxBoost
		}
		return models.Signal{
			Action:     models.ActionSell,
			Confidence: math.Trunc(minF(p.FusionSellCap, t1Sell+boost)),
			Reason: fmt.Sprintf("tier-1 dominant sell (tier1 %d/%d, tier2 %d/%d, aux %d/%d)",
				t1SellN, len(ev.Tier1), t2SellN, len(ev.Tier2), auxSellN, len(ev.Auxiliary)),
		}
	}

	totalBuy := t1Buy*p.BlendTier1Weight + t2Buy*p.BlendTier2Weight + auxBuy*p.BlendAuxWeight
	totalSell := t1Sell*p.BlendTier1Weight + t2Sell*p.BlendTier2Weight + auxSell*p.BlendAuxWeight

	switch {
	case totalBuy > totalSell && totalBuy > p.BlendGate:
		return models.Signal{
			Action:     models.ActionBuy,
			Confidence: math.Trunc(totalBuy),
			Reason:     fmt.Sprintf("blended buy (tier1 %d, tier2 %d, aux %d)", t1BuyN, t2BuyN, auxBuyN),
		}
	case totalSell > totalBuy && totalSell > p.BlendGate:
		return models.Signal{
			Action:     models.ActionSell,
			Confidence: math.Trunc(totalSell * p.BearishBlendShave),
			Reason:     fmt.Sprintf("blended sell (tier1 %d, tier2 %d, aux %d)", t1SellN, t2SellN, auxSellN),
		}
	default:
		return models.Signal{
			Action:     models.ActionHold,
			Confidence: p.IndecisionConf,
			Reason:     "signals diverge, standing aside",
		}
	}
}

// tierConfidence averages each side's confidence over ALL signals in the
// tier, so a lone vote among several opinions carries less weight.
func tierConfidence(signals []models.Signal) (buyConf, sellConf float64, buyN, sellN int) {
	if len(signals) == 0 {
		return 0, 0, 0, 0
	}
	var buySum, sellSum float64
	for _, s := range signals {
		switch s.Action {
		case models.ActionBuy:
			buySum += s.Confidence
			buyN++
		case models.ActionSell:
			sellSum += s.Confidence
			sellN++
		}
	}
	n := float64(len(signals))
	return buySum / n, sellSum / n, buyN, sellN
}

// analyzeEMAAlignment is the tier-1 check: every configured fast/slow pair
// must agree in direction. Deviation magnitude raises confidence; the
// bearish side starts lower and caps lower.
func (a *Analyzer) analyzeEMAAlignment(f *Frame) models.Signal {
	if len(a.cfg.AlignmentPairs) == 0 || len(f.Bars) == 0 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "no alignment pairs configured", Tier: models.Tier1}
	}

	allBullish := true
	allBearish := true
	totalDeviation := 0.0
	for _, pair := range a.cfg.AlignmentPairs {
		fast := last(f.EMA[pair.Fast])
		slow := last(f.EMA[pair.Slow])
		if !IsAvailable(fast) || !IsAvailable(slow) {
			return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "EMA window not filled", Tier: models.Tier1}
		}
		if fast <= slow {
			allBullish = false
		}
		if fast >= slow {
			allBearish = false
		}
		if slow > 0 {
			totalDeviation += math.Abs(fast-slow) / slow * 100
		}
	}
	avgDeviation := totalDeviation / float64(len(a.cfg.AlignmentPairs))

	p := a.policy
	switch {
	case allBullish:
		return models.Signal{
			Action:     models.ActionBuy,
			Confidence: minF(p.AlignBullCap, math.Trunc(p.AlignBullBase+avgDeviation*p.AlignDeviationX)),
			Reason:     fmt.Sprintf("EMA bullish alignment, avg deviation %.2f%%", avgDeviation),
			Tier:       models.Tier1,
		}
	case allBearish:
		return models.Signal{
			Action:     models.ActionSell,
			Confidence: minF(p.AlignBearCap, math.Trunc(p.AlignBearBase+avgDeviation*p.AlignDeviationX)),
			Reason:     fmt.Sprintf("EMA bearish alignment, avg deviation %.2f%%", avgDeviation),
			Tier:       models.Tier1,
		}
	default:
		return models.Signal{
			Action:     models.ActionHold,
			Confidence: p.AlignDivergeConf,
			Reason:     "EMA pairs diverge",
			Tier:       models.Tier1,
		}
	}
}

// analyzeMAStack checks whether the configured moving averages stack from
// short above long (or the reverse) with price leading the shortest.
func (a *Analyzer) analyzeMAStack(f *Frame) models.Signal {
	return a.analyzeStack(f, f.MA, a.cfg.MAPeriods, "MA", 80)
}

// analyzeEMAStack is the same check over the EMA set, scored slightly
// higher.
func (a *Analyzer) analyzeEMAStack(f *Frame) models.Signal {
	return a.analyzeStack(f, f.EMA, a.cfg.EMAPeriods, "EMA", 85)
}

func (a *Analyzer) analyzeStack(f *Frame, series map[int][]float64, periods []int, label string, conf float64) models.Signal {
	if len(periods) == 0 || len(f.Bars) < 2 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: label + " not configured", Tier: models.TierAuxiliary}
	}

	sorted := append([]int(nil), periods...)
	sort.Ints(sorted)

	bullish := true
	bearish := true
	for i := 0; i < len(sorted)-1; i++ {
		short := last(series[sorted[i]])
		long := last(series[sorted[i+1]])
		if !IsAvailable(short) || !IsAvailable(long) {
			continue
		}
		if short <= long {
			bullish = false
		}
		if short >= long {
			bearish = false
		}
	}

	price := last(f.Close)
	shortest := last(series[sorted[0]])
	if !IsAvailable(shortest) {
		shortest = price
	}

	switch {
	case bullish && price > shortest:
		return models.Signal{
			Action:     models.ActionBuy,
			Confidence: conf,
			Reason:     fmt.Sprintf("%s stack bullish: price %.2f above the short average", label, price),
			Tier:       models.TierAuxiliary,
		}
	case bearish && price < shortest:
		return models.Signal{
			Action:     models.ActionSell,
			Confidence: conf,
			Reason:     fmt.Sprintf("%s stack bearish: price %.2f below the short average", label, price),
			Tier:       models.TierAuxiliary,
		}
	default:
		return models.Signal{
			Action:     models.ActionHold,
			Confidence: 50,
			Reason:     label + " stack interleaved",
			Tier:       models.TierAuxiliary,
		}
	}
}

func (a *Analyzer) analyzeBollinger(f *Frame) models.Signal {
	if a.cfg.Bollinger == nil || len(f.Bars) < 2 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "bollinger disabled", Tier: models.TierAuxiliary}
	}
	price := last(f.Close)
	upper := last(f.BollUpper)
	middle := last(f.BollMiddle)
	lower := last(f.BollLower)
	if !IsAvailable(upper) || !IsAvailable(middle) || !IsAvailable(lower) {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "bollinger window not filled", Tier: models.TierAuxiliary}
	}

	switch {
	case price <= lower:
		return models.Signal{Action: models.ActionBuy, Confidence: 80,
			Reason: fmt.Sprintf("price %.2f at lower band %.2f", price, lower), Tier: models.TierAuxiliary}
	case price >= upper:
		return models.Signal{Action: models.ActionSell, Confidence: 80,
			Reason: fmt.Sprintf("price %.2f at upper band %.2f", price, upper), Tier: models.TierAuxiliary}
	case price > middle:
		return models.Signal{Action: models.ActionHold, Confidence: 60,
			Reason: fmt.Sprintf("price %.2f above mid band %.2f", price, middle), Tier: models.TierAuxiliary}
	default:
		return models.Signal{Action: models.ActionHold, Confidence: 60,
			Reason: fmt.Sprintf("price %.2f below mid band %.2f", price, middle), Tier: models.TierAuxiliary}
	}
}

func (a *Analyzer) analyzeRSI(f *Frame) models.Signal {
	if a.cfg.RSIPeriod <= 0 || len(f.Bars) < 2 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "rsi disabled", Tier: models.TierAuxiliary}
	}
	rsi := last(f.RSI)
	if !IsAvailable(rsi) {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "rsi window not filled", Tier: models.TierAuxiliary}
	}

	switch {
	case rsi < a.cfg.RSIOversold:
		return models.Signal{Action: models.ActionBuy, Confidence: 75,
			Reason: fmt.Sprintf("RSI %.1f oversold", rsi), Tier: models.TierAuxiliary}
	case rsi > a.cfg.RSIOverbought:
		return models.Signal{Action: models.ActionSell, Confidence: 75,
			Reason: fmt.Sprintf("RSI %.1f overbought", rsi), Tier: models.TierAuxiliary}
	default:
		return models.Signal{Action: models.ActionHold, Confidence: 50,
			Reason: fmt.Sprintf("RSI %.1f neutral", rsi), Tier: models.TierAuxiliary}
	}
}

// analyzeMACD reads a golden or death cross from the sign change between
// the previous and current bar.
func (a *Analyzer) analyzeMACD(f *Frame) models.Signal {
	if a.cfg.MACD == nil || len(f.Bars) < 2 {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "macd disabled", Tier: models.TierAuxiliary}
	}
	macd := last(f.MACD)
	signal := last(f.MACDSignal)
	prevMACD := prev(f.MACD)
	prevSignal := prev(f.MACDSignal)
	if !IsAvailable(macd) || !IsAvailable(signal) {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "macd window not filled", Tier: models.TierAuxiliary}
	}

	crossUp := IsAvailable(prevMACD) && IsAvailable(prevSignal) && prevMACD <= prevSignal && macd > signal
	crossDown := IsAvailable(prevMACD) && IsAvailable(prevSignal) && prevMACD >= prevSignal && macd < signal

	switch {
	case crossUp:
		return models.Signal{Action: models.ActionBuy, Confidence: 80,
			Reason: "MACD golden cross", Tier: models.TierAuxiliary}
	case crossDown:
		return models.Signal{Action: models.ActionSell, Confidence: 80,
			Reason: "MACD death cross", Tier: models.TierAuxiliary}
	default:
		return models.Signal{Action: models.ActionHold, Confidence: 50,
			Reason: "MACD no crossover", Tier: models.TierAuxiliary}
	}
}
