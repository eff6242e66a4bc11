package analysis

import (
	"fmt"
	"math"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// PatternResult is one detector's verdict on the trailing window.
type PatternResult struct {
	Detected bool
	Strength float64
	Detail   string
}

// SupportResistance reports proximity to the 20-bar extremes.
type SupportResistanceResult struct {
	NearResistance  bool
	NearSupport     bool
	ResistanceLevel float64
	SupportLevel    float64
	Detail          string
}

// TrendHealthResult grades how cleanly the recent bars hold above their
// short moving average and 20-bar mean.
type TrendHealthResult struct {
	Healthy    bool
	Strength   float64
	Violations []string
	Detail     string
}

// PatternDetector runs the discrete price-action detectors. Every detector
// is a pure function of the bar window.
type PatternDetector struct {
	cfg    PatternConfig
	policy Policy
}

// NewPatternDetector builds a detector with the given parameters.
func NewPatternDetector(cfg PatternConfig, policy Policy) *PatternDetector {
	return &PatternDetector{cfg: cfg, policy: policy}
}

func barBody(b models.Bar) float64  { return math.Abs(b.Close - b.Open) }
func barRange(b models.Bar) float64 { return b.High - b.Low }
func isBullish(b models.Bar) bool   { return b.Close > b.Open }
func isBearish(b models.Bar) bool   { return b.Close < b.Open }

var noPattern = PatternResult{}

// BullishEngulfing detects a bullish bar whose close fully recovers the
// previous bearish bar's open.
func (d *PatternDetector) BullishEngulfing(bars []models.Bar) PatternResult {
	if len(bars) < 2 {
		return noPattern
	}
	curr := bars[len(bars)-1]
	previous := bars[len(bars)-2]

	if !isBearish(previous) || !isBullish(curr) {
		return noPattern
	}
	if curr.Close <= previous.Open {
		return noPattern
	}

	ratio := 1.0
	if prevBody := barBody(previous); prevBody > 0 {
		ratio = math.Min(barBody(curr)/prevBody, 3.0)
	}
	strength := math.Min(90, math.Trunc(60+ratio*10))
	return PatternResult{
		Detected: true,
		Strength: strength,
		Detail:   fmt.Sprintf("bullish engulfing: close %.2f swallows prior open %.2f", curr.Close, previous.Open),
	}
}

// BearishEngulfing is the mirror pattern, scored more conservatively.
func (d *PatternDetector) BearishEngulfing(bars []models.Bar) PatternResult {
	if len(bars) < 2 {
		return noPattern
	}
	curr := bars[len(bars)-1]
	previous := bars[len(bars)-2]

	if !isBullish(previous) || !isBearish(curr) {
		return noPattern
	}
	if curr.Close >= previous.Open {
		return noPattern
	}

	ratio := 1.0
	if prevBody := barBody(previous); prevBody > 0 {
		ratio = math.Min(barBody(curr)/prevBody, 3.0)
	}
	strength := math.Min(75, math.Trunc(50+ratio*8))
	return PatternResult{
		Detected: true,
		Strength: strength,
		Detail:   fmt.Sprintf("bearish engulfing: close %.2f swallows prior open %.2f", curr.Close, previous.Open),
	}
}

// Pinbar detects a false breakdown: a long lower wick at the window low
// with the close back in the upper half of the bar.
func (d *PatternDetector) Pinbar(bars []models.Bar) PatternResult {
	lookback := d.lookback()
	if len(bars) < lookback {
		return noPattern
	}
	curr := bars[len(bars)-1]
	window := bars[len(bars)-lookback:]

	body := barBody(curr)
	lowerWick := math.Min(curr.Open, curr.Close) - curr.Low
	if body <= 0 || lowerWick/body < d.cfg.PinbarWickRatio {
		return noPattern
	}
	if curr.Low > windowLow(window) {
		return noPattern
	}

	rng := barRange(curr)
	if rng <= 0 {
		return noPattern
	}
	closePos := (curr.Close - curr.Low) / rng
	if closePos < 0.5 {
		return noPattern
	}

	return PatternResult{
		Detected: true,
		Strength: math.Trunc(70 + closePos*20),
		Detail:   fmt.Sprintf("pinbar: new low %.2f rejected, wick/body %.1f", curr.Low, lowerWick/body),
	}
}

// ShootingStar detects the bearish mirror: a long upper wick at the window
// high with the close back in the lower half.
func (d *PatternDetector) ShootingStar(bars []models.Bar) PatternResult {
	lookback := d.lookback()
	if len(bars) < lookback {
		return noPattern
	}
	curr := bars[len(bars)-1]
	window := bars[len(bars)-lookback:]

	body := barBody(curr)
	upperWick := curr.High - math.Max(curr.Open, curr.Close)
	if body <= 0 || upperWick/body < d.cfg.PinbarWickRatio {
		return noPattern
	}
	if curr.High < windowHigh(window) {
		return noPattern
	}

	rng := barRange(curr)
	if rng <= 0 {
		return noPattern
	}
	closePos := (curr.Close - curr.Low) / rng
	if closePos > 0.5 {
		return noPattern
	}

	strength := math.Min(70, math.Trunc(60+(0.5-closePos)*20))
	return PatternResult{
		Detected: true,
		Strength: strength,
		Detail:   fmt.Sprintf("shooting star: new high %.2f rejected, wick/body %.1f", curr.High, upperWick/body),
	}
}

// ConsolidationAfterRally detects a large-bodied bullish bar followed by
// small sideways bars that do not drift lower.
func (d *PatternDetector) ConsolidationAfterRally(bars []models.Bar) PatternResult {
	n := d.cfg.ConsolidationBars
	if len(bars) < n+1 {
		return noPattern
	}

	rally := bars[len(bars)-n-1]
	rallyBody := rally.Close - rally.Open
	rallyRange := barRange(rally)
	if rallyBody <= 0 || rallyRange <= 0 || rallyBody/rallyRange < 0.8 {
		return noPattern
	}

	consol := bars[len(bars)-n:]
	bodySum := 0.0
	for _, b := range consol {
		bodySum += barBody(b)
	}
	if bodySum/float64(n) > rallyBody*0.3 {
		return noPattern
	}

	lowerLows := 0
	for i := 1; i < len(consol); i++ {
		if consol[i].Low < consol[i-1].Low {
			lowerLows++
		}
	}
	if lowerLows > 1 {
		return noPattern
	}

	latest := bars[len(bars)-1]
	if latest.Close < windowLow(consol) {
		return noPattern
	}

	return PatternResult{
		Detected: true,
		Strength: 75,
		Detail:   fmt.Sprintf("consolidation after rally: %d small bars holding the advance", n),
	}
}

// SupportAtMA detects a decline from the 20-bar high that stabilises on one
// of the tracked moving averages with shrinking bar bodies.
func (d *PatternDetector) SupportAtMA(bars []models.Bar) PatternResult {
	if len(bars) < 20 {
		return noPattern
	}

	closes := Closes(bars)
	curr := bars[len(bars)-1]
	high20 := windowHigh(bars[len(bars)-20:])
	if high20 <= 0 || (high20-curr.Close)/high20 < 0.05 {
		return noPattern
	}

	const tolerance = 0.03
	recent := bars[len(bars)-10:]

	recentBody := 0.0
	for _, b := range recent {
		recentBody += barBody(b)
	}
	recentBody /= 10
	earlierBody := 0.0
	for _, b := range bars[len(bars)-20 : len(bars)-10] {
		earlierBody += barBody(b)
	}
	earlierBody /= 10

	for _, period := range []int{5, 10, 20} {
		ma := SMA(closes, period)
		maValue := last(ma)
		if !IsAvailable(maValue) || maValue <= 0 {
			continue
		}
		if math.Abs(curr.Close-maValue)/maValue > tolerance {
			continue
		}

		breaks := 0
		for i := len(bars) - 10; i < len(bars); i++ {
			if IsAvailable(ma[i]) && bars[i].Low < ma[i]*0.97 {
				breaks++
			}
		}
		if breaks > 1 {
			continue
		}

		if recentBody < earlierBody*0.7 {
			return PatternResult{
				Detected: true,
				Strength: 70,
				Detail:   fmt.Sprintf("stabilised on MA%d (%.2f) after decline from %.2f", period, maValue, high20),
			}
		}
	}
	return noPattern
}

// OversoldBounce detects four or more consecutive bearish bars terminated
// by a decisive bullish bar.
func (d *PatternDetector) OversoldBounce(bars []models.Bar) PatternResult {
	if len(bars) < 6 {
		return noPattern
	}
	latest := bars[len(bars)-1]
	if !isBullish(latest) {
		return noPattern
	}

	run := 0
	totalDecline := 0.0
	for i := len(bars) - 2; i >= 0; i-- {
		b := bars[i]
		if !isBearish(b) {
			break
		}
		run++
		if b.Open > 0 {
			totalDecline += (b.Open - b.Close) / b.Open
		}
		if run >= 10 {
			break
		}
	}
	if run < 4 {
		return noPattern
	}

	rng := barRange(latest)
	if rng == 0 {
		return noPattern
	}
	bodyRatio := (latest.Close - latest.Open) / rng
	if bodyRatio < 0.4 {
		return noPattern
	}

	strength := 65 +
		math.Min(float64(run-4), 6)*2.5 +
		math.Min(bodyRatio-0.4, 0.4)*25 +
		math.Min(totalDecline, 0.2)*50
	strength = math.Min(math.Trunc(strength), 90)

	return PatternResult{
		Detected: true,
		Strength: strength,
		Detail:   fmt.Sprintf("oversold bounce: %d bearish bars (%.1f%% down) ended by a bullish bar", run, totalDecline*100),
	}
}

// OverboughtPullback detects four or more consecutive bullish bars
// terminated by a decisive bearish bar. Scored lower than the bullish
// mirror.
func (d *PatternDetector) OverboughtPullback(bars []models.Bar) PatternResult {
	if len(bars) < 6 {
		return noPattern
	}
	latest := bars[len(bars)-1]
	if !isBearish(latest) {
		return noPattern
	}

	run := 0
	totalRise := 0.0
	for i := len(bars) - 2; i >= 0; i-- {
		b := bars[i]
		if !isBullish(b) {
			break
		}
		run++
		if b.Open > 0 {
			totalRise += (b.Close - b.Open) / b.Open
		}
		if run >= 10 {
			break
		}
	}
	if run < 4 {
		return noPattern
	}

	rng := barRange(latest)
	if rng == 0 {
		return noPattern
	}
	bodyRatio := (latest.Open - latest.Close) / rng
	if bodyRatio < 0.4 {
		return noPattern
	}

	strength := 55 +
		math.Min(float64(run-4), 6)*2 +
		math.Min(bodyRatio-0.4, 0.4)*20 +
		math.Min(totalRise, 0.2)*40
	strength = math.Min(math.Trunc(strength), 75)

	return PatternResult{
		Detected: true,
		Strength: strength,
		Detail:   fmt.Sprintf("overbought pullback: %d bullish bars (%.1f%% up) ended by a bearish bar", run, totalRise*100),
	}
}

// SupportResistance reports whether price sits within 3% of the 20-bar
// extremes.
func (d *PatternDetector) SupportResistance(bars []models.Bar) SupportResistanceResult {
	if len(bars) < 20 {
		return SupportResistanceResult{}
	}

	window := bars[len(bars)-20:]
	price := bars[len(bars)-1].Close
	resistance := windowHigh(window)
	support := windowLow(window)

	resistanceDist := 1.0
	supportDist := 1.0
	if price > 0 {
		resistanceDist = (resistance - price) / price
		supportDist = (price - support) / price
	}

	const tolerance = 0.03
	res := SupportResistanceResult{
		NearResistance:  resistanceDist >= 0 && resistanceDist <= tolerance,
		NearSupport:     supportDist >= 0 && supportDist <= tolerance,
		ResistanceLevel: resistance,
		SupportLevel:    support,
	}
	switch {
	case res.NearResistance && res.NearSupport:
		res.Detail = fmt.Sprintf("near resistance %.2f and support %.2f", resistance, support)
	case res.NearResistance:
		res.Detail = fmt.Sprintf("near resistance %.2f (+%.1f%%)", resistance, resistanceDist*100)
	case res.NearSupport:
		res.Detail = fmt.Sprintf("near support %.2f (-%.1f%%)", support, supportDist*100)
	}
	return res
}

// TrendHealth counts closes below the 5-bar moving average and the 20-bar
// mean over the trailing 10 bars.
func (d *PatternDetector) TrendHealth(bars []models.Bar) TrendHealthResult {
	if len(bars) < 20 {
		return TrendHealthResult{Healthy: true, Strength: 50, Detail: "insufficient data"}
	}

	closes := Closes(bars)
	ma5 := SMA(closes, 5)
	mid := SMA(closes, 20)

	var violations []string
	ma5Violations := 0
	midViolations := 0
	for i := len(bars) - 10; i < len(bars); i++ {
		if IsAvailable(ma5[i]) && closes[i] < ma5[i] {
			ma5Violations++
			violations = append(violations, fmt.Sprintf("close %.2f < MA5 %.2f", closes[i], ma5[i]))
		}
		if IsAvailable(mid[i]) && closes[i] < mid[i] {
			midViolations++
		}
	}

	switch {
	case ma5Violations == 0:
		return TrendHealthResult{
			Healthy:  true,
			Strength: 90,
			Detail:   "strong trend: every close above the MA5 lifeline",
		}
	case midViolations <= 1:
		return TrendHealthResult{
			Healthy:    true,
			Strength:   70,
			Violations: capStrings(violations, 2),
			Detail:     fmt.Sprintf("healthy trend: only %d close(s) below the 20-bar mean", midViolations),
		}
	default:
		return TrendHealthResult{
			Healthy:    false,
			Strength:   40,
			Violations: capStrings(violations, 3),
			Detail:     fmt.Sprintf("weak trend: %d closes below MA5, %d below the 20-bar mean", ma5Violations, midViolations),
		}
	}
}

// AnalyzeAll runs every detector, partitions the hits into bullish and
// bearish camps and reconciles them. The bearish sum is discounted before
// comparison and sell needs a lower absolute gate against that discounted
// value, so short entries require disproportionately strong evidence.
func (d *PatternDetector) AnalyzeAll(bars []models.Bar) (models.Signal, []string) {
	minBars := 20
	if d.cfg.LookbackBars > minBars {
		minBars = d.cfg.LookbackBars
	}
	if len(bars) < minBars {
		return models.Signal{Action: models.ActionHold, Confidence: 0, Reason: "insufficient data for pattern analysis", Tier: models.Tier2}, nil
	}

	var details []string
	type hit struct {
		name     string
		strength float64
	}
	var bullish, bearish []hit

	if r := d.BullishEngulfing(bars); r.Detected {
		details = append(details, r.Detail)
		bullish = append(bullish, hit{"bullish engulfing", r.Strength})
	}
	if r := d.Pinbar(bars); r.Detected {
		details = append(details, r.Detail)
		bullish = append(bullish, hit{"pinbar", r.Strength})
	}
	if r := d.ConsolidationAfterRally(bars); r.Detected {
		details = append(details, r.Detail)
		bullish = append(bullish, hit{"consolidation", r.Strength})
	}
	if r := d.SupportAtMA(bars); r.Detected {
		details = append(details, r.Detail)
		bullish = append(bullish, hit{"ma support", r.Strength})
	}
	if r := d.OversoldBounce(bars); r.Detected {
		details = append(details, r.Detail)
		bullish = append(bullish, hit{"oversold bounce", r.Strength})
	}
	if r := d.BearishEngulfing(bars); r.Detected {
		details = append(details, r.Detail)
		bearish = append(bearish, hit{"bearish engulfing", r.Strength})
	}
	if r := d.ShootingStar(bars); r.Detected {
		details = append(details, r.Detail)
		bearish = append(bearish, hit{"shooting star", r.Strength})
	}
	if r := d.OverboughtPullback(bars); r.Detected {
		details = append(details, r.Detail)
		bearish = append(bearish, hit{"overbought pullback", r.Strength})
	}

	if sr := d.SupportResistance(bars); sr.Detail != "" {
		details = append(details, sr.Detail)
		if sr.NearResistance {
			bearish = append(bearish, hit{"near resistance", 60})
		}
		if sr.NearSupport {
			bullish = append(bullish, hit{"near support", 60})
		}
	}

	health := d.TrendHealth(bars)
	details = append(details, health.Detail)
	if health.Healthy {
		bullish = append(bullish, hit{"trend health", health.Strength})
	} else {
		details = append(details, health.Violations...)
		bearish = append(bearish, hit{"trend weakness", 100 - health.Strength})
	}

	bullishScore := 0.0
	for _, h := range bullish {
		bullishScore += h.strength
	}
	bearishScore := 0.0
	for _, h := range bearish {
		bearishScore += h.strength
	}
	bearishAdjusted := bearishScore * d.policy.BearishPatternDiscount

	var sig models.Signal
	sig.Tier = models.Tier2
	switch {
	case bullishScore > bearishAdjusted && bullishScore > d.policy.PatternBuyGate:
		sig.Action = models.ActionBuy
		sig.Confidence = math.Min(d.policy.PatternBuyCap, math.Trunc(bullishScore/float64(len(bullish))))
		sig.Reason = fmt.Sprintf("bullish patterns: %d long signals", len(bullish))
	case bearishAdjusted > bullishScore && bearishAdjusted > d.policy.PatternSellGate:
		sig.Action = models.ActionSell
		sig.Confidence = math.Min(d.policy.PatternSellCap, math.Trunc(bearishAdjusted/float64(len(bearish))))
		sig.Reason = fmt.Sprintf("bearish patterns: %d short signals", len(bearish))
	default:
		sig.Action = models.ActionHold
		sig.Confidence = 50
		if len(bullish) > 0 && len(bearish) > 0 {
			sig.Reason = fmt.Sprintf("mixed patterns (%d long, %d short)", len(bullish), len(bearish))
		} else {
			sig.Reason = "no decisive pattern"
		}
	}
	return sig, details
}

func (d *PatternDetector) lookback() int {
	if d.cfg.LookbackBars > 3 {
		return d.cfg.LookbackBars
	}
	return 3
}

func windowHigh(bars []models.Bar) float64 {
	h := math.Inf(-1)
	for _, b := range bars {
		if b.High > h {
			h = b.High
		}
	}
	return h
}

func windowLow(bars []models.Bar) float64 {
	l := math.Inf(1)
	for _, b := range bars {
		if b.Low < l {
			l = b.Low
		}
	}
	return l
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
