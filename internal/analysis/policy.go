package analysis

// Policy collects the asymmetric bullish/bearish constants in one place.
// Short entries are deliberately harder to reach than longs: bearish sums
// are discounted, bearish caps sit lower, and the blended bearish score
// takes a second haircut before comparison.
type Policy struct {
	// Candlestick aggregate.
	BearishPatternDiscount float64 // multiplier on the raw bearish strength sum
	PatternBuyGate         float64 // bullish sum must exceed this to emit buy
	PatternSellGate        float64 // discounted bearish sum must exceed this to emit sell
	PatternBuyCap          float64
	PatternSellCap         float64

	// Tier-1 EMA alignment.
	AlignBullBase    float64
	AlignBullCap     float64
	AlignBearBase    float64
	AlignBearCap     float64
	AlignDeviationX  float64 // confidence gained per percent of average deviation
	AlignDivergeConf float64 // hold confidence when the pairs disagree

	// Fusion decision.
	TierDominanceGate  float64 // tier-1 confidence above this dominates
	Tier2Boost         float64
	AuxBoost           float64
	FusionBuyCap       float64
	FusionSellCap      float64
	BlendTier1Weight   float64
	BlendTier2Weight   float64
	BlendAuxWeight     float64
	BlendGate          float64 // blended score must exceed this to act
	BearishBlendShave  float64 // extra multiplier on the blended bearish score
	IndecisionConf     float64 // hold confidence when nothing wins
}

// DefaultPolicy is the production risk policy.
var DefaultPolicy = Policy{
	BearishPatternDiscount: 0.7,
	PatternBuyGate:         70,
	PatternSellGate:        60,
	PatternBuyCap:          90,
	PatternSellCap:         75,

	AlignBullBase:    80,
	AlignBullCap:     95,
	AlignBearBase:    60,
	AlignBearCap:     75,
	AlignDeviationX:  3,
	AlignDivergeConf: 40,

	TierDominanceGate: 60,
	Tier2Boost:        5,
	AuxBoost:          3,
	FusionBuyCap:      95,
	FusionSellCap:     80,
	BlendTier1Weight:  0.5,
	BlendTier2Weight:  0.3,
	BlendAuxWeight:    0.2,
	BlendGate:         40,
	BearishBlendShave: 0.85,
	IndecisionConf:    50,
}
