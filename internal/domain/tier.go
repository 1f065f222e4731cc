package domain

// Tier is a gamified donor rank derived from total participation count.
type Tier string

const (
	TierUnranked  Tier = "UNRANKED"
	TierBeginner  Tier = "BEGINNER"
	TierCommitted Tier = "COMMITTED"
	TierHeroic    Tier = "HEROIC"
)

// Participation-count thresholds at which each tier starts.
const (
	beginnerThreshold  = 1
	committedThreshold = 3
	heroicThreshold    = 6
)

// TierProgress describes a tier and how far the donor is from the next one.
// For HEROIC, NextTier is HEROIC and NextThreshold is its own threshold.
type TierProgress struct {
	Tier            Tier
	NextTier        Tier
	NextThreshold   int
	ProgressPercent int
	RemainingToNext int
}

// ComputeTier maps a participation count to its tier and progress. Negative counts are treated as 0.
func ComputeTier(count int) TierProgress {
	if count < 0 {
		count = 0
	}

	var p TierProgress
	switch {
	case count >= heroicThreshold:
		p = TierProgress{Tier: TierHeroic, NextTier: TierHeroic, NextThreshold: heroicThreshold}
	case count >= committedThreshold:
		p = TierProgress{Tier: TierCommitted, NextTier: TierHeroic, NextThreshold: heroicThreshold}
	case count >= beginnerThreshold:
		p = TierProgress{Tier: TierBeginner, NextTier: TierCommitted, NextThreshold: committedThreshold}
	default:
		p = TierProgress{Tier: TierUnranked, NextTier: TierBeginner, NextThreshold: beginnerThreshold}
	}

	// Integer division floors for non-negative operands.
	p.ProgressPercent = min(100, 100*count/p.NextThreshold)
	p.RemainingToNext = max(0, p.NextThreshold-count)
	return p
}

// Rank orders tiers ascending; unknown values rank below UNRANKED.
func (t Tier) Rank() int {
	switch t {
	case TierUnranked:
		return 0
	case TierBeginner:
		return 1
	case TierCommitted:
		return 2
	case TierHeroic:
		return 3
	default:
		return -1
	}
}

func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	return t, t.Rank() >= 0
}
