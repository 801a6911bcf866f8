/*
tier.go - Tier derivation from lifetime points

PURPOSE:
  Pure tier policy: maps cumulative lifetime points to a loyalty tier.
  No I/O, no side effects, total over all non-negative inputs.

THRESHOLDS (inclusive lower bounds):
  >= 5000  platinum
  >= 2000  gold
  >=  500  silver
  else     bronze

Tiers never downgrade: debits don't reduce lifetime points, and lifetime
points only grow on credits, so TierFor is monotone over a membership's
history. There is no tier decay over time.
*/
package loyalty

import "github.com/shopspring/decimal"

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Thresholds for each paid tier, as lifetime points.
const (
	SilverThreshold   int64 = 500
	GoldThreshold     int64 = 2000
	PlatinumThreshold int64 = 5000
)

// TierFor returns the tier for a cumulative lifetime point total.
func TierFor(lifetimePoints int64) Tier {
	switch {
	case lifetimePoints >= PlatinumThreshold:
		return TierPlatinum
	case lifetimePoints >= GoldThreshold:
		return TierGold
	case lifetimePoints >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// NextTier returns the tier above t, or t itself for platinum.
func NextTier(t Tier) Tier {
	switch t {
	case TierBronze:
		return TierSilver
	case TierSilver:
		return TierGold
	case TierGold:
		return TierPlatinum
	default:
		return TierPlatinum
	}
}

// tierFloor returns the lifetime-point threshold at which t begins.
func tierFloor(t Tier) int64 {
	switch t {
	case TierSilver:
		return SilverThreshold
	case TierGold:
		return GoldThreshold
	case TierPlatinum:
		return PlatinumThreshold
	default:
		return 0
	}
}

// PointsToNextTier returns how many more lifetime points are needed to reach
// the next tier. Zero for platinum members.
func PointsToNextTier(lifetimePoints int64) int64 {
	if lifetimePoints >= PlatinumThreshold {
		return 0
	}
	return tierFloor(NextTier(TierFor(lifetimePoints))) - lifetimePoints
}

// TierProgress returns the percentage progress through the current tier
// toward the next one, rounded to one decimal place. Platinum is always 100.
func TierProgress(lifetimePoints int64) decimal.Decimal {
	current := TierFor(lifetimePoints)
	if current == TierPlatinum {
		return decimal.NewFromInt(100)
	}

	floor := tierFloor(current)
	ceil := tierFloor(NextTier(current))

	earned := decimal.NewFromInt(lifetimePoints - floor)
	span := decimal.NewFromInt(ceil - floor)

	return earned.Div(span).Mul(decimal.NewFromInt(100)).Round(1)
}
