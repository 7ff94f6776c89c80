package domain

import "math"

// DiscountTier maps an inclusive upper bound on the purchasing power parity factor to a
// percentage discount and the promotion code that grants it at checkout.
type DiscountTier struct {
	MaxFactor float64
	Percent   int
	Code      string
}

// Ordered by ascending MaxFactor; ResolveTier relies on the first match being the tightest bound.
var discountTiers = [...]DiscountTier{
	{MaxFactor: 0.1, Percent: 90, Code: "CSVVSDVV"},
	{MaxFactor: 0.2, Percent: 80, Code: "LLSJDLWF"},
	{MaxFactor: 0.3, Percent: 70, Code: "KRUFLDLF"},
	{MaxFactor: 0.4, Percent: 60, Code: "PJLKHJHI"},
	{MaxFactor: 0.5, Percent: 50, Code: "AGEFDXSL"},
	{MaxFactor: 0.6, Percent: 40, Code: "FDJGFYLX"},
	{MaxFactor: 0.7, Percent: 30, Code: "SYSDJSMF"},
	{MaxFactor: 0.8, Percent: 20, Code: "WUEJCCFJ"},
	{MaxFactor: 1.0, Percent: 10, Code: "DHFVUFKE"},
}

// DiscountTiers returns a copy of the tier table.
func DiscountTiers() []DiscountTier {
	out := make([]DiscountTier, len(discountTiers))
	copy(out, discountTiers[:])
	return out
}

// ResolveTier returns the tier whose bound is the smallest one greater than or equal to factor.
// Factors above 1.0 earn no discount. Zero, negative and non-finite factors are not meaningful
// parity values and also resolve to no tier.
func ResolveTier(factor float64) (DiscountTier, bool) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return DiscountTier{}, false
	}
	for _, tier := range discountTiers {
		if factor <= tier.MaxFactor {
			return tier, true
		}
	}
	return DiscountTier{}, false
}

// TierByCode finds the tier granting the supplied promotion code.
func TierByCode(code string) (DiscountTier, bool) {
	for _, tier := range discountTiers {
		if tier.Code == code {
			return tier, true
		}
	}
	return DiscountTier{}, false
}
