package domain

import "github.com/shopspring/decimal"

// CountrySource records how a request's country was determined.
type CountrySource string

const (
	CountrySourceSimulated   CountrySource = "simulated"
	CountrySourceGeolocated  CountrySource = "geolocated"
	CountrySourceUnavailable CountrySource = "unavailable"
)

// PriceQuote is the per-request pricing decision. A quote without a country carries neither a
// factor nor a tier; a quote with a country but no tier is not eligible for a discount.
type PriceQuote struct {
	Country       string
	CountrySource CountrySource
	// Factor is the parity conversion factor used to pick the tier. FactorDefaulted is set when
	// the data service could not supply one and the neutral factor 1 was substituted.
	Factor          float64
	FactorDefaulted bool
	Tier            *DiscountTier
}

// HasCountry reports whether the quote was computed for a known country.
func (q PriceQuote) HasCountry() bool {
	return q.Country != ""
}

// Discount returns the discount percentage, if any.
func (q PriceQuote) Discount() (int, bool) {
	if q.Tier == nil {
		return 0, false
	}
	return q.Tier.Percent, true
}

// Code returns the promotion code granting the discount, if any.
func (q PriceQuote) Code() (string, bool) {
	if q.Tier == nil {
		return "", false
	}
	return q.Tier.Code, true
}

// AdjustedPrice applies the quote's discount to base.
func (q PriceQuote) AdjustedPrice(base int64) int64 {
	percent, _ := q.Discount()
	return AdjustedPrice(base, percent)
}

// AdjustedPrice returns base reduced by percent, rounded half away from zero to a whole number of
// minor units. Percentages are clamped to [0, 100] so the result never exceeds base and is never
// negative.
func AdjustedPrice(base int64, percent int) int64 {
	if base <= 0 {
		return 0
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(int64(100 - percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
