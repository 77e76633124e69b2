package service

// metrics.go
// Pure derived-metric functions. Stateless: every input arrives as an
// argument and nil means "unknown", which propagates to a nil result rather
// than an error.

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateAge returns whole days between the inventoried date and today,
// or nil when the car was never inventoried.
func CalculateAge(inventoried *time.Time, today time.Time) *int {
	if inventoried == nil {
		return nil
	}
	days := int(today.Sub(*inventoried).Hours() / 24)
	return &days
}

// CalculatePayback returns whole days from inventoried to breakeven, or nil
// unless both dates are present. Negative values are possible when breakeven
// predates inventory and are kept as-is.
func CalculatePayback(breakeven, inventoried *time.Time) *int {
	if breakeven == nil || inventoried == nil {
		return nil
	}
	days := int(breakeven.Sub(*inventoried).Hours() / 24)
	return &days
}

// CalculateProfit returns the integer-truncated difference between the latest
// cumulative proceeds and the acquisition cost. Nil when either side is
// unknown: a missing cost makes profit meaningless, not zero.
func CalculateProfit(latestCumulative, cost *decimal.Decimal) *int64 {
	if cost == nil || latestCumulative == nil {
		return nil
	}
	p := latestCumulative.Sub(*cost).IntPart()
	return &p
}

// CalculateXs returns the return multiple (latest cumulative / cost) rounded
// to 2 places. Nil under the same conditions as profit; cost of zero is
// treated the same as missing — never a division by zero.
func CalculateXs(latestCumulative, cost *decimal.Decimal) *float64 {
	if cost == nil || latestCumulative == nil || cost.IsZero() {
		return nil
	}
	xs, _ := latestCumulative.Div(*cost).Round(2).Float64()
	return &xs
}
