// Package discount applies a cart-level discount in one of two mutually
// exclusive modes and derives the payable amount.
package discount

import (
	"github.com/shopspring/decimal"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
)

var maxPercent = decimal.NewFromInt(100)

// Result is the outcome of applying a discount to a gross amount. Spec holds
// the input with its inactive field refreshed for display.
type Result struct {
	Spec    domain.DiscountSpec `json:"spec"`
	Amount  decimal.Decimal     `json:"amount"`
	Loyalty decimal.Decimal     `json:"loyalty"`
	Payable decimal.Decimal     `json:"payable"`
}

// Normalize coerces a spec into range: unknown modes become percentage,
// negative values become zero and percent is capped at 100.
func Normalize(spec domain.DiscountSpec) domain.DiscountSpec {
	if spec.Mode != domain.DiscountAbsolute {
		spec.Mode = domain.DiscountPercentage
	}
	spec.Percent = money.Clamp(spec.Percent, decimal.Zero, maxPercent)
	spec.Absolute = money.Sanitize(spec.Absolute)
	return spec
}

// Apply computes the discount amount for gross and the resulting payable
// amount after loyalty redemption. Payable never goes below zero.
func Apply(gross decimal.Decimal, spec domain.DiscountSpec, loyalty decimal.Decimal) Result {
	gross = money.Sanitize(gross)
	loyalty = money.Sanitize(loyalty)
	spec = Refresh(gross, spec)

	amount := spec.Absolute
	if spec.Mode == domain.DiscountPercentage {
		amount = money.Percent(gross, spec.Percent)
	}

	return Result{
		Spec:    spec,
		Amount:  amount,
		Loyalty: loyalty,
		Payable: money.Max(decimal.Zero, gross.Sub(amount).Sub(loyalty)),
	}
}

// Refresh recomputes the derived field of spec against gross. The field of
// the active mode is never changed beyond range coercion.
func Refresh(gross decimal.Decimal, spec domain.DiscountSpec) domain.DiscountSpec {
	spec = Normalize(spec)
	gross = money.Sanitize(gross)

	switch spec.Mode {
	case domain.DiscountAbsolute:
		spec.Percent = money.RatioPercent(spec.Absolute, gross)
	default:
		spec.Absolute = money.Percent(gross, spec.Percent)
	}
	return spec
}

// SwitchMode makes mode authoritative. Both stored values are kept, so the
// user's last entry in the now-active field is what applies next.
func SwitchMode(spec domain.DiscountSpec, mode domain.DiscountMode) domain.DiscountSpec {
	spec.Mode = mode
	return Normalize(spec)
}
