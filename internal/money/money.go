// Package money holds the rounding and formatting rules shared by every
// checkout component. Amounts are carried at full precision and only rounded
// here, at display or persistence boundaries.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits committed for currency amounts.
const Places = 2

type Grouping string

const (
	// GroupingIndian groups the last three digits, then pairs: 12,34,567.00.
	GroupingIndian Grouping = "indian"
	// GroupingWestern groups every three digits: 1,234,567.00.
	GroupingWestern Grouping = "western"
)

// Style controls how Format renders an amount.
type Style struct {
	Symbol   string
	Grouping Grouping
}

// DefaultStyle is used when store settings do not name a currency.
var DefaultStyle = Style{Symbol: "₹", Grouping: GroupingIndian}

var hundred = decimal.NewFromInt(100)

// Round commits an amount to two decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Sanitize coerces negative amounts to zero.
func Sanitize(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FromFloat converts a float coming from an untyped boundary. NaN, infinities
// and negative values become zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// Parse reads a decimal string. Invalid input yields zero and ok=false.
func Parse(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Percent returns d × pct / 100 without intermediate rounding.
func Percent(d decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return d.Mul(pct).Div(hundred)
}

// RatioPercent returns part / whole × 100, or zero when whole is not positive.
func RatioPercent(part decimal.Decimal, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Max returns the larger of a and b.
func Max(a decimal.Decimal, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp bounds d into [lo, hi].
func Clamp(d decimal.Decimal, lo decimal.Decimal, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Format renders d rounded to two places with grouped thousands and the
// currency glyph prefixed, e.g. "₹1,23,456.70". Every receipt layout goes
// through this function.
func Format(d decimal.Decimal, style Style) string {
	if style.Grouping == "" {
		style.Grouping = DefaultStyle.Grouping
	}

	fixed := Round(d).StringFixed(Places)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		fixed = fixed[1:]
		if strings.Trim(fixed, "0.") != "" {
			sign = "-"
		}
	}

	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + style.Symbol + group(whole, style.Grouping) + "." + frac
}

// Plain renders d with two places and no glyph or grouping. Used for machine
// readable exports.
func Plain(d decimal.Decimal) string {
	return Round(d).StringFixed(Places)
}

func group(digits string, grouping Grouping) string {
	if len(digits) <= 3 {
		return digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	size := 3
	if grouping == GroupingIndian {
		size = 2
	}

	parts := make([]string, 0, len(head)/size+2)
	for len(head) > size {
		parts = append([]string{head[len(head)-size:]}, parts...)
		head = head[:len(head)-size]
	}
	parts = append([]string{head}, parts...)
	parts = append(parts, tail)
	return strings.Join(parts, ",")
}
