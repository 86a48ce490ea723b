package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatGrouping(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		style Style
		want  string
	}{
		{name: "small", in: "5", style: DefaultStyle, want: "₹5.00"},
		{name: "hundreds", in: "999.999", style: DefaultStyle, want: "₹1,000.00"},
		{name: "indian lakh", in: "123456.7", style: DefaultStyle, want: "₹1,23,456.70"},
		{name: "indian crore", in: "12345678.9", style: DefaultStyle, want: "₹1,23,45,678.90"},
		{name: "western", in: "1234567.891", style: Style{Symbol: "$", Grouping: GroupingWestern}, want: "$1,234,567.89"},
		{name: "negative", in: "-1500.5", style: DefaultStyle, want: "-₹1,500.50"},
		{name: "negative rounds to zero", in: "-0.001", style: DefaultStyle, want: "₹0.00"},
		{name: "half rounds away from zero", in: "2.345", style: DefaultStyle, want: "₹2.35"},
		{name: "empty grouping defaults", in: "100000", style: Style{Symbol: "Rs "}, want: "Rs 1,00,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.in), tt.style))
		})
	}
}

func TestFromFloatCoercesInvalidInput(t *testing.T) {
	assert.True(t, FromFloat(math.NaN()).IsZero())
	assert.True(t, FromFloat(math.Inf(1)).IsZero())
	assert.True(t, FromFloat(-3).IsZero())
	assert.True(t, FromFloat(12.5).Equal(decimal.RequireFromString("12.5")))
}

func TestParse(t *testing.T) {
	d, ok := Parse(" 10.25 ")
	require.True(t, ok)
	assert.Equal(t, "10.25", d.String())

	d, ok = Parse("abc")
	assert.False(t, ok)
	assert.True(t, d.IsZero())
}

func TestRatioPercentZeroWhole(t *testing.T) {
	assert.True(t, RatioPercent(decimal.NewFromInt(20), decimal.Zero).IsZero())
	assert.Equal(t, "10", RatioPercent(decimal.NewFromInt(20), decimal.NewFromInt(200)).String())
}

func TestClampAndPlain(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	assert.True(t, Clamp(decimal.NewFromInt(150), decimal.Zero, hundred).Equal(hundred))
	assert.True(t, Clamp(decimal.NewFromInt(-1), decimal.Zero, hundred).IsZero())
	assert.Equal(t, "12.30", Plain(decimal.RequireFromString("12.3")))
}
