// Package pricing derives line and cart amounts from line items. Every value
// is carried at full precision; Rounded commits them to currency places.
package pricing

import (
	"github.com/shopspring/decimal"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
)

var maxTaxRate = decimal.NewFromInt(100)

type Line struct {
	LineID string          `json:"line_id"`
	Gross  decimal.Decimal `json:"gross"`
	Tax    decimal.Decimal `json:"tax"`
}

type Totals struct {
	Lines    []Line          `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Grand    decimal.Decimal `json:"grand"`
}

// CalculateLine prices a single row. Negative quantity or price and tax rates
// outside 0..100 are coerced rather than rejected.
func CalculateLine(item domain.LineItem) Line {
	qty := money.Sanitize(item.Quantity)
	price := money.Sanitize(item.UnitPrice)
	rate := money.Clamp(item.TaxRate, decimal.Zero, maxTaxRate)

	gross := qty.Mul(price)
	return Line{
		LineID: item.LineID,
		Gross:  gross,
		Tax:    money.Percent(gross, rate),
	}
}

// Calculate returns subtotal, tax and grand total for items.
func Calculate(items []domain.LineItem) Totals {
	totals := Totals{
		Lines:    make([]Line, 0, len(items)),
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
	}
	for _, item := range items {
		line := CalculateLine(item)
		totals.Lines = append(totals.Lines, line)
		totals.Subtotal = totals.Subtotal.Add(line.Gross)
		totals.Tax = totals.Tax.Add(line.Tax)
	}
	totals.Grand = totals.Subtotal.Add(totals.Tax)
	return totals
}

// Rounded commits subtotal and tax to currency places and derives grand from
// the committed values, so the printed figures always add up.
func (t Totals) Rounded() Totals {
	out := Totals{
		Lines:    make([]Line, len(t.Lines)),
		Subtotal: money.Round(t.Subtotal),
		Tax:      money.Round(t.Tax),
	}
	for i, line := range t.Lines {
		out.Lines[i] = Line{LineID: line.LineID, Gross: money.Round(line.Gross), Tax: money.Round(line.Tax)}
	}
	out.Grand = out.Subtotal.Add(out.Tax)
	return out
}
