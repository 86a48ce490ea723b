package receipt

import (
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
)

const (
	thankYouFooter = "Thank you for shopping with us!"
	timestampFmt   = "02-01-2006 15:04"
)

var two = decimal.NewFromInt(2)

type row struct {
	Name  string
	Qty   string
	Rate  string
	Total string
}

type amountLine struct {
	Label  string
	Amount string
}

// view is the fully formatted data behind every variant. Templates only
// choose which blocks to show; every number is formatted here once.
type view struct {
	Variant domain.ReceiptTemplate

	StoreName     string
	Address       string
	ContactLine   string
	TaxIdentifier string
	LogoReference template.URL

	InvoiceNumber string
	Timestamp     string

	Rows      []row
	ItemCount int

	Subtotal  string
	TaxLines  []amountLine
	Deduction []amountLine
	Net       string
	Tender    []amountLine

	Footer string

	ShowLogo      bool
	ShowAddress   bool
	ShowContact   bool
	ShowTaxID     bool
	ShowInvoice   bool
	ShowItemCount bool
	ShowBreakdown bool
}

func styleFor(settings domain.StoreSettings) money.Style {
	style := money.DefaultStyle
	if symbol := strings.TrimSpace(settings.CurrencySymbol); symbol != "" {
		style.Symbol = symbol
	}
	if settings.Grouping == string(money.GroupingWestern) {
		style.Grouping = money.GroupingWestern
	}
	return style
}

func locationFor(settings domain.StoreSettings) *time.Location {
	name := strings.TrimSpace(settings.TimeZone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// logoURL accepts web and inline image references only. Anything else hides
// the logo block.
func logoURL(ref string) template.URL {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"https://", "http://", "data:image/"} {
		if strings.HasPrefix(lower, prefix) && len(ref) > len(prefix) {
			return template.URL(ref)
		}
	}
	return ""
}

func variantFor(settings domain.StoreSettings) domain.ReceiptTemplate {
	if settings.ReceiptTemplate.Valid() {
		return settings.ReceiptTemplate
	}
	return domain.TemplateCompact
}

func formatQty(q decimal.Decimal) string {
	if q.Equal(q.Truncate(0)) {
		return q.Truncate(0).String()
	}
	return q.Round(3).String()
}

func buildView(sale domain.FinalizedSale, settings domain.StoreSettings) view {
	style := styleFor(settings)
	format := func(d decimal.Decimal) string { return money.Format(d, style) }

	v := view{
		Variant:       variantFor(settings),
		StoreName:     strings.TrimSpace(settings.StoreName),
		Address:       strings.TrimSpace(settings.Address),
		ContactLine:   strings.TrimSpace(settings.ContactLine),
		TaxIdentifier: strings.TrimSpace(settings.TaxIdentifier),
		LogoReference: logoURL(settings.LogoReference),
		InvoiceNumber: sale.InvoiceNumber,
		Timestamp:     sale.CreatedAt.In(locationFor(settings)).Format(timestampFmt),
		Rows:          make([]row, 0, len(sale.Items)),
		ItemCount:     len(sale.Items),
		Subtotal:      format(sale.Subtotal),
		Net:           format(sale.Payable),
	}
	if v.InvoiceNumber == "" {
		v.InvoiceNumber = sale.ID
	}

	for _, item := range sale.Items {
		v.Rows = append(v.Rows, row{
			Name:  item.Name,
			Qty:   formatQty(item.Quantity),
			Rate:  format(item.UnitPrice),
			Total: format(item.Gross()),
		})
	}

	switch v.Variant {
	case domain.TemplateDetailed:
		v.ShowAddress = v.Address != ""
		v.ShowContact = v.ContactLine != ""
		v.ShowTaxID = v.TaxIdentifier != ""
		v.ShowInvoice = true
		v.ShowItemCount = true
		v.ShowBreakdown = true
		v.Footer = thankYouFooter

		// Total tax is shown as two identical regional halves regardless of
		// the per-line rates.
		half := format(sale.TaxTotal.Div(two))
		v.TaxLines = []amountLine{{Label: "CGST", Amount: half}, {Label: "SGST", Amount: half}}

		if sale.DiscountAmount.IsPositive() {
			v.Deduction = append(v.Deduction, amountLine{Label: "Discount", Amount: "-" + format(sale.DiscountAmount)})
		}
		if sale.LoyaltyRedeemed.IsPositive() {
			v.Deduction = append(v.Deduction, amountLine{Label: "Loyalty", Amount: "-" + format(sale.LoyaltyRedeemed)})
		}
		v.Tender = tenderLines(sale, format)
	case domain.TemplateBranded:
		v.ShowLogo = v.LogoReference != ""
		v.ShowAddress = v.Address != ""
		v.ShowItemCount = true
		v.Footer = strings.TrimSpace(settings.FooterNote)
	default:
		v.ShowContact = v.ContactLine != ""
		v.Footer = thankYouFooter
	}
	return v
}

func tenderLines(sale domain.FinalizedSale, format func(decimal.Decimal) string) []amountLine {
	lines := make([]amountLine, 0, 6)
	add := func(label string, d decimal.Decimal) {
		if d.IsPositive() {
			lines = append(lines, amountLine{Label: label, Amount: format(d)})
		}
	}
	add("Cash", sale.Payment.Cash)
	add("Card", sale.Payment.Card)
	add("UPI", sale.Payment.UPI)
	add("Other", sale.Payment.Other)
	add("Change", sale.ChangeDue)
	return lines
}
