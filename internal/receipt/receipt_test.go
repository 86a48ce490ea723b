package receipt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokopos/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleSale() domain.FinalizedSale {
	return domain.FinalizedSale{
		ID:            "5b8a2f7e-0c0e-4c51-9f6e-2b8e9f0d1a11",
		InvoiceNumber: "INV-000042",
		StoreID:       "store-1",
		CreatedAt:     time.Date(2026, 1, 2, 6, 30, 0, 0, time.UTC),
		Items: []domain.LineItem{
			{LineID: "P-1", ProductID: "P-1", Name: "Basmati Rice 5kg", Quantity: dec("2"), UnitPrice: dec("650"), TaxRate: dec("5")},
			{LineID: "line-1", Name: "Loose Tomato", Quantity: dec("1.25"), UnitPrice: dec("40"), TaxRate: dec("0")},
		},
		PaymentMethod:  domain.PaymentSplit,
		Payment:        domain.PaymentBreakdown{Cash: dec("1000"), UPI: dec("400")},
		Discount:       domain.DiscountSpec{Mode: domain.DiscountPercentage, Percent: dec("10"), Absolute: dec("141.5")},
		DiscountAmount: dec("141.50"),
		Subtotal:       dec("1350.00"),
		TaxTotal:       dec("65.00"),
		GrandTotal:     dec("1415.00"),
		Payable:        dec("1273.50"),
		TotalTendered:  dec("1400.00"),
		ChangeDue:      dec("126.50"),
	}
}

func sampleSettings(tmpl domain.ReceiptTemplate) domain.StoreSettings {
	s := domain.DefaultStoreSettings("store-1")
	s.ReceiptTemplate = tmpl
	s.StoreName = "Toko Sejahtera"
	s.Address = "12 MG Road, Bengaluru 560001"
	s.ContactLine = "+91 80 4000 1234"
	s.TaxIdentifier = "29ABCDE1234F1Z5"
	s.LogoReference = "https://cdn.example.com/logo.png"
	s.FooterNote = "Exchange within 7 days with bill"
	s.TimeZone = "Asia/Kolkata"
	return s
}

func itemsBlock(t *testing.T, html string) string {
	t.Helper()
	start := strings.Index(html, `<table class="items">`)
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(html[start:], "</table>")
	require.GreaterOrEqual(t, end, 0)
	return html[start : start+end]
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer()
	for _, tmpl := range []domain.ReceiptTemplate{domain.TemplateCompact, domain.TemplateBranded, domain.TemplateDetailed} {
		first, err := r.Render(sampleSale(), sampleSettings(tmpl))
		require.NoError(t, err)
		second, err := r.Render(sampleSale(), sampleSettings(tmpl))
		require.NoError(t, err)

		assert.Equal(t, first.HTML, second.HTML)
		assert.Equal(t, first.Lines, second.Lines)
		assert.Equal(t, tmpl, first.Variant)
	}
}

func TestCompactAndDetailedShareItemRows(t *testing.T) {
	r := NewRenderer()
	compact, err := r.Render(sampleSale(), sampleSettings(domain.TemplateCompact))
	require.NoError(t, err)
	detailed, err := r.Render(sampleSale(), sampleSettings(domain.TemplateDetailed))
	require.NoError(t, err)

	assert.Equal(t, itemsBlock(t, compact.HTML), itemsBlock(t, detailed.HTML))
	assert.Contains(t, compact.HTML, "2 x ₹650.00")
	assert.Contains(t, compact.HTML, "₹1,300.00")
	assert.Contains(t, compact.HTML, "1.25 x ₹40.00")

	assert.NotContains(t, compact.HTML, "CGST")
	assert.NotContains(t, compact.HTML, "12 MG Road")
	assert.Contains(t, compact.HTML, `<p class="contact">`)
	assert.Contains(t, compact.Text(), "+91 80 4000 1234")
	assert.Contains(t, compact.HTML, thankYouFooter)

	assert.Contains(t, detailed.HTML, "12 MG Road")
	assert.Contains(t, detailed.HTML, "29ABCDE1234F1Z5")
	assert.Contains(t, detailed.HTML, "INV-000042")
	assert.Contains(t, detailed.HTML, "02-01-2026 12:00")
	assert.Contains(t, detailed.HTML, "Taxable amount")
}

func TestDetailedSplitsTaxIntoEqualHalves(t *testing.T) {
	doc, err := NewRenderer().Render(sampleSale(), sampleSettings(domain.TemplateDetailed))
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, `<tr class="tax"><td>CGST</td><td class="right">₹32.50</td></tr>`)
	assert.Contains(t, doc.HTML, `<tr class="tax"><td>SGST</td><td class="right">₹32.50</td></tr>`)
	assert.Contains(t, doc.HTML, "-₹141.50")
	assert.Contains(t, doc.HTML, "₹1,273.50")
	assert.Contains(t, doc.Text(), pair("Change", "₹126.50"))
}

func TestBrandedShowsLogoAndFooterNote(t *testing.T) {
	doc, err := NewRenderer().Render(sampleSale(), sampleSettings(domain.TemplateBranded))
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, `src="https://cdn.example.com/logo.png"`)
	assert.Contains(t, doc.HTML, "Exchange within 7 days with bill")
	assert.Contains(t, doc.Text(), pair("Items", "2"))
	assert.NotContains(t, doc.HTML, "CGST")
	assert.NotContains(t, doc.HTML, thankYouFooter)

	settings := sampleSettings(domain.TemplateBranded)
	settings.LogoReference = ""
	doc, err = NewRenderer().Render(sampleSale(), settings)
	require.NoError(t, err)
	assert.NotContains(t, doc.HTML, "<img")
}

func TestBrandedLogoAcceptsInlineImagesOnly(t *testing.T) {
	settings := sampleSettings(domain.TemplateBranded)
	settings.LogoReference = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

	doc, err := NewRenderer().Render(sampleSale(), settings)
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, `src="`+settings.LogoReference+`"`)
	assert.NotContains(t, doc.HTML, "ZgotmplZ")
	assert.Contains(t, doc.Text(), "[logo]")

	for _, ref := range []string{"javascript:alert(1)", "data:text/html,<b>x</b>", "logo.png"} {
		settings.LogoReference = ref
		doc, err = NewRenderer().Render(sampleSale(), settings)
		require.NoError(t, err)
		assert.NotContains(t, doc.HTML, "<img", ref)
		assert.NotContains(t, doc.Text(), "[logo]", ref)
	}
}

func TestRenderEscapesStoreFields(t *testing.T) {
	settings := sampleSettings(domain.TemplateDetailed)
	settings.StoreName = `<script>alert("x")</script>`
	sale := sampleSale()
	sale.Items[0].Name = "Rice & <Dal>"

	doc, err := NewRenderer().Render(sale, settings)
	require.NoError(t, err)
	assert.NotContains(t, doc.HTML, "<script>")
	assert.Contains(t, doc.HTML, "Rice &amp; &lt;Dal&gt;")
}

func TestRenderUsesPageDirective(t *testing.T) {
	doc, err := NewRenderer().Render(sampleSale(), sampleSettings(domain.TemplateCompact))
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, "@page { size: 80mm auto; margin: 3mm }")
	assert.Equal(t, "5b8a2f7e-0c0e-4c51-9f6e-2b8e9f0d1a11", doc.SaleID)
}

func TestRenderFallsBackForUnknownVariantAndZone(t *testing.T) {
	settings := sampleSettings("fancy")
	settings.TimeZone = "Mars/Olympus"
	settings.Grouping = "western"
	settings.CurrencySymbol = "Rp"

	doc, err := NewRenderer().Render(sampleSale(), settings)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateCompact, doc.Variant)
	assert.Contains(t, doc.HTML, "Rp1,300.00")

	settings.ReceiptTemplate = domain.TemplateDetailed
	doc, err = NewRenderer().Render(sampleSale(), settings)
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, "02-01-2026 06:30")
}

func TestTextLinesFitRollWidth(t *testing.T) {
	sale := sampleSale()
	sale.Items[0].Name = strings.Repeat("Extra Long Product Name ", 5)
	settings := sampleSettings(domain.TemplateDetailed)
	settings.Address = strings.Repeat("Long Address Segment ", 6)

	doc, err := NewRenderer().Render(sale, settings)
	require.NoError(t, err)
	for _, line := range doc.Lines {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), Width, "line %q", line)
	}
}

func TestPairKeepsOverlongValuesOnTheRoll(t *testing.T) {
	line := pair("Invoice", strings.Repeat("9", Width+12))
	assert.Equal(t, Width, utf8.RuneCountInString(line))
	assert.True(t, strings.HasPrefix(line, " 9"))

	sale := sampleSale()
	sale.InvoiceNumber = "INV-" + strings.Repeat("0", Width)
	doc, err := NewRenderer().Render(sale, sampleSettings(domain.TemplateDetailed))
	require.NoError(t, err)
	for _, line := range doc.Lines {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), Width, "line %q", line)
	}
}
