// Package receipt renders finalized sales into print-ready documents sized
// for an 80mm thermal roll. Rendering is a pure function of the sale and the
// store settings passed in.
package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	// Time zone names in store settings must resolve the same way on every
	// host, including minimal containers without a zoneinfo database.
	_ "time/tzdata"

	"tokopos/backend/internal/domain"
)

// Document is a rendered receipt. It is never persisted.
type Document struct {
	Variant domain.ReceiptTemplate `json:"variant"`
	SaleID  string                 `json:"sale_id"`
	HTML    string                 `json:"html"`
	Lines   []string               `json:"lines"`
}

// Text joins the plain-text rendition with newlines.
func (d Document) Text() string {
	return strings.Join(d.Lines, "\n") + "\n"
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: receiptHTMLTmpl}
}

// Render builds the document for sale using the variant selected in
// settings. Unknown variants render as compact.
func (r *Renderer) Render(sale domain.FinalizedSale, settings domain.StoreSettings) (Document, error) {
	v := buildView(sale, settings)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return Document{}, fmt.Errorf("render receipt %s: %w", sale.ID, err)
	}

	return Document{
		Variant: v.Variant,
		SaleID:  sale.ID,
		HTML:    buf.String(),
		Lines:   textLines(v),
	}, nil
}

var receiptHTMLTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Receipt {{.InvoiceNumber}}</title>
  <style>
    @page { size: 80mm auto; margin: 3mm }
    body { font-family: "Courier New", monospace; font-size: 12px; color: #000; background: #fff; margin: 0; width: 74mm; }
    .center { text-align: center; }
    .right { text-align: right; }
    .logo { max-width: 40mm; max-height: 20mm; }
    h1 { font-size: 15px; margin: 0 0 2px; }
    p { margin: 0; }
    hr { border: 0; border-top: 1px dashed #000; margin: 4px 0; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 1px 0; vertical-align: top; }
    .net td { font-weight: bold; font-size: 14px; }
  </style>
</head>
<body class="receipt receipt-{{.Variant}}">
  <div class="center header">
    {{- if .ShowLogo}}
    <img class="logo" src="{{.LogoReference}}" alt="{{.StoreName}}" />
    {{- end}}
    <h1>{{.StoreName}}</h1>
    {{- if .ShowAddress}}
    <p class="address">{{.Address}}</p>
    {{- end}}
    {{- if .ShowContact}}
    <p class="contact">{{.ContactLine}}</p>
    {{- end}}
    {{- if .ShowTaxID}}
    <p class="tax-id">GSTIN: {{.TaxIdentifier}}</p>
    {{- end}}
  </div>
  {{- if .ShowInvoice}}
  <hr />
  <table class="invoice">
    <tr><td>Invoice</td><td class="right">{{.InvoiceNumber}}</td></tr>
    <tr><td>Date</td><td class="right">{{.Timestamp}}</td></tr>
  </table>
  {{- end}}
  <hr />
  <table class="items">
    {{- range .Rows}}
    <tr><td colspan="2">{{.Name}}</td></tr>
    <tr><td>{{.Qty}} x {{.Rate}}</td><td class="right">{{.Total}}</td></tr>
    {{- end}}
  </table>
  <hr />
  <table class="totals">
    {{- if .ShowItemCount}}
    <tr><td>Items</td><td class="right">{{.ItemCount}}</td></tr>
    {{- end}}
    {{- if .ShowBreakdown}}
    <tr><td>Taxable amount</td><td class="right">{{.Subtotal}}</td></tr>
    {{- range .TaxLines}}
    <tr class="tax"><td>{{.Label}}</td><td class="right">{{.Amount}}</td></tr>
    {{- end}}
    {{- end}}
    {{- range .Deduction}}
    <tr><td>{{.Label}}</td><td class="right">{{.Amount}}</td></tr>
    {{- end}}
    <tr class="net"><td>Net amount</td><td class="right">{{.Net}}</td></tr>
    {{- range .Tender}}
    <tr><td>{{.Label}}</td><td class="right">{{.Amount}}</td></tr>
    {{- end}}
  </table>
  {{- if .Footer}}
  <hr />
  <p class="center footer">{{.Footer}}</p>
  {{- end}}
</body>
</html>
`))
