package receipt

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Width is the character width of an 80mm roll in the printer's font A.
const Width = 48

func textLines(v view) []string {
	rule := strings.Repeat("-", Width)
	lines := make([]string, 0, 16+2*len(v.Rows))

	if v.ShowLogo {
		lines = append(lines, center("[logo]"))
	}
	lines = append(lines, center(v.StoreName))
	if v.ShowAddress {
		lines = append(lines, wrapCenter(v.Address)...)
	}
	if v.ShowContact {
		lines = append(lines, center(v.ContactLine))
	}
	if v.ShowTaxID {
		lines = append(lines, center("GSTIN: "+v.TaxIdentifier))
	}
	if v.ShowInvoice {
		lines = append(lines, rule, pair("Invoice", v.InvoiceNumber), pair("Date", v.Timestamp))
	}

	lines = append(lines, rule)
	for _, r := range v.Rows {
		lines = append(lines, truncate(r.Name, Width))
		lines = append(lines, pair("  "+r.Qty+" x "+r.Rate, r.Total))
	}
	lines = append(lines, rule)

	if v.ShowItemCount {
		lines = append(lines, pair("Items", strconv.Itoa(v.ItemCount)))
	}
	if v.ShowBreakdown {
		lines = append(lines, pair("Taxable amount", v.Subtotal))
		for _, t := range v.TaxLines {
			lines = append(lines, pair(t.Label, t.Amount))
		}
	}
	for _, d := range v.Deduction {
		lines = append(lines, pair(d.Label, d.Amount))
	}
	lines = append(lines, pair("Net amount", v.Net))
	for _, t := range v.Tender {
		lines = append(lines, pair(t.Label, t.Amount))
	}

	if v.Footer != "" {
		lines = append(lines, rule)
		lines = append(lines, wrapCenter(v.Footer)...)
	}
	return lines
}

func pair(label string, value string) string {
	value = truncate(value, Width-1)
	gap := Width - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	if gap < 1 {
		label = truncate(label, Width-utf8.RuneCountInString(value)-1)
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

func center(s string) string {
	s = truncate(s, Width)
	pad := (Width - utf8.RuneCountInString(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func wrapCenter(s string) []string {
	words := strings.Fields(s)
	var out []string
	current := ""
	for _, w := range words {
		if current == "" {
			current = w
			continue
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(w) > Width {
			out = append(out, center(current))
			current = w
			continue
		}
		current += " " + w
	}
	if current != "" {
		out = append(out, center(current))
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
