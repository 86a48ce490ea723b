// Package export writes catalog pages as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tokopos/backend/internal/domain"
)

// Header is the column order shared by every export format.
var Header = []string{"ID", "SKU", "Name", "MRP", "Price", "Tax %", "Stock", "Unit", "Repack"}

const sheetName = "Products"

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Filename() string {
	return "products." + string(f)
}

// Write encodes products in format f.
func Write(w io.Writer, f Format, products []domain.Product) error {
	if f == FormatXLSX {
		return ProductsXLSX(w, products)
	}
	return ProductsCSV(w, products)
}

// ProductsCSV writes one header row and one row per product.
func ProductsCSV(w io.Writer, products []domain.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, p := range products {
		if err := cw.Write(row(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ProductsXLSX writes a single-sheet workbook. Numeric columns are stored as
// numbers so spreadsheets can sum them.
func ProductsXLSX(w io.Writer, products []domain.Product) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			p.ID,
			p.SKU,
			p.Name,
			mrpCell(p.MRP),
			p.Price.InexactFloat64(),
			p.TaxRate.InexactFloat64(),
			p.Stock.InexactFloat64(),
			p.Unit,
			repackFlag(p.Repack),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func row(p domain.Product) []string {
	mrp := ""
	if p.MRP != nil {
		mrp = p.MRP.String()
	}
	return []string{
		p.ID,
		p.SKU,
		p.Name,
		mrp,
		p.Price.String(),
		p.TaxRate.String(),
		p.Stock.String(),
		p.Unit,
		repackFlag(p.Repack),
	}
}

func mrpCell(mrp *decimal.Decimal) any {
	if mrp == nil {
		return ""
	}
	return mrp.InexactFloat64()
}

func repackFlag(repack bool) string {
	if repack {
		return "Yes"
	}
	return "No"
}
