// Package cart is the in-memory, ordered collection of line items for one
// checkout session. It holds no totals; callers derive them from Items.
package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
	"tokopos/backend/internal/xid"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
	ErrLineNotFound    = errors.New("line not found")
	ErrMissingName     = errors.New("item name is required")
)

var maxTaxRate = decimal.NewFromInt(100)

// QuantityPlaces is the precision of a weighed quantity.
const QuantityPlaces = 3

// Patch carries the user-editable fields of a row. Nil fields are left as is.
type Patch struct {
	Quantity  *decimal.Decimal
	UnitPrice *decimal.Decimal
}

type Cart struct {
	items []domain.LineItem
	newID func() string
}

func New() *Cart {
	return &Cart{newID: func() string { return xid.New("line") }}
}

// AddOrIncrement appends item, or increments the quantity of the row that
// already carries the same product. A zero quantity means one unit;
// quantities are kept to QuantityPlaces.
// It returns the line id of the affected row.
func (c *Cart) AddOrIncrement(item domain.LineItem) (string, error) {
	if item.Quantity.IsZero() {
		item.Quantity = decimal.NewFromInt(1)
	}
	item.Quantity = item.Quantity.Round(QuantityPlaces)
	if !item.Quantity.IsPositive() {
		return "", ErrInvalidQuantity
	}
	if item.UnitPrice.IsNegative() {
		return "", ErrInvalidPrice
	}

	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID != "" {
		for i := range c.items {
			if c.items[i].ProductID == item.ProductID {
				c.items[i].Quantity = c.items[i].Quantity.Add(item.Quantity)
				return c.items[i].LineID, nil
			}
		}
	}

	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return "", ErrMissingName
	}
	item.TaxRate = money.Clamp(item.TaxRate, decimal.Zero, maxTaxRate)
	item.LineID = c.lineIDFor(item)

	c.items = append(c.items, item.Clone())
	return item.LineID, nil
}

// Update replaces quantity and/or unit price on the matching row. On any
// validation failure the row is left unchanged.
func (c *Cart) Update(lineID string, patch Patch) error {
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	var qty decimal.Decimal
	if patch.Quantity != nil {
		qty = patch.Quantity.Round(QuantityPlaces)
		if !qty.IsPositive() {
			return ErrInvalidQuantity
		}
	}
	if patch.UnitPrice != nil && patch.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}

	if patch.Quantity != nil {
		c.items[idx].Quantity = qty
	}
	if patch.UnitPrice != nil {
		c.items[idx].UnitPrice = *patch.UnitPrice
	}
	return nil
}

func (c *Cart) Remove(lineID string) error {
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the rows in insertion order.
func (c *Cart) Items() []domain.LineItem {
	return domain.CloneItems(c.items)
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) lineIDFor(item domain.LineItem) string {
	if id := strings.TrimSpace(item.LineID); id != "" && c.indexOf(id) < 0 {
		return id
	}
	if item.ProductID != "" && c.indexOf(item.ProductID) < 0 {
		return item.ProductID
	}
	if c.newID == nil {
		return xid.New("line")
	}
	return c.newID()
}

func (c *Cart) indexOf(lineID string) int {
	for i := range c.items {
		if c.items[i].LineID == lineID {
			return i
		}
	}
	return -1
}
