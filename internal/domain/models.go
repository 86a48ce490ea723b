package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID      string           `json:"id"`
	SKU     string           `json:"sku"`
	Name    string           `json:"name"`
	MRP     *decimal.Decimal `json:"mrp,omitempty"`
	Price   decimal.Decimal  `json:"price"`
	TaxRate decimal.Decimal  `json:"tax_rate"`
	Stock   decimal.Decimal  `json:"stock"`
	Unit    string           `json:"unit"`
	Repack  bool             `json:"repack"`
	Active  bool             `json:"active"`
}

// LineItem is one billed row. ProductID is empty for ad-hoc entries.
type LineItem struct {
	LineID    string           `json:"line_id"`
	ProductID string           `json:"product_id,omitempty"`
	SKU       string           `json:"sku,omitempty"`
	Name      string           `json:"name"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	TaxRate   decimal.Decimal  `json:"tax_rate"`
	MRP       *decimal.Decimal `json:"mrp,omitempty"`
}

// Gross is quantity × unit price at full precision.
func (l LineItem) Gross() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Clone returns a copy that shares no pointers with l.
func (l LineItem) Clone() LineItem {
	out := l
	if l.MRP != nil {
		mrp := *l.MRP
		out.MRP = &mrp
	}
	return out
}

func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

type DiscountMode string

const (
	DiscountPercentage DiscountMode = "percentage"
	DiscountAbsolute   DiscountMode = "absolute"
)

// DiscountSpec holds both representations of a discount. Only the field
// matching Mode is authoritative; the other is a derived display value.
type DiscountSpec struct {
	Mode     DiscountMode    `json:"mode"`
	Percent  decimal.Decimal `json:"percent"`
	Absolute decimal.Decimal `json:"absolute"`
}

const (
	PaymentCash  = "cash"
	PaymentCard  = "card"
	PaymentUPI   = "upi"
	PaymentOther = "other"
	PaymentSplit = "split"
)

type PaymentBreakdown struct {
	Cash    decimal.Decimal `json:"cash"`
	Card    decimal.Decimal `json:"card"`
	UPI     decimal.Decimal `json:"upi"`
	Other   decimal.Decimal `json:"other"`
	Remarks string          `json:"remarks,omitempty"`
}

// SaleDraft is the snapshot submitted to the persistence collaborator. The
// collaborator assigns ID, InvoiceNumber and CreatedAt.
type SaleDraft struct {
	StoreID           string           `json:"store_id"`
	IdempotencyKey    string           `json:"idempotency_key"`
	Items             []LineItem       `json:"items"`
	PaymentMethod     string           `json:"payment_method"`
	Payment           PaymentBreakdown `json:"payment"`
	CustomerReference string           `json:"customer_reference,omitempty"`
	Discount          DiscountSpec     `json:"discount"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	LoyaltyRedeemed   decimal.Decimal  `json:"loyalty_redeemed"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	TaxTotal          decimal.Decimal  `json:"tax_total"`
	GrandTotal        decimal.Decimal  `json:"grand_total"`
	Payable           decimal.Decimal  `json:"payable"`
	TotalTendered     decimal.Decimal  `json:"total_tendered"`
	ChangeDue         decimal.Decimal  `json:"change_due"`
}

// FinalizedSale is the immutable record returned by the persistence
// collaborator. It is the only input the receipt renderer accepts for a
// completed transaction.
type FinalizedSale struct {
	ID                string           `json:"id"`
	InvoiceNumber     string           `json:"invoice_number"`
	StoreID           string           `json:"store_id"`
	IdempotencyKey    string           `json:"idempotency_key"`
	CreatedAt         time.Time        `json:"created_at"`
	Items             []LineItem       `json:"items"`
	PaymentMethod     string           `json:"payment_method"`
	Payment           PaymentBreakdown `json:"payment"`
	CustomerReference string           `json:"customer_reference,omitempty"`
	Discount          DiscountSpec     `json:"discount"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	LoyaltyRedeemed   decimal.Decimal  `json:"loyalty_redeemed"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	TaxTotal          decimal.Decimal  `json:"tax_total"`
	GrandTotal        decimal.Decimal  `json:"grand_total"`
	Payable           decimal.Decimal  `json:"payable"`
	TotalTendered     decimal.Decimal  `json:"total_tendered"`
	ChangeDue         decimal.Decimal  `json:"change_due"`
}

// NewFinalizedSale copies a draft into a stored sale record.
func NewFinalizedSale(id string, invoiceNumber string, createdAt time.Time, draft SaleDraft) FinalizedSale {
	return FinalizedSale{
		ID:                id,
		InvoiceNumber:     invoiceNumber,
		StoreID:           draft.StoreID,
		IdempotencyKey:    draft.IdempotencyKey,
		CreatedAt:         createdAt.UTC(),
		Items:             CloneItems(draft.Items),
		PaymentMethod:     draft.PaymentMethod,
		Payment:           draft.Payment,
		CustomerReference: draft.CustomerReference,
		Discount:          draft.Discount,
		DiscountAmount:    draft.DiscountAmount,
		LoyaltyRedeemed:   draft.LoyaltyRedeemed,
		Subtotal:          draft.Subtotal,
		TaxTotal:          draft.TaxTotal,
		GrandTotal:        draft.GrandTotal,
		Payable:           draft.Payable,
		TotalTendered:     draft.TotalTendered,
		ChangeDue:         draft.ChangeDue,
	}
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (s FinalizedSale) Clone() FinalizedSale {
	out := s
	out.Items = CloneItems(s.Items)
	return out
}

type ReceiptTemplate string

const (
	TemplateCompact  ReceiptTemplate = "compact"
	TemplateBranded  ReceiptTemplate = "branded"
	TemplateDetailed ReceiptTemplate = "detailed"
)

func (t ReceiptTemplate) Valid() bool {
	switch t {
	case TemplateCompact, TemplateBranded, TemplateDetailed:
		return true
	default:
		return false
	}
}

type StoreSettings struct {
	StoreID         string          `json:"store_id"`
	ReceiptTemplate ReceiptTemplate `json:"receipt_template"`
	StoreName       string          `json:"store_name"`
	Address         string          `json:"address"`
	ContactLine     string          `json:"contact_line"`
	TaxIdentifier   string          `json:"tax_identifier"`
	LogoReference   string          `json:"logo_reference,omitempty"`
	FooterNote      string          `json:"footer_note,omitempty"`
	CurrencySymbol  string          `json:"currency_symbol"`
	Grouping        string          `json:"grouping"`
	TimeZone        string          `json:"time_zone"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DefaultStoreSettings is used when the settings collaborator has no record
// for a store.
func DefaultStoreSettings(storeID string) StoreSettings {
	return StoreSettings{
		StoreID:         storeID,
		ReceiptTemplate: TemplateCompact,
		StoreName:       "Toko POS",
		CurrencySymbol:  "₹",
		Grouping:        "indian",
		TimeZone:        "UTC",
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
