// Package payment reconciles tendered amounts against a payable amount and
// gates sale completion.
package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
)

// InsufficientTenderError blocks finalization and carries the shortfall
// shown to the cashier.
type InsufficientTenderError struct {
	Payable   decimal.Decimal
	Tendered  decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientTenderError) Error() string {
	return fmt.Sprintf("insufficient tender: payable %s, tendered %s, short by %s",
		money.Plain(e.Payable), money.Plain(e.Tendered), money.Plain(e.Shortfall))
}

type Reconciliation struct {
	Payable       decimal.Decimal `json:"payable"`
	TotalTendered decimal.Decimal `json:"total_tendered"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	ChangeDue     decimal.Decimal `json:"change_due"`
}

// Sanitize coerces every tender to a non-negative amount and trims remarks.
func Sanitize(b domain.PaymentBreakdown) domain.PaymentBreakdown {
	return domain.PaymentBreakdown{
		Cash:    money.Sanitize(b.Cash),
		Card:    money.Sanitize(b.Card),
		UPI:     money.Sanitize(b.UPI),
		Other:   money.Sanitize(b.Other),
		Remarks: strings.TrimSpace(b.Remarks),
	}
}

// Total sums all tenders after coercion.
func Total(b domain.PaymentBreakdown) decimal.Decimal {
	b = Sanitize(b)
	return b.Cash.Add(b.Card).Add(b.UPI).Add(b.Other)
}

// Reconcile compares tender against payable. The comparison uses payable
// committed to currency places, since that is the amount the customer sees.
func Reconcile(payable decimal.Decimal, b domain.PaymentBreakdown) Reconciliation {
	payable = money.Round(money.Sanitize(payable))
	tendered := Total(b)

	return Reconciliation{
		Payable:       payable,
		TotalTendered: tendered,
		BalanceDue:    money.Max(decimal.Zero, payable.Sub(tendered)),
		ChangeDue:     money.Max(decimal.Zero, tendered.Sub(payable)),
	}
}

// Validate returns *InsufficientTenderError when tender falls short.
func (r Reconciliation) Validate() error {
	if r.TotalTendered.LessThan(r.Payable) {
		return &InsufficientTenderError{
			Payable:   r.Payable,
			Tendered:  r.TotalTendered,
			Shortfall: r.BalanceDue,
		}
	}
	return nil
}

// Method names the tender used: the single method with a positive amount,
// "split" when several are, and cash when nothing was tendered.
func Method(b domain.PaymentBreakdown) string {
	b = Sanitize(b)
	used := make([]string, 0, 4)
	if b.Cash.IsPositive() {
		used = append(used, domain.PaymentCash)
	}
	if b.Card.IsPositive() {
		used = append(used, domain.PaymentCard)
	}
	if b.UPI.IsPositive() {
		used = append(used, domain.PaymentUPI)
	}
	if b.Other.IsPositive() {
		used = append(used, domain.PaymentOther)
	}

	switch len(used) {
	case 0:
		return domain.PaymentCash
	case 1:
		return used[0]
	default:
		return domain.PaymentSplit
	}
}
