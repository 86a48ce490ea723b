package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokopos/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReconcileExactSplitTender(t *testing.T) {
	rec := Reconcile(dec("180.00"), domain.PaymentBreakdown{Cash: dec("100"), Card: dec("80")})

	assert.Equal(t, "180.00", rec.TotalTendered.StringFixed(2))
	assert.True(t, rec.BalanceDue.IsZero())
	assert.True(t, rec.ChangeDue.IsZero())
	assert.NoError(t, rec.Validate())
}

func TestReconcileShortTenderIsRejected(t *testing.T) {
	rec := Reconcile(dec("180.00"), domain.PaymentBreakdown{Cash: dec("50")})

	assert.Equal(t, "130.00", rec.BalanceDue.StringFixed(2))
	assert.True(t, rec.ChangeDue.IsZero())

	err := rec.Validate()
	require.Error(t, err)
	var short *InsufficientTenderError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, "130.00", short.Shortfall.StringFixed(2))
	assert.Contains(t, err.Error(), "short by 130.00")
}

func TestReconcileOverTenderReturnsChange(t *testing.T) {
	rec := Reconcile(dec("180"), domain.PaymentBreakdown{Cash: dec("200"), UPI: dec("0")})

	assert.True(t, rec.ChangeDue.Equal(dec("20")))
	assert.True(t, rec.BalanceDue.IsZero())
	assert.NoError(t, rec.Validate())
}

func TestReconcileNeverReportsBalanceAndChange(t *testing.T) {
	payables := []string{"0", "0.01", "99.995", "180", "1234.56"}
	tenders := []domain.PaymentBreakdown{
		{},
		{Cash: dec("0.01")},
		{Cash: dec("100"), Card: dec("80")},
		{UPI: dec("1234.56")},
		{Cash: dec("-500"), Other: dec("50")},
		{Card: dec("2000"), Other: dec("0.005")},
	}

	for _, p := range payables {
		for _, tender := range tenders {
			rec := Reconcile(dec(p), tender)
			assert.False(t, rec.BalanceDue.IsPositive() && rec.ChangeDue.IsPositive(), "payable %s tender %+v", p, tender)
			if dec(p).IsPositive() && rec.TotalTendered.LessThan(rec.Payable) {
				assert.Error(t, rec.Validate())
			}
		}
	}
}

func TestReconcileCoercesNegativeTender(t *testing.T) {
	rec := Reconcile(dec("10"), domain.PaymentBreakdown{Cash: dec("-20"), Card: dec("10")})

	assert.True(t, rec.TotalTendered.Equal(dec("10")))
	assert.NoError(t, rec.Validate())
}

func TestMethod(t *testing.T) {
	cases := []struct {
		in   domain.PaymentBreakdown
		want string
	}{
		{domain.PaymentBreakdown{}, domain.PaymentCash},
		{domain.PaymentBreakdown{Card: dec("10")}, domain.PaymentCard},
		{domain.PaymentBreakdown{UPI: dec("10"), Cash: dec("-1")}, domain.PaymentUPI},
		{domain.PaymentBreakdown{Other: dec("3")}, domain.PaymentOther},
		{domain.PaymentBreakdown{Cash: dec("100"), Card: dec("80")}, domain.PaymentSplit},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Method(tc.in))
	}
}
