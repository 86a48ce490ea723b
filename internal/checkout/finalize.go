package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/payment"
	"tokopos/backend/internal/printer"
	"tokopos/backend/internal/receipt"
	"tokopos/backend/internal/store"
)

// FinalizeResult is returned once the sale is stored. Receipt and Print are
// best effort: a rendering or printing problem only sets Warning.
type FinalizeResult struct {
	Sale      domain.FinalizedSale `json:"sale"`
	Duplicate bool                 `json:"duplicate"`
	Receipt   *receipt.Document    `json:"receipt,omitempty"`
	Print     printer.Outcome      `json:"print"`
	Warning   string               `json:"warning,omitempty"`
}

// Finalize validates the session, stores the sale and prints its receipt.
// Validation failures and persistence failures leave the cart untouched.
// Once issued, the persistence call is not cancelled by ctx.
func (s *Service) Finalize(ctx context.Context, sessionID string, idempotencyKey string) (FinalizeResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return FinalizeResult{}, ErrSessionNotFound
	}

	session.mu.Lock()
	sale, duplicate, err := s.persist(ctx, session, strings.TrimSpace(idempotencyKey))
	session.mu.Unlock()
	if err != nil {
		return FinalizeResult{}, err
	}

	s.logger.Info("sale finalized",
		zap.String("sale_id", sale.ID),
		zap.String("invoice", sale.InvoiceNumber),
		zap.String("store_id", sale.StoreID),
		zap.String("payable", sale.Payable.StringFixed(2)),
		zap.String("payment_method", sale.PaymentMethod),
		zap.Bool("duplicate", duplicate),
	)

	result := FinalizeResult{Sale: sale, Duplicate: duplicate}
	doc, outcome, warning := s.present(context.WithoutCancel(ctx), sale)
	result.Receipt = doc
	result.Print = outcome
	result.Warning = warning
	return result, nil
}

// persist runs with the session locked.
func (s *Service) persist(ctx context.Context, session *Session, key string) (domain.FinalizedSale, bool, error) {
	persistCtx := context.WithoutCancel(ctx)

	// A retried request whose first attempt already stored the sale finds
	// the cart cleared; answer it with the sale this session stored.
	if saleID, ok := session.finalizedSale(key); ok {
		existing, err := s.sales.GetSale(persistCtx, saleID)
		if err != nil {
			return domain.FinalizedSale{}, false, fmt.Errorf("%w: %w", ErrSaleNotSaved, err)
		}
		return existing.Clone(), true, nil
	}

	if session.cart.IsEmpty() {
		return domain.FinalizedSale{}, false, ErrEmptyCart
	}
	q := session.quote()
	if q.LoyaltyRedeemed.IsPositive() && session.customer == "" {
		return domain.FinalizedSale{}, false, ErrCustomerRequired
	}
	rec := payment.Reconcile(q.Payable, q.Payment)
	if err := rec.Validate(); err != nil {
		return domain.FinalizedSale{}, false, err
	}

	if key == "" {
		key = session.idempotencyKey
	}
	draft := domain.SaleDraft{
		StoreID:           session.StoreID,
		IdempotencyKey:    key,
		Items:             q.Items,
		PaymentMethod:     q.PaymentMethod,
		Payment:           q.Payment,
		CustomerReference: session.customer,
		Discount:          q.Discount,
		DiscountAmount:    q.DiscountAmount,
		LoyaltyRedeemed:   q.LoyaltyRedeemed,
		Subtotal:          q.Subtotal,
		TaxTotal:          q.Tax,
		GrandTotal:        q.GrandTotal,
		Payable:           rec.Payable,
		TotalTendered:     rec.TotalTendered,
		ChangeDue:         rec.ChangeDue,
	}

	sale, duplicate, err := s.createOrReplay(persistCtx, draft)
	if errors.Is(err, ErrKeyConflict) {
		s.logger.Warn("idempotency key reused for a different sale",
			zap.String("session_id", session.ID),
			zap.String("idempotency_key", key),
		)
		return domain.FinalizedSale{}, false, err
	}
	if err != nil {
		s.logger.Error("sale persistence failed",
			zap.String("session_id", session.ID),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return domain.FinalizedSale{}, false, fmt.Errorf("%w: %w", ErrSaleNotSaved, err)
	}

	session.remember(key, sale.ID)
	session.reset()
	return sale.Clone(), duplicate, nil
}

// createOrReplay creates the sale, or returns the one already stored under
// the draft's idempotency key when it records the same sale. A stored sale
// that differs fails with ErrKeyConflict.
func (s *Service) createOrReplay(ctx context.Context, draft domain.SaleDraft) (*domain.FinalizedSale, bool, error) {
	existing, err := s.sales.FindSaleByIdempotency(ctx, draft.IdempotencyKey)
	if err == nil {
		return replayOf(existing, draft)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	created, err := s.sales.CreateSale(ctx, draft)
	if errors.Is(err, store.ErrDuplicate) {
		existing, err := s.sales.FindSaleByIdempotency(ctx, draft.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return replayOf(existing, draft)
	}
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

func replayOf(existing *domain.FinalizedSale, draft domain.SaleDraft) (*domain.FinalizedSale, bool, error) {
	if !sameSale(existing, draft) {
		return nil, false, ErrKeyConflict
	}
	return existing, true, nil
}

// sameSale reports whether a stored sale records the draft: same store, same
// rows and the same money.
func sameSale(sale *domain.FinalizedSale, draft domain.SaleDraft) bool {
	if sale.StoreID != draft.StoreID || len(sale.Items) != len(draft.Items) {
		return false
	}
	if !sale.Payable.Equal(draft.Payable) || !sale.TotalTendered.Equal(draft.TotalTendered) {
		return false
	}
	for i := range sale.Items {
		if sale.Items[i].ProductID != draft.Items[i].ProductID || !sale.Items[i].Quantity.Equal(draft.Items[i].Quantity) {
			return false
		}
	}
	return true
}

// Receipt renders a stored sale with the store's current settings.
func (s *Service) Receipt(ctx context.Context, saleID string) (receipt.Document, error) {
	sale, err := s.sales.GetSale(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return receipt.Document{}, err
	}
	return s.renderer.Render(sale.Clone(), s.settingsFor(ctx, sale.StoreID))
}

// ReprintResult is the outcome of printing a stored sale again.
type ReprintResult struct {
	Receipt receipt.Document `json:"receipt"`
	Print   printer.Outcome  `json:"print"`
}

// Reprint renders a stored sale with current settings and dispatches it.
func (s *Service) Reprint(ctx context.Context, saleID string) (ReprintResult, error) {
	doc, err := s.Receipt(ctx, saleID)
	if err != nil {
		return ReprintResult{}, err
	}
	return ReprintResult{Receipt: doc, Print: s.printer.Dispatch(ctx, doc)}, nil
}

// present renders then dispatches. Nothing here can fail the sale.
func (s *Service) present(ctx context.Context, sale domain.FinalizedSale) (*receipt.Document, printer.Outcome, string) {
	doc, err := s.renderer.Render(sale, s.settingsFor(ctx, sale.StoreID))
	if err != nil {
		s.logger.Warn("receipt render failed", zap.String("sale_id", sale.ID), zap.Error(err))
		outcome := printer.Outcome{Surface: s.printer.SurfaceName(), Warning: "receipt could not be rendered"}
		return nil, outcome, outcome.Warning
	}

	outcome := s.printer.Dispatch(ctx, doc)
	return &doc, outcome, outcome.Warning
}

func (s *Service) settingsFor(ctx context.Context, storeID string) domain.StoreSettings {
	if s.settings == nil {
		return domain.DefaultStoreSettings(storeID)
	}
	return s.settings.Get(ctx, storeID)
}
