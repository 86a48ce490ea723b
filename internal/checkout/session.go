package checkout

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tokopos/backend/internal/cart"
	"tokopos/backend/internal/catalog"
	"tokopos/backend/internal/discount"
	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
	"tokopos/backend/internal/payment"
	"tokopos/backend/internal/pricing"
	"tokopos/backend/internal/xid"
)

// Session owns one cart and the checkout state around it. Every method that
// touches the cart holds mu, so calculations never race with mutations.
type Session struct {
	ID        string
	StoreID   string
	CreatedAt time.Time

	mu             sync.Mutex
	cart           *cart.Cart
	discount       domain.DiscountSpec
	loyalty        decimal.Decimal
	payment        domain.PaymentBreakdown
	customer       string
	idempotencyKey string
	finalized      []finalizedKey
	searcher       *catalog.Searcher
}

type finalizedKey struct {
	key    string
	saleID string
}

// maxFinalizedKeys bounds how many of its own sales a session can replay.
const maxFinalizedKeys = 8

func newSession(storeID string, createdAt time.Time, searcher *catalog.Searcher) *Session {
	s := &Session{
		ID:        xid.New("chk"),
		StoreID:   storeID,
		CreatedAt: createdAt.UTC(),
		cart:      cart.New(),
		searcher:  searcher,
	}
	s.reset()
	return s
}

// reset returns the session to an empty cart with a fresh idempotency key.
// Caller holds mu.
func (s *Session) reset() {
	s.cart.Clear()
	s.discount = domain.DiscountSpec{Mode: domain.DiscountPercentage}
	s.loyalty = decimal.Zero
	s.payment = domain.PaymentBreakdown{}
	s.customer = ""
	s.idempotencyKey = xid.New("idem")
}

// remember records a sale this session stored. Caller holds mu.
func (s *Session) remember(key string, saleID string) {
	s.finalized = append(s.finalized, finalizedKey{key: key, saleID: saleID})
	if n := len(s.finalized); n > maxFinalizedKeys {
		s.finalized = append([]finalizedKey(nil), s.finalized[n-maxFinalizedKeys:]...)
	}
}

// finalizedSale returns the sale this session stored under key. Caller holds mu.
func (s *Session) finalizedSale(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for i := len(s.finalized) - 1; i >= 0; i-- {
		if s.finalized[i].key == key {
			return s.finalized[i].saleID, true
		}
	}
	return "", false
}

// Quote is the priced view of a session. Amounts are committed to currency
// places; the session itself keeps full precision.
type Quote struct {
	SessionID         string                  `json:"session_id"`
	StoreID           string                  `json:"store_id"`
	Items             []domain.LineItem       `json:"items"`
	Lines             []pricing.Line          `json:"lines"`
	Subtotal          decimal.Decimal         `json:"subtotal"`
	Tax               decimal.Decimal         `json:"tax"`
	GrandTotal        decimal.Decimal         `json:"grand_total"`
	Discount          domain.DiscountSpec     `json:"discount"`
	DiscountAmount    decimal.Decimal         `json:"discount_amount"`
	LoyaltyRedeemed   decimal.Decimal         `json:"loyalty_redeemed"`
	Payable           decimal.Decimal         `json:"payable"`
	Payment           domain.PaymentBreakdown `json:"payment"`
	PaymentMethod     string                  `json:"payment_method"`
	TotalTendered     decimal.Decimal         `json:"total_tendered"`
	BalanceDue        decimal.Decimal         `json:"balance_due"`
	ChangeDue         decimal.Decimal         `json:"change_due"`
	CustomerReference string                  `json:"customer_reference,omitempty"`
	CanFinalize       bool                    `json:"can_finalize"`
}

// quote prices the current state. Caller holds mu.
func (s *Session) quote() Quote {
	items := s.cart.Items()
	totals := pricing.Calculate(items)
	applied := discount.Apply(totals.Grand, s.discount, s.loyalty)
	s.discount = applied.Spec

	rec := payment.Reconcile(applied.Payable, s.payment)
	rounded := totals.Rounded()
	breakdown := payment.Sanitize(s.payment)

	return Quote{
		SessionID:         s.ID,
		StoreID:           s.StoreID,
		Items:             items,
		Lines:             rounded.Lines,
		Subtotal:          rounded.Subtotal,
		Tax:               rounded.Tax,
		GrandTotal:        rounded.Grand,
		Discount:          applied.Spec,
		DiscountAmount:    money.Round(applied.Amount),
		LoyaltyRedeemed:   money.Round(applied.Loyalty),
		Payable:           rec.Payable,
		Payment:           breakdown,
		PaymentMethod:     payment.Method(breakdown),
		TotalTendered:     rec.TotalTendered,
		BalanceDue:        rec.BalanceDue,
		ChangeDue:         rec.ChangeDue,
		CustomerReference: s.customer,
		CanFinalize:       len(items) > 0 && rec.Validate() == nil && (!applied.Loyalty.IsPositive() || s.customer != ""),
	}
}

// Registry holds the open sessions of this process. Sessions untouched for
// longer than idle are dropped when a new session opens.
type Registry struct {
	mu       sync.Mutex
	idle     time.Duration
	sessions map[string]*registryEntry
	now      func() time.Time
}

type registryEntry struct {
	session *Session
	seen    time.Time
}

// DefaultSessionIdle is used when no idle timeout is configured.
const DefaultSessionIdle = 12 * time.Hour

func NewRegistry(idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Registry{idle: idle, sessions: make(map[string]*registryEntry), now: time.Now}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	now := r.now()
	var evicted []*Session
	for id, e := range r.sessions {
		if now.Sub(e.seen) > r.idle {
			evicted = append(evicted, e.session)
			delete(r.sessions, id)
		}
	}
	r.sessions[s.ID] = &registryEntry{session: s, seen: now}
	r.mu.Unlock()

	for _, old := range evicted {
		old.searcher.Cancel()
	}
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.seen = r.now()
	return e.session, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return e.session, true
}
