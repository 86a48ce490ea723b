// Package checkout runs checkout sessions: cart edits, discount and payment
// entry, finalization against the sale collaborator and receipt delivery.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokopos/backend/internal/cart"
	"tokopos/backend/internal/catalog"
	"tokopos/backend/internal/discount"
	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
	"tokopos/backend/internal/printer"
	"tokopos/backend/internal/receipt"
	"tokopos/backend/internal/store"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCustomerRequired = errors.New("customer reference is required to redeem loyalty")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrProductInactive  = errors.New("product is not available for sale")
	ErrSaleNotSaved     = errors.New("sale could not be saved")
	ErrKeyConflict      = errors.New("idempotency key belongs to a different sale")
)

// SettingsSource supplies store settings for rendering. It never fails.
type SettingsSource interface {
	Get(ctx context.Context, storeID string) domain.StoreSettings
}

type Deps struct {
	Catalog        store.Catalog
	Sales          store.Sales
	Settings       SettingsSource
	Renderer       *receipt.Renderer
	Printer        *printer.Dispatcher
	Logger         *zap.Logger
	DefaultStoreID string
	Lookup         catalog.Options
	SessionIdle    time.Duration
}

type Service struct {
	catalog        store.Catalog
	sales          store.Sales
	settings       SettingsSource
	renderer       *receipt.Renderer
	printer        *printer.Dispatcher
	logger         *zap.Logger
	defaultStoreID string
	lookup         catalog.Options
	sessions       *Registry
	now            func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Renderer == nil {
		deps.Renderer = receipt.NewRenderer()
	}
	if deps.Printer == nil {
		deps.Printer = printer.NewDispatcher(nil, deps.Logger)
	}
	if deps.DefaultStoreID == "" {
		deps.DefaultStoreID = "main-store"
	}
	if deps.Lookup.Logger == nil {
		deps.Lookup.Logger = deps.Logger
	}

	return &Service{
		catalog:        deps.Catalog,
		sales:          deps.Sales,
		settings:       deps.Settings,
		renderer:       deps.Renderer,
		printer:        deps.Printer,
		logger:         deps.Logger,
		defaultStoreID: deps.DefaultStoreID,
		lookup:         deps.Lookup,
		sessions:       NewRegistry(deps.SessionIdle),
		now:            time.Now,
	}
}

// OpenSession starts a checkout with an empty cart.
func (s *Service) OpenSession(storeID string) Quote {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	session := newSession(storeID, s.now(), catalog.NewSearcher(s.catalog, s.lookup))
	s.sessions.add(session)

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.quote()
}

// CancelSession clears the cart, aborts any pending lookup and closes the
// session.
func (s *Service) CancelSession(sessionID string) error {
	session, ok := s.sessions.remove(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	session.searcher.Cancel()

	session.mu.Lock()
	defer session.mu.Unlock()
	session.reset()
	return nil
}

func (s *Service) Quote(sessionID string) (Quote, error) {
	return s.withSession(sessionID, func(session *Session) error { return nil })
}

// AddItemRequest adds a catalog product by ProductID, or an ad-hoc row when
// ProductID is empty. UnitPrice overrides the catalog price when set.
type AddItemRequest struct {
	ProductID string           `json:"product_id,omitempty"`
	Name      string           `json:"name,omitempty"`
	SKU       string           `json:"sku,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	TaxRate   *decimal.Decimal `json:"tax_rate,omitempty"`
	MRP       *decimal.Decimal `json:"mrp,omitempty"`
}

func (s *Service) AddItem(ctx context.Context, sessionID string, req AddItemRequest) (Quote, string, error) {
	item, err := s.lineItemFor(ctx, req)
	if err != nil {
		return Quote{}, "", err
	}

	var lineID string
	q, err := s.withSession(sessionID, func(session *Session) error {
		id, err := session.cart.AddOrIncrement(item)
		lineID = id
		return err
	})
	return q, lineID, err
}

func (s *Service) UpdateItem(sessionID string, lineID string, patch cart.Patch) (Quote, error) {
	return s.withSession(sessionID, func(session *Session) error {
		return session.cart.Update(lineID, patch)
	})
}

func (s *Service) RemoveItem(sessionID string, lineID string) (Quote, error) {
	return s.withSession(sessionID, func(session *Session) error {
		return session.cart.Remove(lineID)
	})
}

// DiscountRequest edits the discount. Nil fields keep their current value,
// so switching Mode alone never loses the other field.
type DiscountRequest struct {
	Mode     domain.DiscountMode `json:"mode,omitempty"`
	Percent  *decimal.Decimal    `json:"percent,omitempty"`
	Absolute *decimal.Decimal    `json:"absolute,omitempty"`
	Loyalty  *decimal.Decimal    `json:"loyalty,omitempty"`
}

func (s *Service) SetDiscount(sessionID string, req DiscountRequest) (Quote, error) {
	return s.withSession(sessionID, func(session *Session) error {
		spec := session.discount
		if req.Mode != "" {
			spec = discount.SwitchMode(spec, req.Mode)
		}
		if req.Percent != nil && spec.Mode == domain.DiscountPercentage {
			spec.Percent = *req.Percent
		}
		if req.Absolute != nil && spec.Mode == domain.DiscountAbsolute {
			spec.Absolute = *req.Absolute
		}
		session.discount = discount.Normalize(spec)
		if req.Loyalty != nil {
			session.loyalty = money.Sanitize(*req.Loyalty)
		}
		return nil
	})
}

type PaymentRequest struct {
	Payment           domain.PaymentBreakdown `json:"payment"`
	CustomerReference *string                 `json:"customer_reference,omitempty"`
}

func (s *Service) SetPayment(sessionID string, req PaymentRequest) (Quote, error) {
	return s.withSession(sessionID, func(session *Session) error {
		session.payment = req.Payment
		if req.CustomerReference != nil {
			session.customer = strings.TrimSpace(*req.CustomerReference)
		}
		return nil
	})
}

// Search runs a debounced lookup for the session. Only the latest lookup of
// a session returns products; older ones fail with catalog.ErrSuperseded.
func (s *Service) Search(ctx context.Context, sessionID string, query string) (catalog.Result, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return catalog.Result{}, ErrSessionNotFound
	}
	return session.searcher.Search(ctx, query)
}

func (s *Service) withSession(sessionID string, fn func(*Session) error) (Quote, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Quote{}, ErrSessionNotFound
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := fn(session); err != nil {
		return Quote{}, err
	}
	return session.quote(), nil
}

func (s *Service) lineItemFor(ctx context.Context, req AddItemRequest) (domain.LineItem, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		if req.UnitPrice == nil {
			return domain.LineItem{}, cart.ErrInvalidPrice
		}
		item := domain.LineItem{
			SKU:       strings.TrimSpace(req.SKU),
			Name:      req.Name,
			Quantity:  req.Quantity,
			UnitPrice: *req.UnitPrice,
			MRP:       req.MRP,
		}
		if req.TaxRate != nil {
			item.TaxRate = *req.TaxRate
		}
		return item, nil
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.LineItem{}, err
	}
	if !product.Active {
		return domain.LineItem{}, ErrProductInactive
	}

	item := domain.LineItem{
		ProductID: product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
		TaxRate:   product.TaxRate,
		MRP:       product.MRP,
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	return item, nil
}
