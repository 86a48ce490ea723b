package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store"
	"tokopos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	productOrder    []string
	salesByID       map[string]*domain.FinalizedSale
	salesByIdem     map[string]*domain.FinalizedSale
	invoiceSeq      int64
	settingsByStore map[string]domain.StoreSettings
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when
// unset, dev defaults are used and a warning is logged. The postgres store
// is used whenever DATABASE_URL is set.
func seedUsers(logger *zap.Logger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logger.Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mrp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// NewSeeded returns a store with a small demo catalog and two users.
func NewSeeded(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	products := []domain.Product{
		{ID: "prd-rice-5kg", SKU: "RICE-5KG", Name: "Basmati Rice 5kg", MRP: mrp("650"), Price: dec("599"), TaxRate: dec("5"), Stock: dec("40"), Unit: "pcs", Active: true},
		{ID: "prd-dal-1kg", SKU: "DAL-1KG", Name: "Toor Dal 1kg", MRP: mrp("180"), Price: dec("165"), TaxRate: dec("5"), Stock: dec("60"), Unit: "pcs", Active: true},
		{ID: "prd-sugar-loose", SKU: "SUGAR-LOOSE", Name: "Sugar (loose)", Price: dec("44.50"), TaxRate: dec("5"), Stock: dec("120.5"), Unit: "kg", Repack: true, Active: true},
		{ID: "prd-tea-250", SKU: "TEA-250", Name: "Assam Tea 250g", MRP: mrp("140"), Price: dec("132"), TaxRate: dec("5"), Stock: dec("35"), Unit: "pcs", Active: true},
		{ID: "prd-soap-4", SKU: "SOAP-4PK", Name: "Bath Soap 4 pack", MRP: mrp("220"), Price: dec("199"), TaxRate: dec("18"), Stock: dec("25"), Unit: "pcs", Active: true},
		{ID: "prd-biscuit", SKU: "BISC-200", Name: "Butter Biscuits 200g", MRP: mrp("40"), Price: dec("38"), TaxRate: dec("12"), Stock: dec("90"), Unit: "pcs", Active: true},
		{ID: "prd-oil-1l", SKU: "OIL-1L", Name: "Sunflower Oil 1L", MRP: mrp("165"), Price: dec("155"), TaxRate: dec("5"), Stock: dec("48"), Unit: "pcs", Active: true},
		{ID: "prd-milk-500", SKU: "MILK-500", Name: "Toned Milk 500ml", Price: dec("27"), TaxRate: dec("0"), Stock: dec("30"), Unit: "pcs", Active: true},
		{ID: "prd-onion", SKU: "ONION-LOOSE", Name: "Onion (loose)", Price: dec("32"), TaxRate: dec("0"), Stock: dec("75.25"), Unit: "kg", Repack: true, Active: true},
		{ID: "prd-incense", SKU: "INC-OLD", Name: "Incense Sticks (discontinued)", Price: dec("25"), TaxRate: dec("12"), Stock: dec("0"), Unit: "pcs", Active: false},
	}

	s := &Store{
		products:        make(map[string]domain.Product, len(products)),
		productOrder:    make([]string, 0, len(products)),
		salesByID:       make(map[string]*domain.FinalizedSale),
		salesByIdem:     make(map[string]*domain.FinalizedSale),
		settingsByStore: make(map[string]domain.StoreSettings),
		usersByUsername: seedUsers(logger),
		now:             time.Now,
	}
	for _, p := range products {
		s.products[p.ID] = p
		s.productOrder = append(s.productOrder, p.ID)
	}
	return s
}

// SearchProducts matches active products whose name or SKU contains query,
// case-insensitively, in catalog order.
func (s *Store) SearchProducts(_ context.Context, query string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0, min(limit, len(s.productOrder)))
	for _, id := range s.productOrder {
		if len(out) >= limit {
			break
		}
		p := s.products[id]
		if !p.Active {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.SKU), needle) {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(p)
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context, offset int, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.productOrder) || limit < 1 {
		return []domain.Product{}, nil
	}
	end := min(offset+limit, len(s.productOrder))
	out := make([]domain.Product, 0, end-offset)
	for _, id := range s.productOrder[offset:end] {
		out = append(out, cloneProduct(s.products[id]))
	}
	return out, nil
}

func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.FinalizedSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.IdempotencyKey == "" || len(draft.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if _, ok := s.salesByIdem[draft.IdempotencyKey]; ok {
		return nil, store.ErrDuplicate
	}

	s.invoiceSeq++
	sale := domain.NewFinalizedSale(xid.UUID(), fmt.Sprintf("INV-%06d", s.invoiceSeq), s.now(), draft)
	s.salesByID[sale.ID] = &sale
	s.salesByIdem[sale.IdempotencyKey] = &sale

	for _, item := range sale.Items {
		if p, ok := s.products[item.ProductID]; ok {
			p.Stock = p.Stock.Sub(item.Quantity)
			s.products[p.ID] = p
		}
	}

	out := sale.Clone()
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.FinalizedSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := sale.Clone()
	return &out, nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.FinalizedSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := sale.Clone()
	return &out, nil
}

func (s *Store) GetStoreSettings(_ context.Context, storeID string) (*domain.StoreSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settingsByStore[storeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &settings, nil
}

func (s *Store) UpsertStoreSettings(_ context.Context, settings domain.StoreSettings) (*domain.StoreSettings, error) {
	if settings.StoreID == "" {
		return nil, store.ErrInvalidTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = s.now().UTC()
	}
	s.settingsByStore[settings.StoreID] = settings
	return &settings, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) UpsertUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.usersByUsername[user.Username]; ok {
		user.CreatedAt = existing.CreatedAt
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

// Sales returns stored sales for storeID, newest first.
func (s *Store) Sales(storeID string) []domain.FinalizedSale {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FinalizedSale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if storeID == "" || sale.StoreID == storeID {
			out = append(out, sale.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.FinalizedSale) int {
		return strings.Compare(b.InvoiceNumber, a.InvoiceNumber)
	})
	return out
}

func cloneProduct(p domain.Product) domain.Product {
	out := p
	if p.MRP != nil {
		m := *p.MRP
		out.MRP = &m
	}
	return out
}
