package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store"
	"tokopos/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables and sequences. It is safe to run on
// every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const productColumns = `id, sku, name, mrp, price, tax_rate, stock, unit, repack, active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var mrp decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &mrp, &p.Price, &p.TaxRate, &p.Stock, &p.Unit, &p.Repack, &p.Active); err != nil {
		return domain.Product{}, err
	}
	p.MRP = decimalPtr(mrp)
	return p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true AND (lower(name) LIKE $1 OR lower(sku) LIKE $1)
		ORDER BY name ASC
		LIMIT $2
	`, pattern, limit)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, offset int, limit int) ([]domain.Product, error) {
	if offset < 0 {
		offset = 0
	}
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY sku ASC
		OFFSET $1 LIMIT $2
	`, offset, limit)
}

func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.FinalizedSale, error) {
	if draft.IdempotencyKey == "" || len(draft.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	id := xid.UUID()
	var invoice string
	var createdAt time.Time
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, store_id, idempotency_key, payment_method,
			cash, card, upi, other, payment_remarks, customer_reference,
			discount_mode, discount_percent, discount_absolute, discount_amount, loyalty_redeemed,
			subtotal, tax_total, grand_total, payable, total_tendered, change_due, created_at
		)
		VALUES (
			$1, 'INV-' || lpad(nextval('invoice_seq')::text, 6, '0'), $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, now()
		)
		RETURNING invoice_number, created_at
	`,
		id, draft.StoreID, draft.IdempotencyKey, draft.PaymentMethod,
		draft.Payment.Cash, draft.Payment.Card, draft.Payment.UPI, draft.Payment.Other, draft.Payment.Remarks, draft.CustomerReference,
		string(draft.Discount.Mode), draft.Discount.Percent, draft.Discount.Absolute, draft.DiscountAmount, draft.LoyaltyRedeemed,
		draft.Subtotal, draft.TaxTotal, draft.GrandTotal, draft.Payable, draft.TotalTendered, draft.ChangeDue,
	).Scan(&invoice, &createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	for i, item := range draft.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, position, line_id, product_id, sku, name, quantity, unit_price, tax_rate, mrp)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, id, i, item.LineID, item.ProductID, item.SKU, item.Name, item.Quantity, item.UnitPrice, item.TaxRate, nullDecimal(item.MRP)); err != nil {
			return nil, err
		}
		if item.ProductID == "" {
			continue
		}
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	sale := domain.NewFinalizedSale(id, invoice, createdAt, draft)
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.FinalizedSale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.FinalizedSale, error) {
	return s.findSale(ctx, "idempotency_key", key)
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.FinalizedSale, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var sale domain.FinalizedSale
	var mode string
	query := fmt.Sprintf(`
		SELECT id, invoice_number, store_id, idempotency_key, payment_method,
			cash, card, upi, other, payment_remarks, customer_reference,
			discount_mode, discount_percent, discount_absolute, discount_amount, loyalty_redeemed,
			subtotal, tax_total, grand_total, payable, total_tendered, change_due, created_at
		FROM sales
		WHERE %s = $1
	`, column)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&sale.ID,
		&sale.InvoiceNumber,
		&sale.StoreID,
		&sale.IdempotencyKey,
		&sale.PaymentMethod,
		&sale.Payment.Cash,
		&sale.Payment.Card,
		&sale.Payment.UPI,
		&sale.Payment.Other,
		&sale.Payment.Remarks,
		&sale.CustomerReference,
		&mode,
		&sale.Discount.Percent,
		&sale.Discount.Absolute,
		&sale.DiscountAmount,
		&sale.LoyaltyRedeemed,
		&sale.Subtotal,
		&sale.TaxTotal,
		&sale.GrandTotal,
		&sale.Payable,
		&sale.TotalTendered,
		&sale.ChangeDue,
		&sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.Discount.Mode = domain.DiscountMode(mode)
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT line_id, product_id, sku, name, quantity, unit_price, tax_rate, mrp
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY position ASC
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var item domain.LineItem
		var mrp decimal.NullDecimal
		if err := rows.Scan(&item.LineID, &item.ProductID, &item.SKU, &item.Name, &item.Quantity, &item.UnitPrice, &item.TaxRate, &mrp); err != nil {
			return nil, err
		}
		item.MRP = decimalPtr(mrp)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

func (s *Store) GetStoreSettings(ctx context.Context, storeID string) (*domain.StoreSettings, error) {
	var st domain.StoreSettings
	var template string
	err := s.db.QueryRowContext(ctx, `
		SELECT store_id, receipt_template, store_name, address, contact_line, tax_identifier,
			logo_reference, footer_note, currency_symbol, digit_grouping, time_zone, updated_at
		FROM store_settings
		WHERE store_id = $1
	`, storeID).Scan(
		&st.StoreID, &template, &st.StoreName, &st.Address, &st.ContactLine, &st.TaxIdentifier,
		&st.LogoReference, &st.FooterNote, &st.CurrencySymbol, &st.Grouping, &st.TimeZone, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	st.ReceiptTemplate = domain.ReceiptTemplate(template)
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *Store) UpsertStoreSettings(ctx context.Context, st domain.StoreSettings) (*domain.StoreSettings, error) {
	if st.StoreID == "" {
		return nil, store.ErrInvalidTransaction
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_settings (
			store_id, receipt_template, store_name, address, contact_line, tax_identifier,
			logo_reference, footer_note, currency_symbol, digit_grouping, time_zone, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (store_id) DO UPDATE SET
			receipt_template = EXCLUDED.receipt_template,
			store_name = EXCLUDED.store_name,
			address = EXCLUDED.address,
			contact_line = EXCLUDED.contact_line,
			tax_identifier = EXCLUDED.tax_identifier,
			logo_reference = EXCLUDED.logo_reference,
			footer_note = EXCLUDED.footer_note,
			currency_symbol = EXCLUDED.currency_symbol,
			digit_grouping = EXCLUDED.digit_grouping,
			time_zone = EXCLUDED.time_zone,
			updated_at = EXCLUDED.updated_at
	`, st.StoreID, string(st.ReceiptTemplate), st.StoreName, st.Address, st.ContactLine, st.TaxIdentifier,
		st.LogoReference, st.FooterNote, st.CurrencySymbol, st.Grouping, st.TimeZone, st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (username) DO UPDATE SET
			password = EXCLUDED.password,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			updated_at = now()
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
