package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokopos/backend/internal/cart"
	"tokopos/backend/internal/catalog"
	"tokopos/backend/internal/checkout"
	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/export"
	"tokopos/backend/internal/payment"
	"tokopos/backend/internal/printer"
	"tokopos/backend/internal/settings"
	"tokopos/backend/internal/store"
)

// SettingsService reads and updates store settings.
type SettingsService interface {
	Get(ctx context.Context, storeID string) domain.StoreSettings
	Update(ctx context.Context, next domain.StoreSettings) (domain.StoreSettings, error)
}

type Options struct {
	Checkout           *checkout.Service
	Catalog            store.Catalog
	Settings           SettingsService
	Auth               *AuthManager
	Logger             *zap.Logger
	AllowedOrigin      string
	DefaultStoreID     string
	LoginRatePerMinute int
}

type API struct {
	checkout       *checkout.Service
	catalog        store.Catalog
	settings       SettingsService
	auth           *AuthManager
	logger         *zap.Logger
	allowedOrigin  string
	defaultStoreID string
	loginLimiter   *attemptLimiter
}

func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultStoreID == "" {
		opts.DefaultStoreID = "main-store"
	}
	if opts.LoginRatePerMinute < 1 {
		opts.LoginRatePerMinute = 5
	}
	return &API{
		checkout:       opts.Checkout,
		catalog:        opts.Catalog,
		settings:       opts.Settings,
		auth:           opts.Auth,
		logger:         opts.Logger,
		allowedOrigin:  opts.AllowedOrigin,
		defaultStoreID: opts.DefaultStoreID,
		loginLimiter:   newAttemptLimiter(opts.LoginRatePerMinute, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/products/search", a.requireAuth(a.handleProductSearch, "cashier", "admin"))
	mux.HandleFunc("/api/v1/products/export", a.requireAuth(a.handleProductExport, "cashier", "admin"))

	mux.HandleFunc("/api/v1/checkout/sessions", a.requireAuth(a.handleSessions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout/sessions/{id}", a.requireAuth(a.handleSession, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout/sessions/{id}/items", a.requireAuth(a.handleSessionItems, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout/sessions/{id}/items/{line}", a.requireAuth(a.handleSessionItem, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout/sessions/{id}/discount", a.requireAuth(a.handleDiscount, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout/sessions/{id}/payment", a.requireAuth(a.handlePayment, "cashier", "admin"))
	mux.HandleFunc("/api/v1/checkout/sessions/{id}/finalize", a.requireAuth(a.handleFinalize, "cashier", "admin"))

	mux.HandleFunc("/api/v1/sales/{id}/receipt", a.requireAuth(a.handleReceipt, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sales/{id}/print", a.requireAuth(a.handleReprint, "cashier", "admin"))

	mux.HandleFunc("/api/v1/settings", a.requireAuth(a.handleSettings, "cashier", "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleProductSearch runs a session-scoped lookup when session is given, so
// that a newer keystroke supersedes an older one, and a plain catalog query
// otherwise.
func (a *API) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query().Get("q")
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID != "" {
		result, err := a.checkout.Search(r.Context(), sessionID, query)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), catalog.DefaultLimit, catalog.MaxLimit)
	products, err := a.catalog.SearchProducts(r.Context(), strings.TrimSpace(query), limit)
	if err != nil {
		a.logger.Warn("product lookup failed", zap.String("query", query), zap.Error(err))
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, catalog.Result{Query: strings.TrimSpace(query), Products: products})
}

// maxExportPage keeps the page offset far from integer overflow.
const maxExportPage = 100000

func (a *API) handleProductExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	page := parsePositiveLimit(r.URL.Query().Get("page"), 1, maxExportPage)
	size := parsePositiveLimit(r.URL.Query().Get("size"), 50, 500)

	products, err := a.catalog.ListProducts(r.Context(), (page-1)*size, size)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	if err := export.Write(w, format, products); err != nil {
		a.logger.Error("product export failed", zap.String("format", string(format)), zap.Error(err))
	}
}

type openSessionRequest struct {
	StoreID string `json:"store_id"`
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}

	var req openSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusCreated, a.checkout.OpenSession(req.StoreID))
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		quote, err := a.checkout.Quote(sessionID)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	case http.MethodDelete:
		if err := a.checkout.CancelSession(sessionID); err != nil {
			a.writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.writeMethodNotAllowed(w)
	}
}

type addItemResponse struct {
	LineID string         `json:"line_id"`
	Quote  checkout.Quote `json:"quote"`
}

func (a *API) handleSessionItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}

	var req checkout.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	quote, lineID, err := a.checkout.AddItem(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addItemResponse{LineID: lineID, Quote: quote})
}

type itemPatchRequest struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

func (a *API) handleSessionItem(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	lineID := r.PathValue("line")

	var (
		quote checkout.Quote
		err   error
	)
	switch r.Method {
	case http.MethodPatch:
		var req itemPatchRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		quote, err = a.checkout.UpdateItem(sessionID, lineID, cart.Patch{Quantity: req.Quantity, UnitPrice: req.UnitPrice})
	case http.MethodDelete:
		quote, err = a.checkout.RemoveItem(sessionID, lineID)
	default:
		a.writeMethodNotAllowed(w)
		return
	}
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w)
		return
	}

	var req checkout.DiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	quote, err := a.checkout.SetDiscount(r.PathValue("id"), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handlePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w)
		return
	}

	var req checkout.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	quote, err := a.checkout.SetPayment(r.PathValue("id"), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type finalizeRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// handleFinalize accepts the idempotency key in the body or in the
// Idempotency-Key header. A replayed key answers 200 with the stored sale.
func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}

	var req finalizeRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	result, err := a.checkout.Finalize(r.Context(), r.PathValue("id"), key)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	if actor, ok := actorFrom(r.Context()); ok {
		a.logger.Info("sale recorded", zap.String("sale_id", result.Sale.ID), zap.String("cashier", actor.Username))
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

type escposResponse struct {
	SaleID   string `json:"sale_id"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	doc, err := a.checkout.Receipt(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, doc.HTML)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, doc.Text())
	case "escpos":
		writeJSON(w, http.StatusOK, escposResponse{
			SaleID:   doc.SaleID,
			Encoding: "base64",
			Data:     base64.StdEncoding.EncodeToString(printer.EncodeESCPOS(doc)),
		})
	case "json":
		writeJSON(w, http.StatusOK, doc)
	default:
		a.writeError(w, http.StatusBadRequest, errors.New("format must be html, text, escpos or json"))
	}
}

func (a *API) handleReprint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}

	result, err := a.checkout.Reprint(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	storeID := strings.TrimSpace(r.URL.Query().Get("store_id"))
	if storeID == "" {
		storeID = a.defaultStoreID
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.settings.Get(r.Context(), storeID))
	case http.MethodPut:
		if actor, _ := actorFrom(r.Context()); actor.Role != "admin" {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		var req domain.StoreSettings
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.StoreID) == "" {
			req.StoreID = storeID
		}
		saved, err := a.settings.Update(r.Context(), req)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		a.writeMethodNotAllowed(w)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var short *payment.InsufficientTenderError
	switch {
	case errors.As(err, &short):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrSuperseded),
		errors.Is(err, checkout.ErrKeyConflict):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrSaleNotSaved):
		return http.StatusBadGateway
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrCustomerRequired),
		errors.Is(err, checkout.ErrProductInactive),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, cart.ErrMissingName),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, store.ErrInvalidTransaction):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned.
const statusClientClosedRequest = 499

func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var short *payment.InsufficientTenderError
	if errors.As(err, &short) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     err.Error(),
			"payable":   short.Payable.StringFixed(2),
			"tendered":  short.Tendered.StringFixed(2),
			"shortfall": short.Shortfall.StringFixed(2),
		})
		return
	}
	status := statusFor(err)
	if status == http.StatusBadGateway {
		// The cart is kept; the client may retry with the same key.
		a.logger.Error("sale persistence failed", zap.Error(err))
		writeJSON(w, status, map[string]any{"error": checkout.ErrSaleNotSaved.Error(), "retryable": true})
		return
	}
	a.writeError(w, status, err)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(startedAt)),
		)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies carry a generic message; the detail goes to the log only.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
