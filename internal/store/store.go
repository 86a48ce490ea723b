package store

import (
	"context"
	"errors"

	"tokopos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrDuplicate          = errors.New("duplicate record")
)

// Catalog is the product lookup collaborator.
type Catalog interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, offset int, limit int) ([]domain.Product, error)
}

// Sales persists finalized sales. CreateSale assigns the identifier, the
// invoice number and the timestamp. It returns ErrDuplicate when the draft's
// idempotency key is already stored.
type Sales interface {
	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.FinalizedSale, error)
	GetSale(ctx context.Context, id string) (*domain.FinalizedSale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.FinalizedSale, error)
}

type Settings interface {
	GetStoreSettings(ctx context.Context, storeID string) (*domain.StoreSettings, error)
	UpsertStoreSettings(ctx context.Context, settings domain.StoreSettings) (*domain.StoreSettings, error)
}

type Users interface {
	FindUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	UpsertUser(ctx context.Context, user domain.UserAccount) error
}

type Repository interface {
	Catalog
	Sales
	Settings
	Users
}
