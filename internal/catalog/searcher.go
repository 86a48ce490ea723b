// Package catalog runs product lookups for a checkout session. Each lookup
// supersedes the one before it; a superseded lookup never returns results.
package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tokopos/backend/internal/domain"
)

// ErrSuperseded is returned by a lookup that a newer lookup replaced.
var ErrSuperseded = errors.New("lookup superseded by a newer request")

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Lookup is the product lookup collaborator.
type Lookup interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)
}

// Result is the last committed lookup.
type Result struct {
	Token    uint64           `json:"token"`
	Query    string           `json:"query"`
	Products []domain.Product `json:"products"`
}

type Options struct {
	Debounce time.Duration
	Limit    int
	Logger   *zap.Logger
}

type Searcher struct {
	lookup   Lookup
	debounce time.Duration
	limit    int
	logger   *zap.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	latest Result
}

func NewSearcher(lookup Lookup, opts Options) *Searcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	return &Searcher{lookup: lookup, debounce: opts.Debounce, limit: opts.Limit, logger: opts.Logger}
}

// Search cancels any pending lookup, waits out the debounce delay and queries
// the collaborator. Collaborator failures yield an empty result, not an error.
// Only the most recent request commits; older ones get ErrSuperseded.
func (s *Searcher) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	token, ctx, release := s.begin(ctx)
	defer release()

	if query == "" {
		return s.commit(token, query, nil)
	}

	if s.debounce > 0 {
		timer := time.NewTimer(s.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, s.abandoned(ctx, token)
		case <-timer.C:
		}
	}

	products, err := s.lookup.SearchProducts(ctx, query, s.limit)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, s.abandoned(ctx, token)
		}
		s.logger.Warn("product lookup failed", zap.String("query", query), zap.Error(err))
		products = nil
	}
	if len(products) > s.limit {
		products = products[:s.limit]
	}
	return s.commit(token, query, products)
}

// Latest returns the last committed lookup.
func (s *Searcher) Latest() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.latest
	out.Products = append([]domain.Product{}, s.latest.Products...)
	return out
}

// Cancel aborts the pending lookup, if any.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) begin(parent context.Context) (uint64, context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	token := s.seq
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	return token, ctx, func() {
		s.mu.Lock()
		if s.seq == token {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}
}

func (s *Searcher) commit(token uint64, query string, products []domain.Product) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq {
		return Result{}, ErrSuperseded
	}
	if products == nil {
		products = []domain.Product{}
	}
	s.latest = Result{Token: token, Query: query, Products: products}
	return Result{Token: token, Query: query, Products: append([]domain.Product{}, products...)}, nil
}

func (s *Searcher) abandoned(ctx context.Context, token uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq {
		return ErrSuperseded
	}
	return ctx.Err()
}
