package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/orderbot/internal/core/domain"
	"github.com/rl1809/orderbot/internal/core/match"
	"github.com/rl1809/orderbot/internal/port"
)

type CatalogService struct {
	products      port.ProductRepository
	cache         port.CacheRepository
	logger        zerolog.Logger
	maxResults    int
	minSimilarity float64
	loads         singleflight.Group
}

type CatalogOption func(*CatalogService)

// WithCatalogCache serves ListActive through cache. Cache errors fall back to the repository.
func WithCatalogCache(cache port.CacheRepository) CatalogOption {
	return func(s *CatalogService) { s.cache = cache }
}

func WithSearchLimits(maxResults int, minSimilarity float64) CatalogOption {
	return func(s *CatalogService) {
		s.maxResults = maxResults
		s.minSimilarity = minSimilarity
	}
}

func WithCatalogLogger(logger zerolog.Logger) CatalogOption {
	return func(s *CatalogService) { s.logger = logger }
}

func NewCatalogService(products port.ProductRepository, opts ...CatalogOption) *CatalogService {
	s := &CatalogService{
		products:      products,
		logger:        zerolog.Nop(),
		maxResults:    match.DefaultMaxResults,
		minSimilarity: match.DefaultMinSimilarity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LookupByCode finds a product by exact code, active or not.
func (s *CatalogService) LookupByCode(ctx context.Context, code string) (*domain.Product, error) {
	p, err := s.products.GetProductByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup product %q: %w", code, err)
	}
	return p, nil
}

func (s *CatalogService) ListActive(ctx context.Context) ([]domain.Product, error) {
	if s.cache == nil {
		return s.loadActive(ctx)
	}

	if products, ok, err := s.cache.GetActiveProducts(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache read failed")
	} else if ok {
		return products, nil
	}

	// the load is shared by every waiter, so one caller's cancellation must not fail the rest
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.loads.Do("active", func() (any, error) {
		products, err := s.loadActive(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetActiveProducts(loadCtx, products); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache write failed")
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *CatalogService) loadActive(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return products, nil
}

// Search returns active products whose names best match query, best first.
// Every product carrying a matched name is returned. An empty result means no match.
func (s *CatalogService) Search(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]domain.Product, len(products))
	names := make([]string, 0, len(products))
	for _, p := range products {
		if _, seen := byName[p.Name]; !seen {
			names = append(names, p.Name)
		}
		byName[p.Name] = append(byName[p.Name], p)
	}

	var found []domain.Product
	for _, name := range match.ClosestMatches(query, names, s.maxResults, s.minSimilarity) {
		found = append(found, byName[name]...)
	}
	return found, nil
}

func (s *CatalogService) UpsertProduct(ctx context.Context, p domain.Product) error {
	p.Code = strings.TrimSpace(p.Code)
	if p.Code == "" || strings.ContainsAny(p.Code, " \t\r\n") {
		return fmt.Errorf("%w: code must be a single non-empty token", domain.ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidProduct)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidProduct)
	}

	if err := s.products.UpsertProduct(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.Code, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateActiveProducts(ctx); err != nil {
			s.logger.Warn().Err(err).Str("code", p.Code).Msg("catalog cache invalidation failed")
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrProductNotFound)
}
