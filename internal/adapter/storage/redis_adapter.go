package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/orderbot/internal/core/domain"
)

const (
	activeProductsKey = "catalog:active"
	invoiceKeyPrefix  = "invoice:"

	defaultCatalogTTL = time.Minute
	defaultInvoiceTTL = 10 * time.Minute
)

type RedisAdapter struct {
	client     *redis.Client
	prefix     string
	catalogTTL time.Duration
	invoiceTTL time.Duration
}

type RedisOption func(*RedisAdapter)

// WithKeyPrefix namespaces every key, so several deployments can share one Redis.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisAdapter) { r.prefix = prefix }
}

func WithTTLs(catalog, invoice time.Duration) RedisOption {
	return func(r *RedisAdapter) {
		if catalog > 0 {
			r.catalogTTL = catalog
		}
		if invoice > 0 {
			r.invoiceTTL = invoice
		}
	}
}

func NewRedisAdapter(client *redis.Client, opts ...RedisOption) *RedisAdapter {
	r := &RedisAdapter{
		client:     client,
		catalogTTL: defaultCatalogTTL,
		invoiceTTL: defaultInvoiceTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisAdapter) key(k string) string {
	return r.prefix + k
}

func invoiceKey(orderID int64, fingerprint string) string {
	return fmt.Sprintf("%s%d:%s", invoiceKeyPrefix, orderID, fingerprint)
}

func (r *RedisAdapter) GetActiveProducts(ctx context.Context) ([]domain.Product, bool, error) {
	data, err := r.client.Get(ctx, r.key(activeProductsKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, false, fmt.Errorf("decode cached catalog: %w", err)
	}
	return products, true, nil
}

func (r *RedisAdapter) SetActiveProducts(ctx context.Context, products []domain.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return r.client.Set(ctx, r.key(activeProductsKey), data, r.catalogTTL).Err()
}

func (r *RedisAdapter) InvalidateActiveProducts(ctx context.Context) error {
	return r.client.Del(ctx, r.key(activeProductsKey)).Err()
}

func (r *RedisAdapter) GetInvoice(ctx context.Context, orderID int64, fingerprint string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(invoiceKey(orderID, fingerprint))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisAdapter) SetInvoice(ctx context.Context, orderID int64, fingerprint string, image []byte) error {
	return r.client.Set(ctx, r.key(invoiceKey(orderID, fingerprint)), image, r.invoiceTTL).Err()
}
