package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/infra/metrics"
)

var _ adapter.ProductResolver = (*productCacheDecorator)(nil)

type cachedProduct struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type productCacheDecorator struct {
	inner adapter.ProductResolver
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewProductCacheDecorator caches resolved products by id. Expanded refs skip
// the cache because they already carry the product.
func NewProductCacheDecorator(inner adapter.ProductResolver, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) adapter.ProductResolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "ProductCache").Logger()
	return &productCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func productKey(id string) string { return fmt.Sprintf("product:%s", id) }

func (d *productCacheDecorator) ResolveProduct(ctx context.Context, ref model.ProductRef) (model.Product, error) {
	if p, ok := ref.Expanded(); ok {
		return p, nil
	}
	key := productKey(ref.ID())
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var cp cachedProduct
		if json.Unmarshal([]byte(val), &cp) == nil {
			metrics.IncCacheRequest("product", "hit")
			return model.Product{ID: cp.ID, Name: cp.Name, Metadata: cp.Metadata}, nil
		}
	} else if !errors.Is(err, Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("product cache read failed")
	}

	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.ResolveProduct(ctx, ref)
	if err != nil {
		return model.Product{}, err
	}
	b, _ := json.Marshal(cachedProduct{ID: p.ID, Name: p.Name, Metadata: p.Metadata})
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("product cache write failed")
	}
	return p, nil
}
