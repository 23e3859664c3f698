package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// Cache is a byte-oriented TTL cache. Implemented by the store and by
// RedisCache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cached serves repeated queries from a Cache. Cache errors are logged and
// treated as misses; they never fail a fetch.
type Cached struct {
	next  DataSource
	cache Cache
	ttl   time.Duration
}

// NewCached wraps next. A non-positive ttl defaults to one hour.
func NewCached(next DataSource, cache Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// FetchCompanyData implements DataSource.
func (c *Cached) FetchCompanyData(ctx context.Context, q CompanyQuery) (*model.CompanyAttributes, error) {
	key := q.Key()
	var attrs model.CompanyAttributes
	if c.lookup(ctx, key, &attrs) {
		return &attrs, nil
	}
	res, err := c.next.FetchCompanyData(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, res)
	return res, nil
}

// FetchLeadCandidates implements DataSource.
func (c *Cached) FetchLeadCandidates(ctx context.Context, q LeadQuery) ([]model.Lead, error) {
	key := q.Key()
	var leads []model.Lead
	if c.lookup(ctx, key, &leads) {
		return leads, nil
	}
	res, err := c.next.FetchLeadCandidates(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, res)
	return res, nil
}

func (c *Cached) lookup(ctx context.Context, key string, dst any) bool {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("source: cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		zap.L().Warn("source: cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	zap.L().Debug("source: cache hit", zap.String("key", key))
	return true
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("source: cache encode failed", zap.String("key", key), zap.Error(eris.Wrap(err, "source: encode")))
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		zap.L().Warn("source: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
