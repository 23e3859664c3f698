package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/pipeline"
	"github.com/aiki-no/aiki-cli/internal/resilience"
	"github.com/aiki-no/aiki-cli/internal/rng"
	"github.com/aiki-no/aiki-cli/internal/source"
	"github.com/aiki-no/aiki-cli/internal/store"
)

// seed makes generation reproducible when non-zero.
var seed uint64

func init() {
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed for reproducible output (0 = random)")
}

// appEnv holds the store, data source and pipeline shared by the commands.
type appEnv struct {
	Store    store.Store
	Source   source.DataSource
	Pipeline *pipeline.Pipeline

	redis *source.RedisCache
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func randSource() rng.Source {
	if seed != 0 {
		return rng.New(seed)
	}
	return rng.Default()
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "aiki.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildSource wires the mock collaborator behind retries and a circuit
// breaker, then behind the company cache when caching is enabled. Redis is
// used when configured and reachable; otherwise the store holds the cache.
func buildSource(ctx context.Context, c *config.Config, st store.Store, r rng.Source) (source.DataSource, *source.RedisCache) {
	var ds source.DataSource = source.NewMock(r, c.Pricing.MockCompanies)

	retry, breaker := resilience.FromConfig(c.Resilience)
	ds = source.NewResilient(ds, retry, resilience.NewBreakers(breaker))

	if !c.Features.Caching {
		return ds, nil
	}

	if c.Redis.Addr != "" {
		rc := source.NewRedisCache(c.Redis)
		err := rc.Ping(ctx)
		if err == nil {
			zap.L().Info("company cache: redis", zap.String("addr", c.Redis.Addr))
			return source.NewCached(ds, rc, c.AI.Report.CacheDuration), rc
		}
		zap.L().Warn("redis unavailable, caching in store", zap.Error(err))
		_ = rc.Close()
	}
	if st != nil {
		return source.NewCached(ds, store.CompanyCache{Store: st}, c.AI.Report.CacheDuration), nil
	}
	return ds, nil
}

// initApp opens the store and builds the pipeline. When persist is set the
// pipeline saves every generated document to the store.
func initApp(ctx context.Context, persist bool) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	r := randSource()
	ds, rc := buildSource(ctx, cfg, st, r)

	opts := []pipeline.Option{pipeline.WithRand(r)}
	if persist {
		opts = append(opts, pipeline.WithSink(st))
	}
	p := pipeline.New(cfg.Provider(), ds, opts...)

	return &appEnv{Store: st, Source: ds, Pipeline: p, redis: rc}, nil
}
