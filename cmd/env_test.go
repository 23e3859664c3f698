package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/pipeline"
	"github.com/aiki-no/aiki-cli/internal/rng"
	"github.com/aiki-no/aiki-cli/internal/source"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Defaults()
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "aiki.db")
	return c
}

func TestInitStore_SQLite(t *testing.T) {
	withConfig(t, sqliteConfig(t))

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Ping(context.Background()))
	n, err := st.CountDLQ(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	c := config.Defaults()
	c.Store.Driver = "mysql"
	withConfig(t, c)

	_, err := initStore(context.Background())
	assert.Error(t, err)
}

func TestBuildSource(t *testing.T) {
	ctx := context.Background()

	t.Run("caching off", func(t *testing.T) {
		c := config.Defaults()
		c.Features.Caching = false

		ds, rc := buildSource(ctx, c, nil, rng.New(1))
		assert.Nil(t, rc)
		assert.IsType(t, &source.Resilient{}, ds)
	})

	t.Run("caching in store", func(t *testing.T) {
		c := sqliteConfig(t)
		c.Features.Caching = true
		c.Redis.Addr = ""
		withConfig(t, c)

		st, err := initStore(ctx)
		require.NoError(t, err)
		defer st.Close() //nolint:errcheck

		ds, rc := buildSource(ctx, c, st, rng.New(1))
		assert.Nil(t, rc)
		assert.IsType(t, &source.Cached{}, ds)

		attrs, err := ds.FetchCompanyData(ctx, source.CompanyQuery{Name: "Equinor ASA"})
		require.NoError(t, err)
		assert.Equal(t, "Equinor ASA", attrs.Basics.Name)
	})

	t.Run("caching without store", func(t *testing.T) {
		c := config.Defaults()
		c.Features.Caching = true
		c.Redis.Addr = ""

		ds, _ := buildSource(ctx, c, nil, rng.New(1))
		assert.IsType(t, &source.Resilient{}, ds)
	})
}

func TestInitApp(t *testing.T) {
	c := sqliteConfig(t)
	c.Redis.Addr = ""
	withConfig(t, c)

	prevSeed := seed
	seed = 42
	t.Cleanup(func() { seed = prevSeed })

	env, err := initApp(context.Background(), true)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Pipeline)
	require.NotNil(t, env.Store)

	req := model.DocumentRequest{
		Kind:   model.KindCompanyReport,
		Fields: map[string]string{"bedrift_navn": "Equinor ASA"},
	}
	assert.True(t, env.Pipeline.Enabled(req.Kind))

	// Same wiring as initApp, without the simulated latency.
	p := pipeline.New(cfg.Provider(), env.Source,
		pipeline.WithRand(rng.New(seed)), pipeline.WithSink(env.Store), pipeline.WithDelays(nil))
	doc, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	got, err := env.Store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, model.KindCompanyReport, got.Kind)
}
