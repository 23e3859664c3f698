package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/resilience"
	"github.com/aiki-no/aiki-cli/internal/rng"
)

func TestQueryKeys_Normalized(t *testing.T) {
	a := CompanyQuery{Name: "  Nordic   AS ", OrgNr: "923 609 016"}
	b := CompanyQuery{Name: "nordic as", OrgNr: "923609016"}
	assert.Equal(t, a.Key(), b.Key())

	assert.Equal(t, LeadQuery{Industry: "Teknologi", Region: "Oslo"}.Key(),
		LeadQuery{Industry: "teknologi", Region: " oslo "}.Key())
	assert.NotEqual(t, LeadQuery{Industry: "teknologi"}.Key(), LeadQuery{Industry: "finans"}.Key())
}

func TestUnavailableError_Is(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &UnavailableError{Op: "fetch", Err: cause})
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fetch: data unavailable: boom")
}

func TestMock_KnownCompany(t *testing.T) {
	m := NewMock(rng.Fixed{Frac: 0.5}, config.Defaults().Pricing.MockCompanies)

	attrs, err := m.FetchCompanyData(context.Background(), CompanyQuery{Name: "Equinor ASA"})
	require.NoError(t, err)
	assert.Equal(t, "Equinor ASA", attrs.Basics.Name)
	assert.Equal(t, "923609016", attrs.Basics.OrgNr)
	assert.Equal(t, 21000, attrs.Basics.Employees)
	assert.InDelta(t, 1051000, attrs.Basics.RevenueMillions, 0.5)
	assert.InDelta(t, 7.1, attrs.Financials.ProfitMargin, 0.01)
	assert.Equal(t, "Energi", attrs.Basics.Industry)
	assert.Equal(t, "Norge", attrs.Basics.Country)

	attrs, err = m.FetchCompanyData(context.Background(), CompanyQuery{Name: "norsk hydro"})
	require.NoError(t, err)
	assert.Equal(t, "916142840", attrs.Basics.OrgNr)
}

func TestMock_RandomCompanyRanges(t *testing.T) {
	m := NewMock(rng.New(42), nil)
	for i := 0; i < 200; i++ {
		attrs, err := m.FetchCompanyData(context.Background(), CompanyQuery{Name: "Ukjent AS", Country: "Sverige"})
		require.NoError(t, err)
		b, f, tech := attrs.Basics, attrs.Financials, attrs.Tech
		assert.Equal(t, "Sverige", b.Country)
		assert.GreaterOrEqual(t, b.Founded, 2015)
		assert.LessOrEqual(t, b.Founded, 2022)
		assert.GreaterOrEqual(t, b.Employees, 10)
		assert.LessOrEqual(t, b.Employees, 209)
		assert.GreaterOrEqual(t, b.RevenueMillions, 5.0)
		assert.LessOrEqual(t, b.RevenueMillions, 104.0)
		assert.GreaterOrEqual(t, f.ProfitMargin, -2.0)
		assert.LessOrEqual(t, f.ProfitMargin, 7.0)
		assert.GreaterOrEqual(t, f.Solidity, 30.0)
		assert.Less(t, tech.AIMaturity, 50.0)
		assert.Contains(t, techStacks, tech.TechStack)
		assert.Len(t, b.OrgNr, 9)
	}
}

func TestMock_KeepsGivenOrgNr(t *testing.T) {
	m := NewMock(rng.Fixed{Frac: 0.1}, nil)
	attrs, err := m.FetchCompanyData(context.Background(), CompanyQuery{Name: "Nordic AS", OrgNr: "974760673"})
	require.NoError(t, err)
	assert.Equal(t, "974760673", attrs.Basics.OrgNr)
}

func TestMock_LeadCandidates(t *testing.T) {
	m := NewMock(rng.Fixed{Frac: 0.5}, nil)

	all, err := m.FetchLeadCandidates(context.Background(), LeadQuery{Industry: "Teknologi"})
	require.NoError(t, err)
	require.Len(t, all, len(leadCatalog))
	assert.Equal(t, "TechNinja AS", all[0].Name)
	assert.Equal(t, "DinoData Solutions", all[1].Name)
	assert.Equal(t, "Teknologi - Teknologiutvikling", all[0].IndustryDetail)

	// Callers may mutate the result without touching the catalog.
	all[0].Opportunities[0] = "endret"
	again, err := m.FetchLeadCandidates(context.Background(), LeadQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Trenger AI-automatisering av kundeservice", again[0].Opportunities[0])
	assert.Equal(t, "Teknologiutvikling", again[0].IndustryDetail)
}

func TestMock_LeadSizeFilter(t *testing.T) {
	m := NewMock(nil, nil)
	tests := []struct {
		size   string
		lo, hi int
	}{
		{"små", 0, 49},
		{"Mellomstore", 50, 249},
		{"store", 250, 1 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			leads, err := m.FetchLeadCandidates(context.Background(), LeadQuery{Size: tt.size})
			require.NoError(t, err)
			require.NotEmpty(t, leads)
			for _, l := range leads {
				assert.GreaterOrEqual(t, l.Employees, tt.lo)
				assert.LessOrEqual(t, l.Employees, tt.hi)
			}
		})
	}
}

func TestMock_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMock(nil, nil)
	_, err := m.FetchCompanyData(ctx, CompanyQuery{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.FetchLeadCandidates(ctx, LeadQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCached_MissThenHit(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	cache := newMemCache()
	c := NewCached(next, cache, time.Minute)

	q := CompanyQuery{Name: "Nordic AS"}
	want := &model.CompanyAttributes{Basics: model.CompanyBasics{Name: "Nordic AS", Employees: 40}}
	next.On("FetchCompanyData", ctx, q).Return(want, nil).Once()

	got, err := c.FetchCompanyData(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = c.FetchCompanyData(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Basics.Employees)
	next.AssertExpectations(t)
	assert.Equal(t, time.Minute, cache.ttls[q.Key()])
}

func TestCached_LeadsHit(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	cache := newMemCache()
	c := NewCached(next, cache, 0)

	q := LeadQuery{Industry: "finans"}
	leads := []model.Lead{{Name: "A"}, {Name: "B"}}
	next.On("FetchLeadCandidates", ctx, q).Return(leads, nil).Once()

	for i := 0; i < 3; i++ {
		got, err := c.FetchLeadCandidates(ctx, q)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "B", got[1].Name)
	}
	next.AssertExpectations(t)
	assert.Equal(t, time.Hour, cache.ttls[q.Key()])
}

func TestCached_CacheErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	cache := new(mockCache)
	c := NewCached(next, cache, time.Minute)

	q := CompanyQuery{Name: "Nordic AS"}
	cache.On("Get", ctx, q.Key()).Return(nil, false, errors.New("redis down"))
	cache.On("Set", ctx, q.Key(), mock.Anything, time.Minute).Return(errors.New("redis down"))
	next.On("FetchCompanyData", ctx, q).Return(&model.CompanyAttributes{}, nil)

	_, err := c.FetchCompanyData(ctx, q)
	require.NoError(t, err)
	next.AssertNumberOfCalls(t, "FetchCompanyData", 1)
	cache.AssertExpectations(t)
}

func TestCached_CorruptEntryRefetches(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	cache := newMemCache()
	q := CompanyQuery{Name: "Nordic AS"}
	cache.data[q.Key()] = []byte("{not json")

	next.On("FetchCompanyData", ctx, q).Return(&model.CompanyAttributes{Basics: model.CompanyBasics{Founded: 2019}}, nil).Once()
	got, err := NewCached(next, cache, time.Minute).FetchCompanyData(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2019, got.Basics.Founded)

	var stored model.CompanyAttributes
	require.NoError(t, json.Unmarshal(cache.data[q.Key()], &stored))
	assert.Equal(t, 2019, stored.Basics.Founded)
}

func TestCached_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	cache := newMemCache()
	q := LeadQuery{Industry: "helse"}
	next.On("FetchLeadCandidates", ctx, q).Return(nil, errors.New("boom")).Once()

	_, err := NewCached(next, cache, time.Minute).FetchLeadCandidates(ctx, q)
	require.Error(t, err)
	assert.Empty(t, cache.data)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

func TestResilient_RetriesTransient(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	q := CompanyQuery{Name: "Nordic AS"}
	next.On("FetchCompanyData", ctx, q).Return(nil, errors.New("connection reset by peer")).Twice()
	next.On("FetchCompanyData", ctx, q).Return(&model.CompanyAttributes{}, nil).Once()

	r := NewResilient(next, fastRetry(), nil)
	_, err := r.FetchCompanyData(ctx, q)
	require.NoError(t, err)
	next.AssertNumberOfCalls(t, "FetchCompanyData", 3)
}

func TestResilient_PermanentBecomesUnavailable(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	q := LeadQuery{Industry: "finans"}
	next.On("FetchLeadCandidates", ctx, q).Return(nil, errors.New("bad request"))

	r := NewResilient(next, fastRetry(), nil)
	_, err := r.FetchLeadCandidates(ctx, q)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	next.AssertNumberOfCalls(t, "FetchLeadCandidates", 1)
}

func TestResilient_NilAttributesUnavailable(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	q := CompanyQuery{Name: "x"}
	next.On("FetchCompanyData", ctx, q).Return((*model.CompanyAttributes)(nil), nil)

	_, err := NewResilient(next, fastRetry(), nil).FetchCompanyData(ctx, q)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestResilient_BreakerOpens(t *testing.T) {
	ctx := context.Background()
	next := new(mockDataSource)
	q := CompanyQuery{Name: "x"}
	next.On("FetchCompanyData", ctx, q).Return(nil, errors.New("bad gateway"))

	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	retry := fastRetry()
	retry.MaxAttempts = 1
	r := NewResilient(next, retry, breakers)

	for i := 0; i < 4; i++ {
		_, err := r.FetchCompanyData(ctx, q)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	}
	next.AssertNumberOfCalls(t, "FetchCompanyData", 2)
	assert.Equal(t, resilience.CircuitOpen, r.Breakers().States()[BreakerCompany])

	_, err := r.FetchCompanyData(ctx, q)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestResilient_ContextCanceledPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewResilient(NewMock(nil, nil), fastRetry(), nil)

	_, err := r.FetchCompanyData(ctx, CompanyQuery{Name: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDataUnavailable)
}

func TestRedisCache_Integration(t *testing.T) {
	// Requires a running Redis; skipped otherwise.
	cache := NewRedisCache(config.RedisConfig{Addr: "localhost:6379", DB: 15})
	defer cache.Close() //nolint:errcheck

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	key := fmt.Sprintf("test:%d", time.Now().UnixNano())
	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, key, []byte(`{"a":1}`), time.Minute))
	data, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

// memCache is an in-memory Cache that records the TTL of each write.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	c.ttls[key] = ttl
	return nil
}
