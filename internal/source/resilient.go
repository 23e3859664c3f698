package source

import (
	"context"
	"errors"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/resilience"
)

// Breaker names used by Resilient.
const (
	BreakerCompany = "source.company"
	BreakerLeads   = "source.leads"
)

// Resilient retries transient failures and guards each operation with a
// circuit breaker. Every failure except context cancellation is reported as
// an UnavailableError so callers can degrade.
type Resilient struct {
	next     DataSource
	retry    resilience.RetryConfig
	breakers *resilience.Breakers
}

// NewResilient wraps next.
func NewResilient(next DataSource, retry resilience.RetryConfig, breakers *resilience.Breakers) *Resilient {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return &Resilient{next: next, retry: retry, breakers: breakers}
}

// Breakers exposes the breaker registry for health reporting.
func (r *Resilient) Breakers() *resilience.Breakers { return r.breakers }

// FetchCompanyData implements DataSource.
func (r *Resilient) FetchCompanyData(ctx context.Context, q CompanyQuery) (*model.CompanyAttributes, error) {
	cfg := r.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("source", "company")
	}
	cb := r.breakers.Get(BreakerCompany)
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.CompanyAttributes, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*model.CompanyAttributes, error) {
			return r.next.FetchCompanyData(ctx, q)
		})
	})
	if err != nil {
		return nil, unavailable(ctx, "fetch company data", err)
	}
	if res == nil {
		return nil, &UnavailableError{Op: "fetch company data", Err: errors.New("empty response")}
	}
	return res, nil
}

// FetchLeadCandidates implements DataSource.
func (r *Resilient) FetchLeadCandidates(ctx context.Context, q LeadQuery) ([]model.Lead, error) {
	cfg := r.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("source", "leads")
	}
	cb := r.breakers.Get(BreakerLeads)
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.Lead, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) ([]model.Lead, error) {
			return r.next.FetchLeadCandidates(ctx, q)
		})
	})
	if err != nil {
		return nil, unavailable(ctx, "fetch lead candidates", err)
	}
	return res, nil
}

func unavailable(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
