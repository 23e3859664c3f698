package source

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// --- DataSource Mock ---

type mockDataSource struct {
	mock.Mock
}

func (m *mockDataSource) FetchCompanyData(ctx context.Context, q CompanyQuery) (*model.CompanyAttributes, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanyAttributes), args.Error(1)
}

func (m *mockDataSource) FetchLeadCandidates(ctx context.Context, q LeadQuery) ([]model.Lead, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

// --- Cache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, val, ttl)
	return args.Error(0)
}
