package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/source"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) FetchCompanyData(ctx context.Context, q source.CompanyQuery) (*model.CompanyAttributes, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanyAttributes), args.Error(1)
}

func (m *mockSource) FetchLeadCandidates(ctx context.Context, q source.LeadQuery) ([]model.Lead, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) SaveDocument(ctx context.Context, doc *model.RenderedDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}
