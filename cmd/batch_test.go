package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/pipeline"
	"github.com/aiki-no/aiki-cli/internal/resilience"
	"github.com/aiki-no/aiki-cli/internal/store"
)

type mockBatchStore struct {
	mock.Mock
}

func (m *mockBatchStore) SaveDocuments(ctx context.Context, docs []*model.RenderedDocument) error {
	return m.Called(ctx, docs).Error(0)
}

func (m *mockBatchStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockBatchStore) SaveDocument(ctx context.Context, doc *model.RenderedDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockBatchStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resilience.DLQEntry), args.Error(1)
}

func (m *mockBatchStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	return m.Called(ctx, id, nextRetryAt, lastErr).Error(0)
}

func (m *mockBatchStore) RemoveDLQ(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var batchNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func offerRequest(customer string) model.DocumentRequest {
	return model.DocumentRequest{Kind: model.KindOffer, Fields: map[string]string{"kunde": customer, "tjenester": "AI"}}
}

// fakeGenerate fails for customers named "fail" and "invalid".
func fakeGenerate(_ context.Context, req model.DocumentRequest) (*model.RenderedDocument, error) {
	switch req.Field("kunde") {
	case "fail":
		return nil, resilience.NewTransientError(errors.New("upstream 503"), 503)
	case "invalid":
		return nil, &pipeline.ValidationError{Kind: req.Kind, Fields: []string{"services"}}
	}
	return &model.RenderedDocument{ID: "AIKI-" + req.Field("kunde"), Kind: req.Kind, Body: "TILBUD"}, nil
}

func TestParseRequests(t *testing.T) {
	t.Run("bare list", func(t *testing.T) {
		reqs, err := parseRequests([]byte(`
- kind: tilbud
  fields:
    kunde: Fjordlast AS
    tjenester: AI-chatbot
- kind: leads
  fields:
    bransje: teknologi
`))
		require.NoError(t, err)
		require.Len(t, reqs, 2)
		assert.Equal(t, model.KindOffer, reqs[0].Kind)
		assert.Equal(t, "Fjordlast AS", reqs[0].Fields["kunde"])
		assert.Equal(t, model.KindLeadSearch, reqs[1].Kind)
	})

	t.Run("requests key", func(t *testing.T) {
		reqs, err := parseRequests([]byte(`
requests:
  - kind: bedrift
    fields:
      bedrift_navn: Equinor
`))
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, model.KindCompanyReport, reqs[0].Kind)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := parseRequests([]byte(`
requests:
  - kind: faktura
`))
		assert.Error(t, err)
	})
}

func TestLoadRequests_MissingFile(t *testing.T) {
	_, err := loadRequests(t.TempDir() + "/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read request file")
}

func TestProcessBatch_SavesAndDeadLetters(t *testing.T) {
	st := new(mockBatchStore)
	clock := clockwork.NewFakeClockAt(batchNow)

	var mu sync.Mutex
	var entries []resilience.DLQEntry
	st.On("EnqueueDLQ", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, args.Get(1).(resilience.DLQEntry))
	}).Return(nil)
	st.On("SaveDocuments", mock.Anything, mock.MatchedBy(func(docs []*model.RenderedDocument) bool {
		return len(docs) == 2 && docs[0].ID == "AIKI-a" && docs[1].ID == "AIKI-b"
	})).Return(nil).Once()

	reqs := []model.DocumentRequest{
		offerRequest("a"), offerRequest("fail"), offerRequest("b"), offerRequest("invalid"),
	}
	sum, err := processBatch(context.Background(), reqs, batchOptions{Concurrency: 2, MaxRetries: 3}, fakeGenerate, st, clock)
	require.NoError(t, err)
	assert.Equal(t, batchSummary{Succeeded: 2, Failed: 2}, sum)
	st.AssertExpectations(t)

	require.Len(t, entries, 2)
	byType := map[string]resilience.DLQEntry{}
	for _, e := range entries {
		byType[e.ErrorType] = e
	}

	transient := byType[resilience.ErrorTransient]
	assert.Equal(t, "fail", transient.Request.Field("kunde"))
	assert.Equal(t, 3, transient.MaxRetries)
	assert.Equal(t, batchNow.Add(time.Minute), transient.NextRetryAt)
	assert.NotEmpty(t, transient.ID)

	permanent := byType[resilience.ErrorPermanent]
	assert.Equal(t, model.StageValidating, permanent.FailedStage)
	assert.Equal(t, 0, permanent.MaxRetries)
	assert.False(t, permanent.CanRetry())
}

func TestProcessBatch_Empty(t *testing.T) {
	st := new(mockBatchStore)
	sum, err := processBatch(context.Background(), nil, batchOptions{Concurrency: 1}, fakeGenerate, st, clockwork.NewFakeClock())
	require.NoError(t, err)
	assert.Equal(t, batchSummary{}, sum)
	st.AssertNotCalled(t, "SaveDocuments", mock.Anything, mock.Anything)
}

func TestProcessBatch_AllFailedSkipsSave(t *testing.T) {
	st := new(mockBatchStore)
	st.On("EnqueueDLQ", mock.Anything, mock.Anything).Return(errors.New("db down"))

	sum, err := processBatch(context.Background(), []model.DocumentRequest{offerRequest("fail")},
		batchOptions{Concurrency: 0, MaxRetries: 3}, fakeGenerate, st, clockwork.NewFakeClock())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	st.AssertNotCalled(t, "SaveDocuments", mock.Anything, mock.Anything)
}

func TestProcessBatch_SaveError(t *testing.T) {
	st := new(mockBatchStore)
	st.On("SaveDocuments", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := processBatch(context.Background(), []model.DocumentRequest{offerRequest("a")},
		batchOptions{Concurrency: 1}, fakeGenerate, st, clockwork.NewFakeClock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save documents")
}

func TestProcessBatch_CanceledNotDeadLettered(t *testing.T) {
	st := new(mockBatchStore)
	gen := func(context.Context, model.DocumentRequest) (*model.RenderedDocument, error) {
		return nil, context.Canceled
	}
	sum, err := processBatch(context.Background(), []model.DocumentRequest{offerRequest("a")},
		batchOptions{Concurrency: 1}, gen, st, clockwork.NewFakeClock())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	st.AssertNotCalled(t, "EnqueueDLQ", mock.Anything, mock.Anything)
}

func TestNewDLQEntry_FeatureDisabledIsPermanent(t *testing.T) {
	err := errors.Join(pipeline.ErrFeatureDisabled)
	e := newDLQEntry(offerRequest("a"), err, 3, clockwork.NewFakeClockAt(batchNow))
	assert.Equal(t, resilience.ErrorPermanent, e.ErrorType)
	assert.Equal(t, 0, e.MaxRetries)
	assert.Equal(t, batchNow, e.CreatedAt)
}

func TestRetryDLQ(t *testing.T) {
	st := new(mockBatchStore)
	clock := clockwork.NewFakeClockAt(batchNow)
	ctx := context.Background()

	entries := []resilience.DLQEntry{
		{ID: "ok", Request: offerRequest("a"), MaxRetries: 3, ErrorType: resilience.ErrorTransient},
		{ID: "again", Request: offerRequest("fail"), RetryCount: 1, MaxRetries: 3, ErrorType: resilience.ErrorTransient},
		{ID: "done", Request: offerRequest("a"), RetryCount: 3, MaxRetries: 3, ErrorType: resilience.ErrorTransient},
	}
	st.On("DequeueDLQ", ctx, resilience.DLQFilter{Limit: 10}).Return(entries, nil).Once()
	st.On("SaveDocument", ctx, mock.MatchedBy(func(d *model.RenderedDocument) bool { return d.ID == "AIKI-a" })).Return(nil).Once()
	st.On("RemoveDLQ", ctx, "ok").Return(nil).Once()
	st.On("IncrementDLQRetry", ctx, "again", batchNow.Add(2*time.Minute), "upstream 503").Return(nil).Once()

	sum, err := retryDLQ(ctx, st, fakeGenerate, clock, 10)
	require.NoError(t, err)
	assert.Equal(t, retrySummary{Attempted: 2, Recovered: 1}, sum)
	st.AssertExpectations(t)
}

func TestRetryDLQ_DuplicateIDReschedules(t *testing.T) {
	st := new(mockBatchStore)
	clock := clockwork.NewFakeClockAt(batchNow)
	ctx := context.Background()

	entries := []resilience.DLQEntry{
		{ID: "dup", Request: offerRequest("a"), MaxRetries: 3, ErrorType: resilience.ErrorTransient},
	}
	dupErr := eris.Wrap(store.ErrDuplicateID, "sqlite: save document AIKI-a")
	st.On("DequeueDLQ", ctx, resilience.DLQFilter{Limit: 5}).Return(entries, nil).Once()
	st.On("SaveDocument", ctx, mock.Anything).Return(dupErr).Once()
	st.On("IncrementDLQRetry", ctx, "dup", batchNow.Add(time.Minute), dupErr.Error()).Return(nil).Once()

	sum, err := retryDLQ(ctx, st, fakeGenerate, clock, 5)
	require.NoError(t, err)
	assert.Equal(t, retrySummary{Attempted: 1}, sum)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "RemoveDLQ", mock.Anything, mock.Anything)
}

func TestRetryDLQ_SaveError(t *testing.T) {
	st := new(mockBatchStore)
	entries := []resilience.DLQEntry{
		{ID: "ok", Request: offerRequest("a"), MaxRetries: 3, ErrorType: resilience.ErrorTransient},
	}
	st.On("DequeueDLQ", mock.Anything, mock.Anything).Return(entries, nil)
	st.On("SaveDocument", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := retryDLQ(context.Background(), st, fakeGenerate, clockwork.NewFakeClockAt(batchNow), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save recovered document")
}

func TestRetryDLQ_DequeueError(t *testing.T) {
	st := new(mockBatchStore)
	st.On("DequeueDLQ", mock.Anything, mock.Anything).Return(nil, errors.New("locked"))

	_, err := retryDLQ(context.Background(), st, fakeGenerate, clockwork.NewFakeClock(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dequeue dlq")
}
