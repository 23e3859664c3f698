package salesforce

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aiki-no/aiki-cli/internal/config"
)

// mockClient implements Client for testing.
type mockClient struct {
	queryFn            func(ctx context.Context, soql string, out any) error
	insertCollectionFn func(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	updateCollectionFn func(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func (m *mockClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if m.insertCollectionFn != nil {
		return m.insertCollectionFn(ctx, sObjectName, records)
	}
	results := make([]CollectionResult, len(records))
	for i := range records {
		results[i] = CollectionResult{ID: "00Q" + string(rune('A'+i)), Success: true}
	}
	return results, nil
}

func (m *mockClient) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if m.updateCollectionFn != nil {
		return m.updateCollectionFn(ctx, sObjectName, records)
	}
	results := make([]CollectionResult, len(records))
	for i, r := range records {
		results[i] = CollectionResult{ID: r.ID, Success: true}
	}
	return results, nil
}

func TestMockClientImplementsInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*mockClient)(nil)
	var _ Client = (*sfClient)(nil)
}

func TestWithRateLimit(t *testing.T) {
	t.Run("sets limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(10)).(*sfClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, rate.Limit(10), c.limiter.Limit())
		assert.Equal(t, 10, c.limiter.Burst())
	})

	t.Run("zero rate skips limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(0)).(*sfClient)
		assert.Nil(t, c.limiter)
	})

	t.Run("no option means no limiter", func(t *testing.T) {
		c := NewClient(nil).(*sfClient)
		assert.Nil(t, c.limiter)
	})

	t.Run("fractional rate gets burst of 1", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(0.5)).(*sfClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, 1, c.limiter.Burst())
	})
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	c := &sfClient{
		limiter: rate.NewLimiter(rate.Every(time.Hour), 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.wait(ctx))
}

func TestConnect_Errors(t *testing.T) {
	t.Run("missing client id", func(t *testing.T) {
		_, err := Connect(config.SalesforceConfig{Username: "u", KeyPath: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client id is required")
	})

	t.Run("missing key file", func(t *testing.T) {
		_, err := Connect(config.SalesforceConfig{
			ClientID: "id",
			Username: "u",
			KeyPath:  filepath.Join(t.TempDir(), "missing.pem"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read JWT private key")
	})

	t.Run("invalid key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))
		_, err := Connect(config.SalesforceConfig{
			ClientID: "id",
			Username: "u",
			KeyPath:  path,
			LoginURL: "http://127.0.0.1:1",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sf: init")
	})
}
