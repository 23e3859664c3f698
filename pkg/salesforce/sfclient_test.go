package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSFClient creates an sfClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	require.NotNil(t, sf)

	return NewClient(sf), ts
}

func TestSFClient_Query(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 1,
			"done":      true,
			"records": []map[string]any{
				{
					"attributes": map[string]any{"type": "Lead"},
					"Id":         "00Qxx",
					"Email":      "kari@nordlysradgivning.no",
					"Company":    "Nordlys Rådgivning AS",
				},
			},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var leads []SFLead
	err := client.Query(context.Background(), "SELECT Id, Email, Company FROM Lead", &leads)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "00Qxx", leads[0].ID)
	assert.Equal(t, "Nordlys Rådgivning AS", leads[0].Company)
	assert.Equal(t, "kari@nordlysradgivning.no", leads[0].Email)
}

func TestSFClient_Query_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid SOQL", "errorCode": "MALFORMED_QUERY"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var leads []SFLead
	err := client.Query(context.Background(), "SELECT broken", &leads)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
}

func TestSFClient_UpdateCollection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "001xx", "success": true, "errors": []any{}},
				{"id": "002xx", "success": true, "errors": []any{}},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	records := []CollectionRecord{
		{ID: "001xx", Fields: map[string]any{"Company": "A"}},
		{ID: "002xx", Fields: map[string]any{"Company": "B"}},
	}
	results, err := client.UpdateCollection(context.Background(), "Lead", records)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "001xx", results[0].ID)
}

func TestSFClient_UpdateCollection_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "batch error"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	records := []CollectionRecord{
		{ID: "001xx", Fields: map[string]any{"Company": "A"}},
	}
	_, err := client.UpdateCollection(context.Background(), "Lead", records)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update collection")
}

func TestSFClient_InsertCollection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "00Q1", "success": true, "errors": []any{}},
				{"id": "00Q2", "success": true, "errors": []any{}},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	results, err := client.InsertCollection(context.Background(), "Lead", []map[string]any{
		{"Company": "TechNinja AS", "LastName": "Hansen"},
		{"Company": "DinoData Solutions", "LastName": "Eriksen"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "00Q1", results[0].ID)
	assert.Equal(t, "00Q2", results[1].ID)
	assert.Empty(t, results[1].Errors)
}

func TestSFClient_InsertCollection_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "server down"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	_, err := client.InsertCollection(context.Background(), "Lead", []map[string]any{{"Company": "A", "LastName": "B"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: insert collection Lead")
}
