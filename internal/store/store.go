package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/resilience"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicateID is wrapped when a saved document reuses the id of a stored
// one. Stored documents are never overwritten.
var ErrDuplicateID = eris.New("store: document id already exists")

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	Kind   model.Kind `json:"kind,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// DocumentSummary is a listing row.
type DocumentSummary struct {
	ID       string     `json:"id"`
	Kind     model.Kind `json:"kind"`
	Title    string     `json:"title"`
	IssuedAt time.Time  `json:"issued_at"`
}

// LeadFilter selects stored leads across lead-search documents.
type LeadFilter struct {
	MinScore int `json:"min_score,omitempty"`
	Limit    int `json:"limit,omitempty"`
}

// StoredLead is one ranked lead of a persisted lead-search document.
type StoredLead struct {
	DocumentID string `json:"document_id"`
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Employees  int    `json:"employees"`
	Contact    string `json:"contact"`
	Email      string `json:"email"`
}

// Store defines persistence for rendered documents, the company-data cache
// and the batch dead-letter queue.
type Store interface {
	// Documents. Saves are insert-only and fail with ErrDuplicateID.
	SaveDocument(ctx context.Context, doc *model.RenderedDocument) error
	SaveDocuments(ctx context.Context, docs []*model.RenderedDocument) error
	GetDocument(ctx context.Context, id string) (*model.RenderedDocument, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]DocumentSummary, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]StoredLead, error)

	// Company-data cache
	GetCachedCompany(ctx context.Context, key string) ([]byte, error)
	SetCachedCompany(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteExpiredCache(ctx context.Context) (int, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// CompanyCache adapts a Store to the byte cache used by the data source.
type CompanyCache struct {
	Store Store
}

// Get returns the cached value and whether it was present and unexpired.
func (c CompanyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.Store.GetCachedCompany(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// Set stores val for ttl.
func (c CompanyCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.Store.SetCachedCompany(ctx, key, val, ttl)
}

// leadRows flattens the ranked leads of a lead-search document. Other kinds
// yield nothing.
func leadRows(doc *model.RenderedDocument) []StoredLead {
	if doc.Kind != model.KindLeadSearch {
		return nil
	}
	out := make([]StoredLead, 0, len(doc.Leads))
	for i, l := range doc.Leads {
		out = append(out, StoredLead{
			DocumentID: doc.ID,
			Rank:       i + 1,
			Name:       l.Name,
			Score:      l.Score,
			Employees:  l.Employees,
			Contact:    l.Contact.Name,
			Email:      l.Contact.Email,
		})
	}
	return out
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
