package resilience

import (
	"time"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// Error classes stored on dead-letter entries.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// DLQEntry is a document request that failed during a batch run and can be
// replayed later.
type DLQEntry struct {
	ID           string                `json:"id"`
	Request      model.DocumentRequest `json:"request"`
	Error        string                `json:"error"`
	ErrorType    string                `json:"error_type"`
	FailedStage  model.Stage           `json:"failed_stage,omitempty"`
	RetryCount   int                   `json:"retry_count"`
	MaxRetries   int                   `json:"max_retries"`
	NextRetryAt  time.Time             `json:"next_retry_at"`
	CreatedAt    time.Time             `json:"created_at"`
	LastFailedAt time.Time             `json:"last_failed_at"`
}

// DLQFilter selects dead-letter entries.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether the entry has retries left. Permanent failures
// such as validation errors never do.
func (e *DLQEntry) CanRetry() bool {
	return e.ErrorType != ErrorPermanent && e.RetryCount < e.MaxRetries
}

// NextBackoff returns when the entry should be retried next, doubling a one
// minute base per previous retry and capping at one day.
func (e *DLQEntry) NextBackoff(now time.Time) time.Time {
	d := time.Minute << min(e.RetryCount, 12)
	if d > 24*time.Hour {
		d = 24 * time.Hour
	}
	return now.Add(d)
}

// ClassifyError labels err as transient or permanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}
