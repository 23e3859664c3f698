package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	issued_at  DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS document_leads (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	rank        INTEGER NOT NULL,
	name        TEXT NOT NULL,
	score       INTEGER NOT NULL,
	employees   INTEGER NOT NULL DEFAULT 0,
	contact     TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_id, rank)
);

CREATE TABLE IF NOT EXISTS company_cache (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	request        TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_documents_issued_at ON documents(issued_at);
CREATE INDEX IF NOT EXISTS idx_document_leads_score ON document_leads(score);
CREATE INDEX IF NOT EXISTS idx_company_cache_expires_at ON company_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *model.RenderedDocument) error {
	return s.SaveDocuments(ctx, []*model.RenderedDocument{doc})
}

func (s *SQLiteStore) SaveDocuments(ctx context.Context, docs []*model.RenderedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, doc := range docs {
		if err := saveDocument(ctx, tx, doc); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit documents")
}

func saveDocument(ctx context.Context, ex execer, doc *model.RenderedDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal document")
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO documents (id, kind, title, body, payload, issued_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Kind.String(), doc.Title(), doc.Body, string(payload), doc.IssuedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save document %s", doc.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: save document %s", doc.ID)
	}
	if n == 0 {
		return eris.Wrapf(ErrDuplicateID, "sqlite: save document %s", doc.ID)
	}

	for _, l := range leadRows(doc) {
		_, err := ex.ExecContext(ctx,
			`INSERT INTO document_leads (document_id, rank, name, score, employees, contact, email) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.DocumentID, l.Rank, l.Name, l.Score, l.Employees, l.Contact, l.Email,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert lead for %s", doc.ID)
		}
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.RenderedDocument, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	var doc model.RenderedDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal document")
	}
	return &doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]DocumentSummary, error) {
	query := `SELECT id, kind, title, issued_at FROM documents WHERE 1=1`
	var args []any

	if filter.Kind.Valid() {
		query += ` AND kind = ?`
		args = append(args, filter.Kind.String())
	}
	query += ` ORDER BY issued_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close() //nolint:errcheck

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var kind string
		if err := rows.Scan(&d.ID, &kind, &d.Title, &d.IssuedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		d.Kind, _ = model.ParseKind(kind)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]StoredLead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.document_id, l.rank, l.name, l.score, l.employees, l.contact, l.email
		 FROM document_leads l JOIN documents d ON d.id = l.document_id
		 WHERE l.score >= ?
		 ORDER BY l.score DESC, d.issued_at DESC, l.rank LIMIT ?`,
		filter.MinScore, listLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var out []StoredLead
	for rows.Next() {
		var l StoredLead
		if err := rows.Scan(&l.DocumentID, &l.Rank, &l.Name, &l.Score, &l.Employees, &l.Contact, &l.Email); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) GetCachedCompany(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM company_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached company")
	}
	return []byte(data), nil
}

func (s *SQLiteStore) SetCachedCompany(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company_cache (key, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached company")
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM company_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	reqJSON, err := json.Marshal(entry.Request)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dlq request")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, request, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, failed_stage = excluded.failed_stage,
		   retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at,
		   last_failed_at = excluded.last_failed_at`,
		entry.ID, string(reqJSON), entry.Error, entry.ErrorType, string(entry.FailedStage),
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, request, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.Kind != "" {
		query += ` AND json_extract(request, '$.kind') = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close() //nolint:errcheck

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var reqJSON string
		var failedStage sql.NullString
		if err := rows.Scan(&e.ID, &reqJSON, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.FailedStage = model.Stage(failedStage.String)
		if err := json.Unmarshal([]byte(reqJSON), &e.Request); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dlq request")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
