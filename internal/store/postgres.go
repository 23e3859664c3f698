package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aiki-no/aiki-cli/internal/db"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_document":       `SELECT payload FROM documents WHERE id = $1`,
	"get_cached_company": `SELECT data FROM company_cache WHERE key = $1 AND expires_at > now()`,
	"set_cached_company": `INSERT INTO company_cache (key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (key) DO UPDATE SET data = $2, cached_at = $3, expires_at = $4`,
	"count_dlq":          `SELECT COUNT(*) FROM dead_letter_queue`,
}

var documentColumns = []string{"id", "kind", "title", "body", "payload", "issued_at", "created_at"}

var leadColumns = []string{"document_id", "rank", "name", "score", "employees", "contact", "email"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	issued_at  TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	data       JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request        JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_documents_issued_at ON documents(issued_at DESC);
CREATE INDEX IF NOT EXISTS idx_document_leads_score ON document_leads(score DESC);
CREATE INDEX IF NOT EXISTS idx_company_cache_expires_at ON company_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func documentRow(doc *model.RenderedDocument, now time.Time) ([]any, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal document")
	}
	return []any{doc.ID, doc.Kind.String(), doc.Title(), doc.Body, payload, doc.IssuedAt.UTC(), now}, nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc *model.RenderedDocument) error {
	return s.SaveDocuments(ctx, []*model.RenderedDocument{doc})
}

// SaveDocuments inserts documents and their lead rows in one transaction.
// Rows are staged and merged with DO NOTHING on the id; a merge that skips
// any row means an id was already taken (or repeated in docs), and the
// whole batch is rolled back.
func (s *PostgresStore) SaveDocuments(ctx context.Context, docs []*model.RenderedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		row, err := documentRow(doc, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "documents",
		Columns:      documentColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{},
		Then: func(ctx context.Context, tx db.Conn, merged int64) error {
			if merged != int64(len(rows)) {
				return eris.Wrapf(ErrDuplicateID, "%d of %d documents", int64(len(rows))-merged, len(rows))
			}
			return insertLeads(ctx, tx, docs)
		},
	}, rows)
	return eris.Wrap(err, "postgres: save documents")
}

func insertLeads(ctx context.Context, conn db.Conn, docs []*model.RenderedDocument) error {
	var rows [][]any
	for _, doc := range docs {
		for _, l := range leadRows(doc) {
			rows = append(rows, []any{l.DocumentID, l.Rank, l.Name, l.Score, l.Employees, l.Contact, l.Email})
		}
	}
	_, err := db.CopyFrom(ctx, conn, "document_leads", leadColumns, rows)
	return eris.Wrap(err, "postgres: copy leads")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.RenderedDocument, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM documents WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "document %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	var doc model.RenderedDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal document")
	}
	return &doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]DocumentSummary, error) {
	query := `SELECT id, kind, title, issued_at FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind.Valid() {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, filter.Kind.String())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY issued_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var kind string
		if err := rows.Scan(&d.ID, &kind, &d.Title, &d.IssuedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.Kind, _ = model.ParseKind(kind)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]StoredLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.document_id, l.rank, l.name, l.score, l.employees, l.contact, l.email
		 FROM document_leads l JOIN documents d ON d.id = l.document_id
		 WHERE l.score >= $1
		 ORDER BY l.score DESC, d.issued_at DESC, l.rank LIMIT $2`,
		filter.MinScore, listLimit(filter.Limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []StoredLead
	for rows.Next() {
		var l StoredLead
		if err := rows.Scan(&l.DocumentID, &l.Rank, &l.Name, &l.Score, &l.Employees, &l.Contact, &l.Email); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) GetCachedCompany(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM company_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached company")
	}
	return data, nil
}

func (s *PostgresStore) SetCachedCompany(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO company_cache (key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET data = $2, cached_at = $3, expires_at = $4`,
		key, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached company")
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM company_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	reqJSON, err := json.Marshal(entry.Request)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq request")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, request, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $3, error_type = $4, failed_stage = $5, retry_count = $6,
		   next_retry_at = $8, last_failed_at = $10`,
		entry.ID, reqJSON, entry.Error, entry.ErrorType,
		string(entry.FailedStage), entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, request, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND request->>'kind' = $%d`, argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	query += fmt.Sprintf(` ORDER BY next_retry_at ASC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var reqJSON []byte
		var failedStage *string
		if err := rows.Scan(&e.ID, &reqJSON, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if failedStage != nil {
			e.FailedStage = model.Stage(*failedStage)
		}
		if err := json.Unmarshal(reqJSON, &e.Request); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq request")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "dlq entry %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}
