package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a staged merge into Table.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
	// UpdateCols are overwritten on conflict. nil means every non-key
	// column; an empty non-nil slice keeps existing rows untouched.
	UpdateCols []string
	// Then runs inside the merge transaction before commit with the number
	// of merged rows, so dependent rows land atomically with the parent
	// rows. An error rolls the whole merge back.
	Then func(ctx context.Context, tx Conn, merged int64) error
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updateCols() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var out []string
	for _, col := range c.Columns {
		if !keys[col] {
			out = append(out, col)
		}
	}
	return out
}

func (c UpsertConfig) stagingTable() string {
	return "_stage_" + strings.ReplaceAll(c.Table, ".", "_")
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement moving the
// staged rows into the target table.
func (c UpsertConfig) mergeSQL() string {
	cols := quoteAndJoin(c.Columns)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(identifier(c.Table).Sanitize())
	b.WriteString(" (" + cols + ") SELECT " + cols + " FROM ")
	b.WriteString(pgx.Identifier{c.stagingTable()}.Sanitize())
	b.WriteString(" ON CONFLICT (" + quoteAndJoin(c.ConflictKeys) + ")")

	update := c.updateCols()
	if len(update) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	b.WriteString(" DO UPDATE SET ")
	for i, col := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		q := pgx.Identifier{col}.Sanitize()
		b.WriteString(q + " = EXCLUDED." + q)
	}
	return b.String()
}

// BulkUpsert stages rows in a temporary table with COPY and merges them into
// the target in one transaction. It returns the number of merged rows.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := cfg.stagingTable()
	create := "CREATE TEMP TABLE " + pgx.Identifier{stage}.Sanitize() +
		" (LIKE " + identifier(cfg.Table).Sanitize() + " INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}
	if _, err := CopyFrom(ctx, tx, stage, cfg.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge %s", cfg.Table)
	}

	if cfg.Then != nil {
		if err := cfg.Then(ctx, tx, tag.RowsAffected()); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
