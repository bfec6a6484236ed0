package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/storage"
)

// maxRowsPerInsert keeps a multi-row INSERT under Postgres' 65535 bind
// parameter limit.
const maxRowsPerInsert = 1000

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool for cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the contact table if needed.
func (r *Repo) EnsureTable(ctx context.Context, table string) error {
	if err := storage.ValidateTableName(table); err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// InsertContacts bulk-inserts rows with ON CONFLICT (row_hash) DO NOTHING,
// all chunks in one transaction.
func (r *Repo) InsertContacts(ctx context.Context, table string, rows []contacts.Contact) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.ValidateTableName(table); err != nil {
		return 0, err
	}

	var inserted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for start := 0; start < len(rows); start += maxRowsPerInsert {
			end := min(start+maxRowsPerInsert, len(rows))
			sql, args := buildInsertSQL(table, rows[start:end])
			tag, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateSQL(table string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table)
	b.WriteString(" (id BIGSERIAL PRIMARY KEY")
	for _, c := range storage.ContactColumns {
		b.WriteString(", ")
		b.WriteString(pgIdent(c))
		b.WriteString(" TEXT NOT NULL")
		if c == "row_hash" {
			b.WriteString(" UNIQUE")
		}
	}
	b.WriteString(`, "loaded_at" TIMESTAMPTZ NOT NULL DEFAULT now())`)
	return b.String()
}

// buildInsertSQL renders one multi-row INSERT with $n placeholders.
func buildInsertSQL(table string, rows []contacts.Contact) (string, []any) {
	cols := storage.ContactColumns

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	p := 1
	for i, c := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range storage.ContactRow(c) {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, v)
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(` ON CONFLICT ("row_hash") DO NOTHING`)
	return b.String(), args
}
