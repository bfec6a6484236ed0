package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// loaded_at is stored as RFC3339 text; SQLite has no timestamp type.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens cfg.DSN (a file path or "file:" URI) and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable creates the contact table if needed.
func (r *Repo) EnsureTable(ctx context.Context, table string) error {
	if err := storage.ValidateTableName(table); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// InsertContacts inserts rows in one transaction using INSERT OR IGNORE on
// the unique row_hash.
func (r *Repo) InsertContacts(ctx context.Context, table string, rows []contacts.Contact) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.ValidateTableName(table); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, c := range rows {
		res, err := stmt.ExecContext(ctx, storage.ContactRow(c)...)
		if err != nil {
			return 0, fmt.Errorf("insert %q: %w", c.FullURL, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateSQL(table string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table)
	b.WriteString(" (id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range storage.ContactColumns {
		b.WriteString(", ")
		b.WriteString(sqlIdent(c))
		b.WriteString(" TEXT NOT NULL")
		if c == "row_hash" {
			b.WriteString(" UNIQUE")
		}
	}
	b.WriteString(`, "loaded_at" TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')))`)
	return b.String()
}

func buildInsertSQL(table string) string {
	cols := make([]string, len(storage.ContactColumns))
	ph := make([]string, len(storage.ContactColumns))
	for i, c := range storage.ContactColumns {
		cols[i] = sqlIdent(c)
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "))
}
