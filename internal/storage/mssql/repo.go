package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// SQL Server has no INSERT ... ON CONFLICT; each row is inserted with a
// NOT EXISTS guard on row_hash inside one transaction.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

// InsertContacts inserts rows not already present by row_hash.
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

	q := buildInsertSQL(table)
	var inserted int64
	for _, c := range rows {
		res, err := tx.ExecContext(ctx, q, storage.ContactRow(c)...)
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

func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func buildCreateSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (", table, table)
	b.WriteString("[id] BIGINT IDENTITY(1,1) PRIMARY KEY")
	for _, c := range storage.ContactColumns {
		b.WriteString(", ")
		b.WriteString(msIdent(c))
		if c == "row_hash" {
			b.WriteString(" CHAR(64) NOT NULL UNIQUE")
			continue
		}
		b.WriteString(" NVARCHAR(MAX) NOT NULL")
	}
	b.WriteString(", [loaded_at] DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME())")
	return b.String()
}

// buildInsertSQL renders an INSERT ... SELECT guarded by NOT EXISTS. The
// row_hash is the last bind parameter.
func buildInsertSQL(table string) string {
	cols := storage.ContactColumns
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = msIdent(c)
		params[i] = fmt.Sprintf("@p%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE [row_hash] = @p%d)",
		table, strings.Join(names, ", "), strings.Join(params, ", "), table, len(cols),
	)
}
