package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/storage"
)

func openTemp(t *testing.T) storage.Repository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "contacts.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

// TestInsertContacts_Idempotent verifies a second load of the same contacts
// inserts nothing.
func TestInsertContacts_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTemp(t)

	if err := repo.EnsureTable(ctx, storage.DefaultTable); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// EnsureTable is create-if-not-exists.
	if err := repo.EnsureTable(ctx, storage.DefaultTable); err != nil {
		t.Fatalf("EnsureTable (again): %v", err)
	}

	rows := []contacts.Contact{
		{SchoolName: "A", FullURL: "https://x/a", City: "Dehradun"},
		{SchoolName: "B", FullURL: "https://x/b"},
		{SchoolName: "A", FullURL: "https://x/a", City: "Dehradun"},
	}

	n, err := repo.InsertContacts(ctx, storage.DefaultTable, rows)
	if err != nil {
		t.Fatalf("InsertContacts: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted=%d, want 2 (duplicate within batch skipped)", n)
	}

	n, err = repo.InsertContacts(ctx, storage.DefaultTable, rows)
	if err != nil {
		t.Fatalf("InsertContacts (again): %v", err)
	}
	if n != 0 {
		t.Fatalf("re-run inserted=%d, want 0", n)
	}

	var city string
	db := repo.(*Repo).db
	if err := db.QueryRowContext(ctx, `SELECT city FROM school_contacts WHERE school_name = 'A'`).Scan(&city); err != nil {
		t.Fatalf("select: %v", err)
	}
	if city != "Dehradun" {
		t.Fatalf("city=%q", city)
	}
}

// TestInvalidTableName verifies table names are validated before use.
func TestInvalidTableName(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	if err := repo.EnsureTable(context.Background(), "x; DROP TABLE y"); err == nil {
		t.Fatalf("expected invalid table name error")
	}
	if _, err := repo.InsertContacts(context.Background(), "1bad", []contacts.Contact{{}}); err == nil {
		t.Fatalf("expected invalid table name error")
	}
}

func TestBuildSQL(t *testing.T) {
	t.Parallel()

	ddl := buildCreateSQL("school_contacts")
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS school_contacts") ||
		!strings.Contains(ddl, `"row_hash" TEXT NOT NULL UNIQUE`) {
		t.Fatalf("unexpected ddl: %q", ddl)
	}

	ins := buildInsertSQL("school_contacts")
	if !strings.HasPrefix(ins, "INSERT OR IGNORE INTO school_contacts") || strings.Count(ins, "?") != len(storage.ContactColumns) {
		t.Fatalf("unexpected insert: %q", ins)
	}
}
