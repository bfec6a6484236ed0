package storage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/transformer/builtin"
)

// DefaultTable is the table contacts are loaded into when none is configured.
const DefaultTable = "school_contacts"

// ContactColumns are the table columns, in insert order. row_hash is the
// dedupe key (see builtin.RowHash).
var ContactColumns = []string{
	"school_name",
	"full_url",
	"address",
	"city",
	"district",
	"state",
	"phone",
	"email",
	"website",
	"row_hash",
}

// Config is the minimal configuration needed to create a repository.
//
// Kind must match a registered backend ("sqlite", "postgres", "mssql"). DSN
// is passed through to the backend.
type Config struct {
	Kind string
	DSN  string
}

// Repository loads enriched contacts into a database.
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureTable creates table if it does not exist, with a unique row_hash.
	EnsureTable(ctx context.Context, table string) error

	// InsertContacts inserts rows and returns how many were new. Rows whose
	// row_hash already exists are skipped, so re-runs are idempotent.
	InsertContacts(ctx context.Context, table string, rows []contacts.Contact) (int64, error)
}

// ContactRow returns the insert values of c matching ContactColumns.
func ContactRow(c contacts.Contact) []any {
	vals := c.Values()
	out := make([]any, 0, len(vals)+1)
	for _, v := range vals {
		out = append(out, v)
	}
	return append(out, builtin.RowHash(c))
}

var reTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName rejects names that would need quoting. Table names are
// interpolated into DDL, so they are restricted to [schema.]identifier.
func ValidateTableName(name string) error {
	if !reTableName.MatchString(name) {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	return nil
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under kind. Call it from a backend's init().
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
