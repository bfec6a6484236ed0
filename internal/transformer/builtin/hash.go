// Package builtin contains simple, reusable transformers used by the enricher.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"schoolcontacts/internal/contacts"
)

// Hash computes a deterministic SHA-256 key over every contact column.
//
// Storage backends use it as the dedupe key so re-running an unchanged input
// does not insert duplicates.
//
// Canonical form: "Column=value" components in contacts.Columns order joined
// by Separator. Output is lowercase hex (length 64).
type Hash struct {
	// IncludeFieldNames includes "Column=" in the canonical form so a value
	// moving between columns changes the hash.
	IncludeFieldNames bool

	// Separator between components. If empty, ASCII Unit Separator (0x1f).
	Separator string

	// TrimSpace trims values before hashing.
	TrimSpace bool
}

// DefaultHash is the row hash used by storage.
var DefaultHash = Hash{IncludeFieldNames: true, TrimSpace: true}

// RowHash returns DefaultHash.Sum(c).
func RowHash(c contacts.Contact) string {
	return DefaultHash.Sum(c)
}

// Sum returns the hex hash of c.
func (h Hash) Sum(c contacts.Contact) string {
	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	vals := c.Values()
	var b strings.Builder
	b.Grow(len(vals) * 24)

	for i, v := range vals {
		if i > 0 {
			b.WriteString(sep)
		}
		if h.IncludeFieldNames {
			b.WriteString(contacts.Columns[i])
			b.WriteByte('=')
		}
		if h.TrimSpace && HasEdgeSpace(v) {
			v = strings.TrimSpace(v)
		}
		b.WriteString(v)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
