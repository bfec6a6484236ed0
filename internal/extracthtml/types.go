package extracthtml

import (
	"errors"
	"fmt"
)

// DefaultTableSelector identifies the contact table on a profile page.
const DefaultTableSelector = "table#tbl-edu-meta"

// TableRow is one <tr> of the contact table.
type TableRow struct {
	Text    string   // stripped text of the second cell
	Classes []string // class tokens of the row's first <i> element
	Script  string   // inline script found in the second cell, if any
}

// ErrTableNotFound is returned when the page has no contact table.
var ErrTableNotFound = errors.New("contact table not found")

// RowError reports a contact table row that lacks the value cell or the icon.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}
