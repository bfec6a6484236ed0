// Package contacts turns school listing rows into contact records by reading
// each school's profile page.
package contacts

import (
	"errors"
	"fmt"
)

// InputRecord is one row of the input table.
type InputRecord struct {
	Line       int // 1-based line in the input file, 0 if unknown
	Name       string
	ProfileURL string
}

// Field names one column of the output table.
type Field int

const (
	FieldNone Field = iota
	FieldSchoolName
	FieldFullURL
	FieldAddress
	FieldCity
	FieldDistrict
	FieldState
	FieldPhone
	FieldEmail
	FieldWebsite
)

// Columns is the output header, in order.
var Columns = []string{
	"School Name",
	"Full URL",
	"Address",
	"City",
	"District",
	"State",
	"Phone",
	"Email",
	"Website",
}

// Contact is the enriched record for one school. The zero value has every
// field empty.
type Contact struct {
	SchoolName string `json:"school_name"`
	FullURL    string `json:"full_url"`
	Address    string `json:"address"`
	City       string `json:"city"`
	District   string `json:"district"`
	State      string `json:"state"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Website    string `json:"website"`
}

// Values returns the fields in Columns order.
func (c Contact) Values() []string {
	return []string{
		c.SchoolName,
		c.FullURL,
		c.Address,
		c.City,
		c.District,
		c.State,
		c.Phone,
		c.Email,
		c.Website,
	}
}

func (c *Contact) ptr(f Field) *string {
	switch f {
	case FieldSchoolName:
		return &c.SchoolName
	case FieldFullURL:
		return &c.FullURL
	case FieldAddress:
		return &c.Address
	case FieldCity:
		return &c.City
	case FieldDistrict:
		return &c.District
	case FieldState:
		return &c.State
	case FieldPhone:
		return &c.Phone
	case FieldEmail:
		return &c.Email
	case FieldWebsite:
		return &c.Website
	}
	return nil
}

// Get returns the value of f, or "" for FieldNone.
func (c *Contact) Get(f Field) string {
	if p := c.ptr(f); p != nil {
		return *p
	}
	return ""
}

// Set overwrites f. Setting FieldNone is a no-op.
func (c *Contact) Set(f Field, v string) {
	if p := c.ptr(f); p != nil {
		*p = v
	}
}

// Reason classifies why a record was dropped.
type Reason string

const (
	ReasonURLResolution Reason = "url_resolution"
	ReasonTransport     Reason = "transport"
	ReasonParse         Reason = "parse"
)

// ErrMissingProfileURL is the url_resolution cause for an empty Profile URL.
var ErrMissingProfileURL = errors.New("missing profile url")

// Failure is a dropped record.
type Failure struct {
	Reason Reason
	Line   int
	URL    string // resolved URL, or the raw Profile URL when resolution failed
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is the outcome for one input record: Failure is nil on success.
type Result struct {
	Contact Contact
	Failure *Failure
}

// OK reports whether the record produced a contact.
func (r Result) OK() bool { return r.Failure == nil }
