package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"schoolcontacts/internal/contacts"
)

// Normalised header keys of the input table.
const (
	ColumnName       = "name"
	ColumnProfileURL = "profile_url"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Options controls how the input table is read.
type Options struct {
	// Comma is the field delimiter; 0 means ','.
	Comma rune

	// LazyQuotes relaxes quote handling for hand-edited exports.
	LazyQuotes bool

	// Encoding is a WHATWG encoding label (e.g. "windows-1252"). Empty or
	// "utf-8" reads the input as UTF-8.
	Encoding string

	// HeaderMap renames raw header cells before normalisation,
	// e.g. {"School": "name", "Link": "profile_url"}.
	HeaderMap map[string]string
}

// ReadFile opens path and reads its input records.
func ReadFile(path string, opt Options) ([]contacts.InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return ReadInputRecords(f, opt)
}

// ReadInputRecords reads a header row followed by one record per line.
//
// Header cells are trimmed, the UTF-8 BOM is stripped from the first cell,
// and unmapped names are lower-cased with spaces replaced by '_' ("Profile
// URL" becomes "profile_url"). The profile_url column is required; a missing
// name column yields empty names. Short rows read missing cells as "".
// Data cells are kept verbatim, surrounding whitespace included.
func ReadInputRecords(r io.Reader, opt Options) ([]contacts.InputRecord, error) {
	src, err := decodeReader(r, opt.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	nameIx, urlIx := -1, -1
	for i, h := range hdr {
		switch normalizeHeader(h, i, opt.HeaderMap) {
		case ColumnName:
			if nameIx < 0 {
				nameIx = i
			}
		case ColumnProfileURL:
			if urlIx < 0 {
				urlIx = i
			}
		}
	}
	if urlIx < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, ColumnProfileURL)
	}

	var out []contacts.InputRecord
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		line, _ := cr.FieldPos(0)
		out = append(out, contacts.InputRecord{
			Line:       line,
			Name:       cell(rec, nameIx),
			ProfileURL: cell(rec, urlIx),
		})
	}
}

func normalizeHeader(h string, i int, hm map[string]string) string {
	if i == 0 {
		h = strings.TrimPrefix(h, "\uFEFF")
	}
	h = strings.TrimSpace(h)
	if mapped, ok := hm[h]; ok {
		return mapped
	}
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}

func cell(rec []string, ix int) string {
	if ix < 0 || ix >= len(rec) {
		return ""
	}
	return rec[ix]
}

func decodeReader(r io.Reader, label string) (io.Reader, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("input encoding %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
