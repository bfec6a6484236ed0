// Package output writes the enriched contact table.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"schoolcontacts/internal/contacts"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet used for xlsx output.
const SheetName = "contacts"

// ResolveFormat returns format, or the format implied by path's extension
// when format is empty. Unknown extensions default to csv.
func ResolveFormat(path, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			return FormatXLSX, nil
		}
		return FormatCSV, nil
	}
	switch format {
	case FormatCSV, FormatXLSX:
		return format, nil
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

// Write replaces path with a table of rows. The header is always
// contacts.Columns.
func Write(path, format string, rows []contacts.Contact) error {
	format, err := ResolveFormat(path, format)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return writeXLSX(path, rows)
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows []contacts.Contact) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(contacts.Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range rows {
		if err := w.Write(c.Values()); err != nil {
			_ = f.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func writeXLSX(path string, rows []contacts.Contact) error {
	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName(x.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	put := func(r int, vals []string) error {
		for c, v := range vals {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := x.SetCellStr(SheetName, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := put(0, contacts.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, c := range rows {
		if err := put(i+1, c.Values()); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := x.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
