package extracthtml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// PageParser turns one saved profile page into a JSON-ready object.
type PageParser func(html string) (map[string]any, error)

// StreamFromDir streams a single JSON array to w, emitting one object per
// file, and adding "source_file" to each emitted object.
//
// Files are visited in filename order. Unreadable files and pages the parser
// rejects are skipped.
func StreamFromDir(w io.Writer, dir string, parse PageParser, enc *json.Encoder) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("write [: %w", err)
	}

	first := true
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}

		obj, err := parse(string(b))
		if err != nil || len(obj) == 0 {
			continue
		}
		obj["source_file"] = e.Name()

		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write comma: %w", err)
			}
		}
		first = false
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("write ]: %w", err)
	}
	return nil
}
