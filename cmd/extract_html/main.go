// Command extract-html parses school profile pages (from stdin, a URL, or a
// directory of saved files) and prints the extracted contact as JSON.
//
// Usage (stdin):
//
//	cat doon.html | extract-html
//
// Usage (fetch URL):
//
//	extract-html -url "https://www.euttaranchal.com/education/doon-school.php"
//
// Usage (directory mode, one object per file):
//
//	extract-html -dir "./pages"
//
// Debug (print outer HTML blocks):
//
//	cat doon.html | extract-html -selector "table#tbl-edu-meta tr"
//
// Debug (print text for selector matches):
//
//	cat doon.html | extract-html -selector "table#tbl-edu-meta td" -text
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/extracthtml"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// run is split out from main so we can unit test the command without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("extract-html", flag.ContinueOnError)
	fs.SetOutput(stderr)

	onlyText := fs.Bool("text", false, "Debug: print text blocks for -selector matches (not JSON)")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for (not JSON)")
	tableSelector := fs.String("table", extracthtml.DefaultTableSelector, "CSS selector of the contact table")
	urlFlag := fs.String("url", "", "Optional: fetch HTML from URL instead of stdin")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")
	decodeEmail := fs.Bool("decode-email", false, "Recover emails hidden in inline scripts")
	dirFlag := fs.String("dir", "", "Optional: directory containing saved profile pages (one record per file)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *urlFlag != "" && *dirFlag != "" {
		fmt.Fprintf(stderr, "-url and -dir are mutually exclusive\n")
		return 2
	}

	loader := extracthtml.NewLoader(httpClient, *timeout)

	rules := contacts.DefaultRules
	if *decodeEmail {
		rules = contacts.WithScriptEmail(rules)
	}

	if *debugSelector != "" {
		html, err := loader.Load(ctx, extracthtml.Input{URL: *urlFlag, Stdin: stdin})
		if err != nil {
			fmt.Fprintf(stderr, "load html: %v\n", err)
			return 1
		}
		if err := extracthtml.DebugPrintSelector(stdout, html, *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)

	// Directory mode: stream output as a single JSON array.
	if *dirFlag != "" {
		parse := func(html string) (map[string]any, error) {
			c, err := contacts.ParsePage(html, *tableSelector, rules)
			if err != nil {
				return nil, err
			}
			return contactObject(c), nil
		}
		if err := extracthtml.StreamFromDir(stdout, *dirFlag, parse, enc); err != nil {
			fmt.Fprintf(stderr, "dir extract: %v\n", err)
			return 1
		}
		return 0
	}

	html, err := loader.Load(ctx, extracthtml.Input{URL: *urlFlag, Stdin: stdin})
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}

	c, err := contacts.ParsePage(html, *tableSelector, rules)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}
	c.FullURL = *urlFlag

	if err := enc.Encode(c); err != nil {
		fmt.Fprintf(stderr, "encode json: %v\n", err)
		return 1
	}
	return 0
}

// contactObject keys the page fields of c by their JSON names. School name
// and URL are not on the page and are left out.
func contactObject(c contacts.Contact) map[string]any {
	return map[string]any{
		"address":  c.Address,
		"city":     c.City,
		"district": c.District,
		"state":    c.State,
		"phone":    c.Phone,
		"email":    c.Email,
		"website":  c.Website,
	}
}
