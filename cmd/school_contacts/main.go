// Command school_contacts enriches a table of school profile links with the
// contact details published on each profile page.
//
// Usage:
//
//	school_contacts -input dehradun_schools_detailed.csv -output school_contact_details.csv
//
// Every flag defaults to its environment variable (see internal/config); a
// .env file in the working directory is loaded first.
//
// Load into a database as well:
//
//	school_contacts -storage-kind sqlite -storage-dsn "file:contacts.db"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"schoolcontacts/internal/config"
	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/extracthtml"
	"schoolcontacts/internal/metrics"
	"schoolcontacts/internal/metrics/datadog"
	"schoolcontacts/internal/output"
	parsercsv "schoolcontacts/internal/parser/csv"
	"schoolcontacts/internal/storage"
	"schoolcontacts/internal/transformer"
	"schoolcontacts/internal/transformer/builtin"

	// register all backends with the storage factory.
	_ "schoolcontacts/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, http.DefaultClient)
	stop()
	os.Exit(code)
}

// run is split out from main so the command can be tested without spawning
// a process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer, httpClient *http.Client) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("school_contacts", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.Input, "input", cfg.Input, "input CSV with Name and Profile URL columns (env ENRICH_INPUT)")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "output file (env ENRICH_OUTPUT)")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "output format: csv or xlsx; empty picks by extension (env ENRICH_FORMAT)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "origin prepended to relative profile URLs (env ENRICH_BASE_URL)")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "pause after each record; 0 disables (env ENRICH_DELAY)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout; 0 means none (env ENRICH_TIMEOUT)")
	fs.StringVar(&cfg.TableSelector, "selector", cfg.TableSelector, "CSS selector of the contact table (env ENRICH_TABLE_SELECTOR)")
	fs.StringVar(&cfg.InputEncoding, "encoding", cfg.InputEncoding, "input charset label, e.g. windows-1252 (env ENRICH_INPUT_ENCODING)")
	fs.StringVar(&cfg.PhoneRegion, "phone-region", cfg.PhoneRegion, "normalise phones to E.164 for this region, e.g. IN (env ENRICH_PHONE_REGION)")
	fs.BoolVar(&cfg.DecodeEmail, "decode-email", cfg.DecodeEmail, "recover emails hidden in inline scripts (env ENRICH_DECODE_EMAIL)")
	fs.StringVar(&cfg.StorageKind, "storage-kind", cfg.StorageKind, "also load into sqlite, postgres or mssql (env STORAGE_KIND)")
	fs.StringVar(&cfg.StorageDSN, "storage-dsn", cfg.StorageDSN, "database DSN (env STORAGE_DSN)")
	fs.StringVar(&cfg.StorageTable, "storage-table", cfg.StorageTable, "database table (env STORAGE_TABLE)")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", cfg.MetricsBackend, "metrics backend: none or datadog (env METRICS_BACKEND)")
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := log.New(io.Discard, "", log.LstdFlags)
	if *verbose {
		logger.SetOutput(stderr)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid\n")
		return 2
	}
	if *validate {
		fmt.Fprintf(stdout, "configuration is valid\n")
		return 0
	}

	closeMetrics := setupMetrics(ctx, cfg, stderr, logger)
	defer closeMetrics()

	start := time.Now()

	recs, err := parsercsv.ReadFile(cfg.Input, parsercsv.Options{Encoding: cfg.InputEncoding})
	if err != nil {
		fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	logger.Printf("input: %d records from %s", len(recs), cfg.Input)

	delay := cfg.Delay
	if delay == 0 {
		delay = -1
	}
	enricher := contacts.NewEnricher(extracthtml.NewLoader(httpClient, cfg.Timeout), contacts.Options{
		BaseURL:           cfg.BaseURL,
		TableSelector:     cfg.TableSelector,
		Delay:             delay,
		DecodeScriptEmail: cfg.DecodeEmail,
		OnFailure: func(f *contacts.Failure) {
			fmt.Fprintf(stderr, "Failed to fetch %s: %v\n", f.URL, f.Err)
		},
	})

	rows, failures, err := enricher.Run(ctx, recs)
	if err != nil {
		fmt.Fprintf(stderr, "enrich: %v\n", err)
		return 1
	}
	logger.Printf("enrich: ok=%d failed=%d", len(rows), len(failures))

	rows = transformer.Chain{builtin.Phone{Region: cfg.PhoneRegion}}.Apply(rows)

	if err := output.Write(cfg.Output, cfg.Format, rows); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}

	if cfg.StorageKind != "" {
		if err := load(ctx, cfg, rows, logger); err != nil {
			fmt.Fprintf(stderr, "storage: %v\n", err)
			return 1
		}
	}

	logger.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	fmt.Fprintf(stdout, "Contact info saved to %s\n", cfg.Output)
	return 0
}

// load inserts rows into the configured database table.
func load(ctx context.Context, cfg config.Config, rows []contacts.Contact, logger *log.Logger) error {
	repo, err := storage.New(ctx, storage.Config{Kind: cfg.StorageKind, DSN: cfg.StorageDSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx, cfg.StorageTable); err != nil {
		return err
	}
	n, err := repo.InsertContacts(ctx, cfg.StorageTable, rows)
	if err != nil {
		return err
	}
	logger.Printf("storage: kind=%s table=%s inserted=%d of %d", cfg.StorageKind, cfg.StorageTable, n, len(rows))
	return nil
}

// closingBackend is a metrics backend with a final flush.
type closingBackend interface {
	metrics.Backend
	Close() error
}

// newDatadogBackend is swapped in tests.
var newDatadogBackend = func(ctx context.Context, opts datadog.Options) (closingBackend, error) {
	b, err := datadog.NewBackend(ctx, opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// setupMetrics installs the configured metrics backend and returns its
// shutdown function. Init failures fall back to the nop backend and are
// reported on stderr regardless of -v.
func setupMetrics(ctx context.Context, cfg config.Config, stderr io.Writer, logger *log.Logger) func() {
	switch cfg.MetricsBackend {
	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.MetricsTags)
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    cfg.MetricsJob,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			fmt.Fprintf(stderr, "metrics: failed to init datadog backend: %v; using nop\n", err)
			return func() {}
		}
		logger.Printf("metrics: backend=datadog job_name=%v tags=%v", cfg.MetricsJob, tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				fmt.Fprintf(stderr, "metrics: datadog close/flush error: %v\n", err)
			}
			metrics.SetBackend(nil)
		}

	case "", "none":
		logger.Printf("metrics: disabled")

	default:
		logger.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
	}
	return func() {}
}
