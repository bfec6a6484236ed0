// Package config holds the runtime configuration of the school_contacts
// command. Values come from the environment (a .env file is loaded by the
// command) and may be overridden by flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/extracthtml"
	"schoolcontacts/internal/output"
	"schoolcontacts/internal/storage"
)

// Defaults.
const (
	DefaultInput          = "dehradun_schools_detailed.csv"
	DefaultOutput         = "school_contact_details.csv"
	DefaultJob            = "school_contacts"
	DefaultMetricsBackend = "none"
)

// Config is the full runtime configuration.
type Config struct {
	Input         string
	Output        string
	Format        string // "", "csv" or "xlsx"
	BaseURL       string
	Delay         time.Duration // 0 disables the pause
	Timeout       time.Duration // <= 0 means no per-request deadline
	TableSelector string
	InputEncoding string
	PhoneRegion   string // e.g. "IN"; empty keeps phones as scraped
	DecodeEmail   bool   // recover emails hidden in inline scripts

	StorageKind  string // empty disables the database sink
	StorageDSN   string
	StorageTable string

	MetricsBackend string // "none" or "datadog"
	MetricsTags    string
	MetricsJob     string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Input:          DefaultInput,
		Output:         DefaultOutput,
		BaseURL:        contacts.DefaultBaseURL,
		Delay:          contacts.DefaultDelay,
		TableSelector:  extracthtml.DefaultTableSelector,
		StorageTable:   storage.DefaultTable,
		MetricsBackend: DefaultMetricsBackend,
		MetricsJob:     DefaultJob,
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup, falling back to Default
// for unset variables. Set-but-empty string variables override the default.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	c := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENRICH_INPUT", &c.Input)
	str("ENRICH_OUTPUT", &c.Output)
	str("ENRICH_FORMAT", &c.Format)
	str("ENRICH_BASE_URL", &c.BaseURL)
	str("ENRICH_TABLE_SELECTOR", &c.TableSelector)
	str("ENRICH_INPUT_ENCODING", &c.InputEncoding)
	str("ENRICH_PHONE_REGION", &c.PhoneRegion)
	str("STORAGE_KIND", &c.StorageKind)
	str("STORAGE_DSN", &c.StorageDSN)
	str("STORAGE_TABLE", &c.StorageTable)
	str("METRICS_BACKEND", &c.MetricsBackend)
	str("METRICS_TAGS", &c.MetricsTags)
	str("METRICS_JOB", &c.MetricsJob)

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"ENRICH_DELAY", &c.Delay},
		{"ENRICH_TIMEOUT", &c.Timeout},
	} {
		v, ok := lookup(d.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("ENRICH_DECODE_EMAIL"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("ENRICH_DECODE_EMAIL: %w", err)
		}
		c.DecodeEmail = b
	}

	return c, nil
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path names the offending setting.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Validate reports every problem with c. Errors make the configuration
// unusable; warnings do not.
func Validate(c Config) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if c.Input == "" {
		add(SeverityError, "input", "must not be empty")
	}
	if c.Output == "" {
		add(SeverityError, "output", "must not be empty")
	} else if format, err := output.ResolveFormat(c.Output, c.Format); err != nil {
		add(SeverityError, "format", "%v", err)
	} else if c.Format == "" && format == output.FormatCSV && !strings.EqualFold(filepath.Ext(c.Output), ".csv") {
		add(SeverityWarning, "output", "extension of %q is not .csv or .xlsx; writing csv", c.Output)
	}

	if !strings.HasPrefix(c.BaseURL, "http") {
		add(SeverityError, "base_url", "must start with http: %q", c.BaseURL)
	}
	if c.Delay < 0 {
		add(SeverityError, "delay", "must not be negative: %s", c.Delay)
	} else if c.Delay == 0 {
		add(SeverityWarning, "delay", "no pause between requests")
	}
	if strings.TrimSpace(c.TableSelector) == "" {
		add(SeverityError, "table_selector", "must not be empty")
	}

	if c.StorageKind != "" {
		if !slices.Contains(storage.Kinds(), c.StorageKind) {
			add(SeverityError, "storage.kind", "unknown backend %q (have %v)", c.StorageKind, storage.Kinds())
		}
		if c.StorageDSN == "" {
			add(SeverityError, "storage.dsn", "required when storage.kind is set")
		}
		if err := storage.ValidateTableName(c.StorageTable); err != nil {
			add(SeverityError, "storage.table", "%v", err)
		}
	}

	switch c.MetricsBackend {
	case "", "none", "datadog":
	default:
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics disabled", c.MetricsBackend)
	}

	return issues
}

// HasErrors reports whether issues contains an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
