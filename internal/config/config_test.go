package config

import (
	"strings"
	"testing"
	"time"

	_ "schoolcontacts/internal/storage/all"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// TestLoadFrom_Defaults verifies an empty environment yields Default().
func TestLoadFrom_Defaults(t *testing.T) {
	t.Parallel()

	got, err := LoadFrom(lookupMap(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got != Default() {
		t.Fatalf("got %+v, want %+v", got, Default())
	}
	if got.Delay != time.Second || got.Input != DefaultInput || got.Output != DefaultOutput {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if issues := Validate(got); HasErrors(issues) {
		t.Fatalf("defaults should validate: %+v", issues)
	}
}

// TestLoadFrom_Overrides verifies env values are trimmed and durations parsed.
func TestLoadFrom_Overrides(t *testing.T) {
	t.Parallel()

	got, err := LoadFrom(lookupMap(map[string]string{
		"ENRICH_INPUT":        " in.csv ",
		"ENRICH_OUTPUT":       "out.xlsx",
		"ENRICH_DELAY":        "250ms",
		"ENRICH_TIMEOUT":      "10s",
		"ENRICH_PHONE_REGION": "in",
		"ENRICH_DECODE_EMAIL": "true",
		"ENRICH_BASE_URL":     "",
		"STORAGE_KIND":        "sqlite",
		"STORAGE_DSN":         "file:contacts.db",
		"METRICS_BACKEND":     "datadog",
		"METRICS_TAGS":        "service:enrich",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Input != "in.csv" || got.Output != "out.xlsx" {
		t.Fatalf("paths: %+v", got)
	}
	if got.Delay != 250*time.Millisecond || got.Timeout != 10*time.Second {
		t.Fatalf("durations: delay=%v timeout=%v", got.Delay, got.Timeout)
	}
	if got.PhoneRegion != "in" {
		t.Fatalf("PhoneRegion=%q", got.PhoneRegion)
	}
	if !got.DecodeEmail {
		t.Fatalf("DecodeEmail not set")
	}
	if got.BaseURL != "" {
		t.Fatalf("explicitly empty base URL should be kept, got %q", got.BaseURL)
	}
	if got.StorageKind != "sqlite" || got.StorageTable != "school_contacts" {
		t.Fatalf("storage: %+v", got)
	}
}

// TestLoadFrom_BadValues verifies the offending variable is named.
func TestLoadFrom_BadValues(t *testing.T) {
	t.Parallel()

	_, err := LoadFrom(lookupMap(map[string]string{"ENRICH_DELAY": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "ENRICH_DELAY") {
		t.Fatalf("expected ENRICH_DELAY error, got %v", err)
	}

	_, err = LoadFrom(lookupMap(map[string]string{"ENRICH_DECODE_EMAIL": "maybe"}))
	if err == nil || !strings.Contains(err.Error(), "ENRICH_DECODE_EMAIL") {
		t.Fatalf("expected ENRICH_DECODE_EMAIL error, got %v", err)
	}
}

// TestValidate covers error and warning findings.
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		path     string
		severity Severity
	}{
		{name: "empty_input", mutate: func(c *Config) { c.Input = "" }, path: "input", severity: SeverityError},
		{name: "bad_format", mutate: func(c *Config) { c.Format = "json" }, path: "format", severity: SeverityError},
		{name: "odd_extension", mutate: func(c *Config) { c.Output = "out.txt" }, path: "output", severity: SeverityWarning},
		{name: "base_url", mutate: func(c *Config) { c.BaseURL = "ftp://x" }, path: "base_url", severity: SeverityError},
		{name: "negative_delay", mutate: func(c *Config) { c.Delay = -time.Second }, path: "delay", severity: SeverityError},
		{name: "zero_delay", mutate: func(c *Config) { c.Delay = 0 }, path: "delay", severity: SeverityWarning},
		{name: "empty_selector", mutate: func(c *Config) { c.TableSelector = " " }, path: "table_selector", severity: SeverityError},
		{name: "unknown_storage", mutate: func(c *Config) { c.StorageKind = "oracle"; c.StorageDSN = "x" }, path: "storage.kind", severity: SeverityError},
		{name: "missing_dsn", mutate: func(c *Config) { c.StorageKind = "sqlite" }, path: "storage.dsn", severity: SeverityError},
		{name: "bad_table", mutate: func(c *Config) { c.StorageKind = "sqlite"; c.StorageDSN = "x"; c.StorageTable = "a;drop" }, path: "storage.table", severity: SeverityError},
		{name: "unknown_metrics", mutate: func(c *Config) { c.MetricsBackend = "statsd" }, path: "metrics.backend", severity: SeverityWarning},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := Default()
			tc.mutate(&c)
			issues := Validate(c)
			if len(issues) != 1 {
				t.Fatalf("want exactly one issue, got %+v", issues)
			}
			if issues[0].Path != tc.path || issues[0].Severity != tc.severity {
				t.Fatalf("issue=%+v, want %s at %s", issues[0], tc.severity, tc.path)
			}
			if HasErrors(issues) != (tc.severity == SeverityError) {
				t.Fatalf("HasErrors mismatch for %+v", issues)
			}
		})
	}
}
