package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"schoolcontacts/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// newTestBackend returns a backend whose flush loop never fires during the test.
func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()

	b, err := NewBackend(context.Background(), Options{
		JobName:    "test_job",
		Tags:       []string{"service:enrich"},
		FlushEvery: time.Hour,
		clock:      func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func findSeries(p datadogV2.MetricPayload, metric string, tag string) (datadogV2.MetricSeries, bool) {
	for _, s := range p.Series {
		if s.Metric != metric {
			continue
		}
		for _, tg := range s.Tags {
			if tg == tag {
				return s, true
			}
		}
	}
	return datadogV2.MetricSeries{}, false
}

// TestEnvTag verifies environment-tag precedence and defaults.
func TestEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := envTag(); got != tc.want {
				t.Fatalf("envTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestNewBackend_NilContext verifies construction fails without a context.
func TestNewBackend_NilContext(t *testing.T) {
	var ctx context.Context
	_, err := NewBackend(ctx, Options{submitter: &fakeSubmitter{}})
	if err == nil || !strings.Contains(err.Error(), "datadog metrics init:") {
		t.Fatalf("err=%v, want init error", err)
	}
}

// TestFlush_RecordsAndHTTP verifies counters and percentiles end up in one
// payload with the expected tags, and buffers are reset afterwards.
func TestFlush_RecordsAndHTTP(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("enrich_records_total", 3, metrics.Labels{"status": "ok"})
	b.IncCounter("enrich_records_total", 1, metrics.Labels{"status": "failed", "reason": "transport"})
	b.IncCounter("enrich_http_requests_total", 4, metrics.Labels{"status": "200"})
	b.IncCounter("enrich_http_errors_total", 1, metrics.Labels{})
	b.IncCounter("unknown_metric", 1, nil)
	b.IncCounter("enrich_records_total", 0, metrics.Labels{"status": "ok"})
	for _, v := range []float64{0.4, 0.1, 0.2} {
		b.ObserveHistogram("enrich_http_request_duration_seconds", v, metrics.Labels{"status": "200"})
	}
	b.ObserveHistogram("enrich_http_download_bytes", -1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	p, ok := sub.last()
	if !ok {
		t.Fatalf("no payload submitted")
	}

	s, ok := findSeries(p, "enrich.records.total", "reason:transport")
	if !ok || *s.Points[0].Value != 1 {
		t.Fatalf("missing failed records series: %+v", p.Series)
	}
	if s, ok := findSeries(p, "enrich.records.total", "status:ok"); !ok || *s.Points[0].Value != 3 {
		t.Fatalf("missing ok records series")
	}
	if _, ok := findSeries(p, "enrich.http.errors.total", "status:unknown"); !ok {
		t.Fatalf("missing status:unknown default")
	}
	max, ok := findSeries(p, "enrich.http.request_duration_seconds.max", "status:200")
	if !ok || *max.Points[0].Value != 0.4 {
		t.Fatalf("unexpected max series: %+v", max)
	}
	if *max.Points[0].Timestamp != 1700000000 {
		t.Fatalf("timestamp=%d", *max.Points[0].Timestamp)
	}

	wantBase := []string{"job:test_job", "service:enrich"}
	if !reflect.DeepEqual(max.Tags[1:3], wantBase) {
		t.Fatalf("base tags=%v, want env tag then %v", max.Tags, wantBase)
	}

	// Buffers were reset: a second flush submits nothing.
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush (empty): %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("payloads=%d, want 1", sub.count())
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestClose_FinalFlushError verifies Close performs a final flush and
// surfaces the submission error.
func TestClose_FinalFlushError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, sub)

	b.IncCounter("enrich_http_requests_total", 1, metrics.Labels{"status": "500"})
	if err := b.Close(); err == nil || !strings.Contains(err.Error(), "intake down") {
		t.Fatalf("Close err=%v, want intake down", err)
	}
	if sub.count() != 1 {
		t.Fatalf("payloads=%d, want 1", sub.count())
	}
}

func TestNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	tests := map[float64]float64{0: 1, 0.5: 3, 0.9: 5, 1: 5}
	for p, want := range tests {
		if got := nearestRank(s, p); got != want {
			t.Fatalf("p%.2f=%v, want %v", p, got, want)
		}
	}
	if got := nearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty=%v", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod, ,service:enrich ")
	want := []string{"env:prod", "service:enrich"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTagsCSV=%v, want %v", got, want)
	}
	if ParseTagsCSV("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

// TestFlush_SeriesOrder verifies counts come before summaries and both are
// sorted by series name then status, so payloads are stable across flushes.
func TestFlush_SeriesOrder(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.ObserveHistogram("enrich_http_download_bytes", 10, metrics.Labels{"status": "200"})
	b.IncCounter("enrich_records_total", 1, metrics.Labels{"status": "ok"})
	b.IncCounter("enrich_http_requests_total", 1, metrics.Labels{"status": "404"})
	b.IncCounter("enrich_http_requests_total", 1, metrics.Labels{"status": "200"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	p, _ := sub.last()

	var got []string
	for _, s := range p.Series {
		got = append(got, s.Metric+" "+s.Tags[len(s.Tags)-1])
	}
	want := []string{
		"enrich.http.requests.total status:200",
		"enrich.http.requests.total status:404",
		"enrich.records.total status:ok",
		"enrich.http.download_bytes.p50 status:200",
		"enrich.http.download_bytes.p90 status:200",
		"enrich.http.download_bytes.p95 status:200",
		"enrich.http.download_bytes.p99 status:200",
		"enrich.http.download_bytes.max status:200",
		"enrich.http.download_bytes.samples status:200",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("series order:\n got=%v\nwant=%v", got, want)
	}
}
