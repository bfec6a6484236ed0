// Package datadog submits enrichment metrics to Datadog.
//
// Counters and samples accumulate in a window that is submitted every
// FlushEvery (one minute by default) and once more by Close. Only the metric
// names listed in counterSeries and summarySeries are kept; anything else
// recorded through internal/metrics is dropped here.
package datadog

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"schoolcontacts/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options configures a Backend.
type Options struct {
	// JobName is sent as tag "job:<name>"; "school_contacts" when empty.
	JobName string

	// Tags are appended to every series, e.g. "service:enrich".
	Tags []string

	// FlushEvery is the submit interval; 60s when <= 0.
	FlushEvery time.Duration

	clock     func() time.Time
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of *datadogV2.MetricsApi we call.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Internal metric name -> Datadog series name.
var (
	counterSeries = map[string]string{
		"enrich_records_total":       "enrich.records.total",
		"enrich_http_requests_total": "enrich.http.requests.total",
		"enrich_http_errors_total":   "enrich.http.errors.total",
	}
	summarySeries = map[string]string{
		"enrich_http_request_duration_seconds": "enrich.http.request_duration_seconds",
		"enrich_http_download_bytes":           "enrich.http.download_bytes",
	}
)

// quantiles are emitted as gauges "<series>.p50" and so on.
var quantiles = []struct {
	suffix string
	q      float64
}{
	{".p50", 0.50},
	{".p90", 0.90},
	{".p95", 0.95},
	{".p99", 0.99},
}

type seriesKey struct {
	series string
	status string
	reason string
}

func compareKeys(a, b seriesKey) int {
	return cmp.Or(
		cmp.Compare(a.series, b.series),
		cmp.Compare(a.status, b.status),
		cmp.Compare(a.reason, b.reason),
	)
}

// window holds everything recorded since the last flush.
type window struct {
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

func newWindow() *window {
	return &window{
		counts:  make(map[seriesKey]float64),
		samples: make(map[seriesKey][]float64),
	}
}

func (w *window) empty() bool { return len(w.counts) == 0 && len(w.samples) == 0 }

// Backend implements metrics.Backend.
type Backend struct {
	api      metricsSubmitter
	apiCtx   context.Context
	tags     []string
	clock    func() time.Time
	stopLoop context.CancelFunc
	loopDone chan struct{}

	mu  sync.Mutex
	cur *window
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend starts a backend that submits through the official client.
// DD_API_KEY and DD_SITE are read by the client itself.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, errors.New("datadog metrics init: nil context")
	}

	job := cmp.Or(opts.JobName, "school_contacts")
	every := opts.FlushEvery
	if every <= 0 {
		every = time.Minute
	}

	b := &Backend{
		api:      opts.submitter,
		apiCtx:   dd.NewDefaultContext(parent),
		tags:     append([]string{envTag(), "job:" + job}, opts.Tags...),
		clock:    opts.clock,
		loopDone: make(chan struct{}),
		cur:      newWindow(),
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	loopCtx, stop := context.WithCancel(context.Background())
	b.stopLoop = stop
	go b.flushLoop(loopCtx, every)
	return b, nil
}

func (b *Backend) flushLoop(ctx context.Context, every time.Duration) {
	defer close(b.loopDone)

	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			_ = b.Flush()
		}
	}
}

// Close stops periodic submission and flushes what is left. Call it once.
func (b *Backend) Close() error {
	b.stopLoop()
	<-b.loopDone
	return b.Flush()
}

func keyFor(series string, labels metrics.Labels) seriesKey {
	return seriesKey{
		series: series,
		status: cmp.Or(labels["status"], "unknown"),
		reason: labels["reason"],
	}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	series, ok := counterSeries[name]
	if !ok || delta <= 0 {
		return
	}
	k := keyFor(series, labels)

	b.mu.Lock()
	b.cur.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	series, ok := summarySeries[name]
	if !ok || value < 0 {
		return
	}
	k := keyFor(series, labels)

	b.mu.Lock()
	b.cur.samples[k] = append(b.cur.samples[k], value)
	b.mu.Unlock()
}

// Flush submits the current window and starts a new one. The window is
// discarded even if submission fails.
func (b *Backend) Flush() error {
	b.mu.Lock()
	w := b.cur
	b.cur = newWindow()
	b.mu.Unlock()

	if w.empty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.series(w, b.clock().Unix())}
	_, _, err := b.api.SubmitMetrics(b.apiCtx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// series renders w as counts first, then summaries, each in key order.
func (b *Backend) series(w *window, ts int64) []datadogV2.MetricSeries {
	var out []datadogV2.MetricSeries
	point := func(name string, typ datadogV2.MetricIntakeType, v float64, tags []string) {
		out = append(out, datadogV2.MetricSeries{
			Metric: name,
			Type:   typ.Ptr(),
			Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
			Tags:   tags,
		})
	}

	counts := slices.SortedFunc(maps.Keys(w.counts), compareKeys)
	for _, k := range counts {
		point(k.series, datadogV2.METRICINTAKETYPE_COUNT, w.counts[k], b.tagsFor(k))
	}

	summaries := slices.SortedFunc(maps.Keys(w.samples), compareKeys)
	for _, k := range summaries {
		vals := w.samples[k]
		slices.Sort(vals)
		tags := b.tagsFor(k)
		for _, q := range quantiles {
			point(k.series+q.suffix, datadogV2.METRICINTAKETYPE_GAUGE, nearestRank(vals, q.q), tags)
		}
		point(k.series+".max", datadogV2.METRICINTAKETYPE_GAUGE, vals[len(vals)-1], tags)
		point(k.series+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(vals)), tags)
	}
	return out
}

func (b *Backend) tagsFor(k seriesKey) []string {
	tags := slices.Concat(b.tags, []string{"status:" + k.status})
	if k.reason != "" {
		tags = append(tags, "reason:"+k.reason)
	}
	return tags
}

// nearestRank returns the q-quantile of sorted, rounding the rank to the
// closest index.
func nearestRank(sorted []float64, q float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	return sorted[min(int(q*float64(n-1)+0.5), n-1)]
}

// envTag prefers ENV over DD_ENV.
func envTag() string {
	for _, name := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

// ParseTagsCSV splits "env:prod,service:enrich" into tags, skipping blanks.
func ParseTagsCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
