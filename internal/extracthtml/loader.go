package extracthtml

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schoolcontacts/internal/metrics"
)

// Input describes where HTML should come from.
type Input struct {
	// URL, if provided, is fetched via HTTP GET.
	URL string

	// Stdin is used when URL is empty. If nil, stdin reads as empty.
	Stdin io.Reader
}

// StatusError is returned for non-2xx responses. Error is a single line;
// the body snippet stays in Body for debugging.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("http status %d %s", e.StatusCode, http.StatusText(e.StatusCode)))
}

// Loader fetches or reads HTML with a consistent timeout policy.
type Loader struct {
	client  *http.Client
	timeout time.Duration
}

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
// A timeout <= 0 leaves the deadline to the client.
func NewLoader(client *http.Client, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		client:  client,
		timeout: timeout,
	}
}

// Fetch GETs url and returns the body. It is the per-record fetch step of the
// enricher.
func (l *Loader) Fetch(ctx context.Context, url string) (string, error) {
	return l.Load(ctx, Input{URL: url})
}

// Load returns the HTML source for either stdin (when input.URL is empty)
// or a fetched URL.
//
// On non-2xx HTTP responses, Load returns a *StatusError carrying the status
// code and up to 4KB of the response body.
func (l *Loader) Load(ctx context.Context, input Input) (string, error) {
	if strings.TrimSpace(input.URL) == "" {
		if input.Stdin == nil {
			return "", nil
		}
		b, err := io.ReadAll(input.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		observeRequest("error", start, 0)
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		observeRequest(status, start, len(body))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		observeRequest(status, start, len(b))
		return "", fmt.Errorf("read body: %w", err)
	}
	observeRequest(status, start, len(b))
	return string(b), nil
}

func observeRequest(status string, start time.Time, n int) {
	labels := metrics.Labels{"status": status}
	metrics.IncCounter("enrich_http_requests_total", 1, labels)
	if status == "error" || !strings.HasPrefix(status, "2") {
		metrics.IncCounter("enrich_http_errors_total", 1, labels)
	}
	metrics.ObserveHistogram("enrich_http_request_duration_seconds", time.Since(start).Seconds(), labels)
	metrics.ObserveHistogram("enrich_http_download_bytes", float64(n), labels)
}
