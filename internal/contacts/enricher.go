package contacts

import (
	"context"
	"time"

	"schoolcontacts/internal/metrics"
)

const (
	// DefaultBaseURL is prepended to site-relative profile URLs.
	DefaultBaseURL = "https://www.euttaranchal.com"

	// DefaultDelay is the pause after each record.
	DefaultDelay = time.Second
)

// Fetcher downloads one profile page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options configures an Enricher. Zero values select the defaults.
type Options struct {
	BaseURL       string
	TableSelector string
	Rules         []Rule

	// DecodeScriptEmail enables email recovery from inline scripts on top
	// of Rules (see WithScriptEmail).
	DecodeScriptEmail bool

	// Delay is slept after every record, whether it succeeded or not.
	// A negative Delay disables the pause.
	Delay time.Duration

	// OnFailure, if set, is called once for every dropped record.
	OnFailure func(*Failure)

	// sleep is a test seam; production uses sleepCtx.
	sleep func(ctx context.Context, d time.Duration)
}

// Enricher fetches and parses profile pages one record at a time.
type Enricher struct {
	fetcher       Fetcher
	baseURL       string
	tableSelector string
	rules         []Rule
	delay         time.Duration
	onFailure     func(*Failure)
	sleep         func(ctx context.Context, d time.Duration)
}

// NewEnricher builds an Enricher around f.
func NewEnricher(f Fetcher, opts Options) *Enricher {
	e := &Enricher{
		fetcher:       f,
		baseURL:       opts.BaseURL,
		tableSelector: opts.TableSelector,
		rules:         opts.Rules,
		delay:         opts.Delay,
		onFailure:     opts.OnFailure,
		sleep:         opts.sleep,
	}
	if e.baseURL == "" {
		e.baseURL = DefaultBaseURL
	}
	if e.rules == nil {
		e.rules = DefaultRules
	}
	if opts.DecodeScriptEmail {
		e.rules = WithScriptEmail(e.rules)
	}
	if e.delay == 0 {
		e.delay = DefaultDelay
	}
	if e.sleep == nil {
		e.sleep = sleepCtx
	}
	return e
}

// Enrich processes a single record. It never sleeps.
func (e *Enricher) Enrich(ctx context.Context, rec InputRecord) Result {
	fail := func(reason Reason, url string, err error) Result {
		return Result{Failure: &Failure{Reason: reason, Line: rec.Line, URL: url, Err: err}}
	}

	fullURL, err := ResolveURL(e.baseURL, rec.ProfileURL)
	if err != nil {
		return fail(ReasonURLResolution, rec.ProfileURL, err)
	}

	html, err := e.fetcher.Fetch(ctx, fullURL)
	if err != nil {
		return fail(ReasonTransport, fullURL, err)
	}

	c, err := ParsePage(html, e.tableSelector, e.rules)
	if err != nil {
		return fail(ReasonParse, fullURL, err)
	}
	c.SchoolName = rec.Name
	c.FullURL = fullURL
	return Result{Contact: c}
}

// Run enriches recs in order and returns the contacts of the records that
// succeeded, in input order, along with every failure.
//
// Run stops early only when ctx is done; the records processed so far are
// returned with ctx.Err().
func (e *Enricher) Run(ctx context.Context, recs []InputRecord) ([]Contact, []*Failure, error) {
	var (
		out      []Contact
		failures []*Failure
	)

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return out, failures, err
		}

		res := e.Enrich(ctx, rec)
		if res.OK() {
			out = append(out, res.Contact)
			metrics.IncCounter("enrich_records_total", 1, metrics.Labels{"status": "ok"})
		} else {
			failures = append(failures, res.Failure)
			metrics.IncCounter("enrich_records_total", 1, metrics.Labels{
				"status": "failed",
				"reason": string(res.Failure.Reason),
			})
			if e.onFailure != nil {
				e.onFailure(res.Failure)
			}
		}

		if e.delay > 0 {
			e.sleep(ctx, e.delay)
		}
	}
	return out, failures, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
