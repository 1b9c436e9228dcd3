package schemafetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/getmockd/crmmock/pkg/logging"
	"github.com/getmockd/crmmock/pkg/metrics"
)

// Defaults applied when Options leaves a field at zero.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
)

// MaxDocumentSize caps the number of bytes read from a schema response (10MB).
const MaxDocumentSize = 10 << 20

var errTooLarge = errors.New("document too large")

const acceptHeader = "application/graphql, application/yaml, application/x-yaml, application/json;q=0.9, text/plain;q=0.8, */*;q=0.5"

// Options controls a single Fetch call.
type Options struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxRetries is the total number of attempts before giving up.
	MaxRetries int
	// Kind is the expected document kind. KindAuto detects it.
	Kind Kind
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// Fetcher retrieves schema documents with timeout and retry.
type Fetcher struct {
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics
	timer   backoff.Timer
	maxSize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger for attempt and retry lines.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.log = logging.Component(l, "schemafetch")
	}
}

// WithMetrics records each attempt in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithTimer replaces the timer used to wait between attempts.
func WithTimer(t backoff.Timer) Option {
	return func(f *Fetcher) {
		f.timer = t
	}
}

// WithMaxDocumentSize sets the largest accepted response body in bytes.
// Values <= 0 keep MaxDocumentSize.
func WithMaxDocumentSize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  http.DefaultClient,
		log:     logging.Nop(),
		maxSize: MaxDocumentSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the document at rawURL.
//
// Attempts are strictly sequential. A failed attempt k is followed by a wait
// of Backoff(k) before attempt k+1. After opts.MaxRetries failed attempts an
// *ExhaustedError is returned. Content that arrives but is not a valid
// document yields an *InvalidDocumentError right away. Cancelling ctx stops
// the loop; a per-attempt timeout does not.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Document, error) {
	opts = opts.withDefaults()

	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	var (
		attempt int
		doc     *Document
	)

	operation := func() error {
		attempt++
		f.log.Info("fetching schema", "url", rawURL, "attempt", attempt, "max_attempts", opts.MaxRetries)

		start := time.Now()
		content, contentType, err := f.get(ctx, rawURL, opts.Timeout)
		if errors.Is(err, errTooLarge) {
			err = &InvalidDocumentError{URL: rawURL, Kind: opts.Kind, Reason: fmt.Sprintf("document too large (limit %d bytes)", f.maxSize)}
		}
		if err != nil {
			f.metrics.ObserveFetchAttempt(string(Classify(err)), time.Since(start))
			if ctx.Err() != nil || Classify(err) == ReasonInvalid {
				return backoff.Permanent(err)
			}
			return err
		}

		d, err := newDocument(rawURL, content, contentType, opts.Kind)
		if err != nil {
			f.metrics.ObserveFetchAttempt(string(ReasonInvalid), time.Since(start))
			return backoff.Permanent(err)
		}
		f.metrics.ObserveFetchAttempt("success", time.Since(start))

		d.Attempts = attempt
		doc = d
		return nil
	}

	notify := func(err error, delay time.Duration) {
		f.log.Warn("schema fetch attempt failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"reason", Classify(err),
			"delay", delay,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&scheduleBackOff{}, uint64(opts.MaxRetries-1)), ctx)
	err := backoff.RetryNotifyWithTimer(operation, b, notify, f.timer)
	if err != nil {
		var invalid *InvalidDocumentError
		switch {
		case errors.As(err, &invalid):
			f.log.Error("schema document rejected", "url", rawURL, "reason", invalid.Reason, "error", err)
			return nil, err
		case ctx.Err() != nil:
			f.log.Warn("schema fetch cancelled", "url", rawURL, "attempt", attempt)
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		default:
			f.log.Error("schema fetch failed", "url", rawURL, "attempts", attempt, "reason", Classify(err), "error", err)
			return nil, &ExhaustedError{URL: rawURL, Attempts: attempt, Last: err}
		}
	}

	f.log.Info("schema fetched", "url", rawURL, "attempts", doc.Attempts, "bytes", len(doc.Content), "kind", doc.Kind)
	return doc, nil
}

// get performs one attempt under its own timeout.
func (f *Fetcher) get(ctx context.Context, rawURL string, timeout time.Duration) (string, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", f.classifyTransportError(attemptCtx, ctx, rawURL, timeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", "", &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return "", "", f.classifyTransportError(attemptCtx, ctx, rawURL, timeout, err)
	}
	if int64(len(body)) > f.maxSize {
		return "", "", errTooLarge
	}

	return string(body), resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) classifyTransportError(attemptCtx, parent context.Context, rawURL string, timeout time.Duration, err error) error {
	if parent.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded)) {
		return &TimeoutError{URL: rawURL, Timeout: timeout, Err: err}
	}
	return &NetworkError{URL: rawURL, Err: err}
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidURL, rawURL)
	}
	return nil
}
