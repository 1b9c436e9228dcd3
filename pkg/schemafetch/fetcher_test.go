package schemafetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query { ping: String }
type Mutation { createUser(email: String!): String }
`

// fakeTimer fires immediately and records every requested delay.
type fakeTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

// flakyServer fails the first failures requests with a 503, then serves body.
func flakyServer(t *testing.T, failures int32, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/graphql")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{5, 10 * time.Second},
		{30, 10 * time.Second},
		{-1, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt), "Backoff(%d)", tt.attempt)
	}
}

func TestFetch_SucceedsOnLastAttempt(t *testing.T) {
	for _, budget := range []int{1, 2, 3, 5} {
		budget := budget
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			srv, hits := flakyServer(t, int32(budget-1), testSDL)
			timer := newFakeTimer()

			doc, err := New(WithTimer(timer)).Fetch(context.Background(), srv.URL+"/schema.graphql", Options{
				Timeout:    time.Second,
				MaxRetries: budget,
			})

			require.NoError(t, err)
			assert.Equal(t, testSDL, doc.Content)
			assert.Equal(t, KindGraphQL, doc.Kind)
			assert.Equal(t, budget, doc.Attempts)
			assert.Equal(t, int32(budget), atomic.LoadInt32(hits))
		})
	}
}

func TestFetch_ExhaustsBudget(t *testing.T) {
	for _, budget := range []int{1, 3, 6} {
		budget := budget
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			srv, hits := flakyServer(t, 1000, testSDL)
			timer := newFakeTimer()

			doc, err := New(WithTimer(timer)).Fetch(context.Background(), srv.URL, Options{
				Timeout:    time.Second,
				MaxRetries: budget,
			})

			require.Error(t, err)
			assert.Nil(t, doc)

			var exhausted *ExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, budget, exhausted.Attempts)
			assert.Equal(t, ReasonHTTPStatus, Classify(err))
			assert.Equal(t, int32(budget), atomic.LoadInt32(hits))
			assert.Len(t, timer.Delays(), budget-1, "no wait after the final attempt")
		})
	}
}

func TestFetch_BackoffSchedule(t *testing.T) {
	srv, _ := flakyServer(t, 1000, testSDL)
	timer := newFakeTimer()

	_, err := New(WithTimer(timer)).Fetch(context.Background(), srv.URL, Options{
		Timeout:    time.Second,
		MaxRetries: 6,
	})
	require.Error(t, err)

	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, timer.Delays())
}

func TestFetch_TimeoutIsClassifiedAndRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(testSDL))
	}))
	defer srv.Close()

	timer := newFakeTimer()
	doc, err := New(WithTimer(timer)).Fetch(context.Background(), srv.URL+"/schema.graphql", Options{
		Timeout:    50 * time.Millisecond,
		MaxRetries: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, doc.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second}, timer.Delays())
}

func TestFetch_TimeoutExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(WithTimer(newFakeTimer())).Fetch(context.Background(), srv.URL, Options{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 2,
	})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, ReasonTimeout, Classify(err))
	assert.True(t, IsRetryable(timeoutErr))
}

func TestFetch_EmptyDocumentIsNotRetried(t *testing.T) {
	srv, hits := flakyServer(t, 0, "   \n")

	_, err := New(WithTimer(newFakeTimer())).Fetch(context.Background(), srv.URL, Options{
		Timeout:    time.Second,
		MaxRetries: 5,
	})

	var invalid *InvalidDocumentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonInvalid, Classify(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetch_UnparsableSDLIsNotRetried(t *testing.T) {
	srv, hits := flakyServer(t, 0, "type Query {")

	_, err := New(WithTimer(newFakeTimer())).Fetch(context.Background(), srv.URL, Options{
		Timeout:    time.Second,
		MaxRetries: 3,
		Kind:       KindGraphQL,
	})

	var invalid *InvalidDocumentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetch_OversizedDocumentIsRejected(t *testing.T) {
	srv, hits := flakyServer(t, 0, testSDL)

	f := New(WithTimer(newFakeTimer()), WithMaxDocumentSize(16))
	_, err := f.Fetch(context.Background(), srv.URL, Options{
		Timeout:    time.Second,
		MaxRetries: 3,
	})

	var invalid *InvalidDocumentError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "document too large")
	assert.Contains(t, err.Error(), "invalid schema document from")
	assert.Equal(t, ReasonInvalid, Classify(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetch_DocumentAtSizeLimitIsAccepted(t *testing.T) {
	srv, _ := flakyServer(t, 0, testSDL)

	doc, err := New(WithMaxDocumentSize(int64(len(testSDL)))).Fetch(context.Background(), srv.URL, Options{
		Timeout: time.Second,
		Kind:    KindGraphQL,
	})

	require.NoError(t, err)
	assert.Equal(t, testSDL, doc.Content)
}

func TestFetch_OpenAPIDocument(t *testing.T) {
	const openapiDoc = "openapi: 3.0.3\ninfo:\n  title: CRM\n  version: 1.0.0\npaths: {}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(openapiDoc))
	}))
	defer srv.Close()

	doc, err := New().Fetch(context.Background(), srv.URL+"/openapi", Options{})

	require.NoError(t, err)
	assert.Equal(t, KindOpenAPI, doc.Kind)
	assert.Equal(t, 1, doc.Attempts)
}

func TestFetch_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "/relative/path", "ftp://example.com/schema", "not a url"} {
		_, err := New().Fetch(context.Background(), raw, Options{})
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}
}

func TestFetch_ParentCancellationStopsLoop(t *testing.T) {
	srv, hits := flakyServer(t, 1000, testSDL)

	ctx, cancel := context.WithCancel(context.Background())
	timer := &cancellingTimer{fakeTimer: newFakeTimer(), cancel: cancel}

	_, err := New(WithTimer(timer)).Fetch(ctx, srv.URL, Options{
		Timeout:    time.Second,
		MaxRetries: 10,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

// cancellingTimer cancels the parent context instead of firing.
type cancellingTimer struct {
	*fakeTimer
	cancel context.CancelFunc
}

func (t *cancellingTimer) Start(time.Duration) { t.cancel() }

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		content     string
		want        Kind
	}{
		{"graphql content type", "https://x/s", "application/graphql; charset=utf-8", "type Query{a:Int}", KindGraphQL},
		{"yaml content type", "https://x/s", "application/x-yaml", "openapi: 3.0.0", KindOpenAPI},
		{"graphql extension", "https://x/schema.graphql", "text/plain", "type Query{a:Int}", KindGraphQL},
		{"json extension", "https://x/swagger.json", "text/plain", "{}", KindOpenAPI},
		{"sniff json", "https://x/s", "", `{"openapi":"3.0.0"}`, KindOpenAPI},
		{"sniff yaml", "https://x/s", "", "# comment\nopenapi: 3.1.0\n", KindOpenAPI},
		{"sniff sdl", "https://x/s", "", "type Query { a: Int }", KindGraphQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectKind(tt.url, tt.contentType, tt.content))
		})
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindGraphQL, ParseKind("GraphQL"))
	assert.Equal(t, KindOpenAPI, ParseKind("swagger"))
	assert.Equal(t, KindAuto, ParseKind("auto"))
	assert.Equal(t, KindAuto, ParseKind(""))
}
