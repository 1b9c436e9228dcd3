package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/crmmock/pkg/graphql"
	"github.com/getmockd/crmmock/pkg/metrics"
	"github.com/getmockd/crmmock/pkg/schemafetch"
)

const crmSDL = `
type Query { me: User }

type Mutation {
	createUser(input: CreateUserInput!): CreateUserPayload!
}

input CreateUserInput {
	email: String!
	initials: String!
	password: String
	clientMutationId: String!
}

type CreateUserPayload {
	user: User!
	clientMutationId: String!
}

type User {
	id: ID!
	email: String!
	initials: String!
	confirmed: Boolean!
}
`

const crmOpenAPI = `openapi: 3.0.3
info:
  title: CRM API
  version: 1.0.0
paths:
  /users:
    get:
      responses:
        "200":
          description: ok
`

const createUserBody = `{"query":"mutation($input: CreateUserInput!) { createUser(input: $input) { user { id confirmed email initials } clientMutationId } }","variables":{"input":{"email":"a@b.com","initials":"AB","clientMutationId":"x"}}}`

// upstream serves the GraphQL SDL and the OpenAPI document.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/schema.graphql":
			w.Header().Set("Content-Type", "application/graphql")
			_, _ = io.WriteString(w, crmSDL)
		case "/openapi.yaml":
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = io.WriteString(w, crmOpenAPI)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(up *httptest.Server) *Config {
	cfg := DefaultConfig(up.URL + "/schema.graphql")
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.FetchTimeout = time.Second
	cfg.MaxRetries = 1
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func bootstrapped(t *testing.T, cfg *Config, opts ...Option) *Server {
	t.Helper()
	srv := New(cfg, opts...)
	require.NoError(t, srv.Bootstrap(context.Background()))
	require.Equal(t, StateStarting, srv.State())
	return srv
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServer_RunServesAndStops(t *testing.T) {
	up := upstream(t)
	srv := bootstrapped(t, testConfig(up))
	require.NoError(t, srv.Start())
	require.Equal(t, StateRunning, srv.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	base := "http://" + srv.Addr()

	resp, err := http.Post(base+"/graphql", "application/json", strings.NewReader(createUserBody))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t,
		`{"data":{"createUser":{"user":{"id":"1","confirmed":true,"email":"a@b.com","initials":"AB"},"clientMutationId":"x"}}}`,
		string(body))

	resp, err = http.Get(base + "/health")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "running", health.State)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, srv.State())
}

func TestServer_CSRFGate(t *testing.T) {
	srv := bootstrapped(t, testConfig(upstream(t)))
	h := srv.Handler()

	for _, ct := range []string{"", "text/plain", "text/plain; charset=utf-8"} {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(createUserBody))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		w := serve(t, h, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, ct)
		assert.Contains(t, w.Body.String(), "Cross-Site Request Forgery", ct)
		assert.NotContains(t, w.Body.String(), `"data"`, ct)
	}
}

func TestServer_HealthBypassesGate(t *testing.T) {
	cfg := testConfig(upstream(t))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := bootstrapped(t, cfg, WithClock(func() time.Time { return fixed }))

	req := httptest.NewRequest(http.MethodPost, "/health", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := serve(t, srv.Handler(), req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "not running yet")
	assert.JSONEq(t, `{"status":"unavailable","timestamp":"2026-01-02T03:04:05Z","state":"starting"}`, w.Body.String())

	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	w = serve(t, srv.Handler(), req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","timestamp":"2026-01-02T03:04:05Z","state":"running"}`, w.Body.String())
}

func TestServer_BootstrapFetchFailureIsFatal(t *testing.T) {
	up := upstream(t)
	cfg := testConfig(up)
	cfg.SchemaURL = up.URL + "/missing"

	srv := New(cfg)
	err := srv.Bootstrap(context.Background())

	var exhausted *schemafetch.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, StateFailed, srv.State())
	assert.Nil(t, srv.Handler())

	assert.ErrorIs(t, srv.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, srv.Bootstrap(context.Background()), ErrInvalidTransition)
}

func TestServer_EmptyResolverMapIsFatal(t *testing.T) {
	srv := New(testConfig(upstream(t)), WithResolvers(graphql.ResolverMap{}))

	err := srv.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrNoResolvers)
	assert.Equal(t, StateFailed, srv.State())
}

func TestServer_UnknownIDStrategyIsFatal(t *testing.T) {
	cfg := testConfig(upstream(t))
	cfg.IDStrategy = "snowflake"

	srv := New(cfg)
	assert.Error(t, srv.Bootstrap(context.Background()))
	assert.Equal(t, StateFailed, srv.State())
}

func TestServer_PathConflict(t *testing.T) {
	cfg := testConfig(upstream(t))
	cfg.HealthPath = cfg.GraphQLPath

	srv := New(cfg)
	assert.ErrorIs(t, srv.Bootstrap(context.Background()), ErrPathConflict)
}

func TestServer_ShutdownRunsOnce(t *testing.T) {
	srv := bootstrapped(t, testConfig(upstream(t)))
	require.NoError(t, srv.Start())

	var calls int32
	release := make(chan struct{})
	srv.OnShutdown(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = srv.Shutdown(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return srv.State() == StateShuttingDown }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, StateStopped, srv.State())
	assert.NoError(t, srv.Shutdown(context.Background()), "later calls return the first result")
}

func TestServer_ShutdownHooksRunInReverse(t *testing.T) {
	srv := bootstrapped(t, testConfig(upstream(t)))
	require.NoError(t, srv.Start())

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		srv.OnShutdown(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestServer_ShutdownTimeout(t *testing.T) {
	cfg := testConfig(upstream(t))
	cfg.ShutdownTimeout = 50 * time.Millisecond
	srv := bootstrapped(t, cfg)
	require.NoError(t, srv.Start())

	srv.OnShutdown(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := srv.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Equal(t, StateFailed, srv.State())
}

func TestServer_ShutdownHookErrorFails(t *testing.T) {
	srv := bootstrapped(t, testConfig(upstream(t)))
	require.NoError(t, srv.Start())

	boom := errors.New("close db")
	srv.OnShutdown(func(context.Context) error { return boom })

	err := srv.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrShutdownTimeout)
	assert.Equal(t, StateFailed, srv.State())
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := New(testConfig(upstream(t)))
	assert.ErrorIs(t, srv.Shutdown(context.Background()), ErrInvalidTransition)

	require.NoError(t, srv.Bootstrap(context.Background()))
	assert.ErrorIs(t, srv.Shutdown(context.Background()), ErrInvalidTransition)

	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_TrackDuplicates(t *testing.T) {
	cfg := testConfig(upstream(t))
	cfg.TrackDuplicates = true
	srv := bootstrapped(t, cfg)

	first := serve(t, srv.Handler(), postJSON("/graphql", createUserBody))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotContains(t, first.Body.String(), "errors")

	second := serve(t, srv.Handler(), postJSON("/graphql", createUserBody))
	var resp struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "already exists")
	assert.Equal(t, graphql.CodeConflict, resp.Errors[0].Code)
	assert.Equal(t, "null", string(resp.Data))
}

func TestServer_SequenceIDs(t *testing.T) {
	cfg := testConfig(upstream(t))
	cfg.IDStrategy = "sequence"
	srv := bootstrapped(t, cfg)

	for _, want := range []string{`"id":"1"`, `"id":"2"`} {
		w := serve(t, srv.Handler(), postJSON("/graphql", createUserBody))
		assert.Contains(t, w.Body.String(), want)
	}
}

func TestServer_Docs(t *testing.T) {
	up := upstream(t)
	cfg := testConfig(up)
	cfg.OpenAPIURL = up.URL + "/openapi.yaml"
	srv := bootstrapped(t, cfg)
	require.NotNil(t, srv.Docs())

	w := serve(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CRM API")

	w = serve(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/users"`)
}

func TestServer_DocsFailureIsNotFatal(t *testing.T) {
	up := upstream(t)
	cfg := testConfig(up)
	cfg.OpenAPIURL = up.URL + "/nope.yaml"
	srv := bootstrapped(t, cfg)

	assert.Nil(t, srv.Docs())
	w := serve(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	srv := bootstrapped(t, testConfig(upstream(t)), WithMetrics(m))

	serve(t, srv.Handler(), postJSON("/graphql", createUserBody))
	serve(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/unknown/123", nil))

	w := serve(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `crmmock_http_requests_total{method="POST",path="/graphql",status="200"} 1`)
	assert.Contains(t, body, `crmmock_http_requests_total{method="GET",path="other",status="404"} 1`)
	assert.Contains(t, body, `crmmock_server_state{state="starting"} 1`)
	assert.Contains(t, body, `crmmock_users_created_total 1`)
	assert.Contains(t, body, `crmmock_schema_fetch_attempts_total{outcome="success"} 1`)
}

func TestServer_NotFound(t *testing.T) {
	srv := bootstrapped(t, testConfig(upstream(t)))
	w := serve(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestServer_CORSPreflight(t *testing.T) {
	cfg := testConfig(upstream(t))
	cfg.CORSOrigins = []string{"https://app.crm.example"}
	srv := bootstrapped(t, cfg)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return serve(t, srv.Handler(), req)
	}

	w := preflight("https://app.crm.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.crm.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Apollo-Require-Preflight")

	w = preflight("https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
