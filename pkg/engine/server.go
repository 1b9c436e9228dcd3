package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/crmmock/pkg/apidocs"
	"github.com/getmockd/crmmock/pkg/graphql"
	"github.com/getmockd/crmmock/pkg/httputil"
	"github.com/getmockd/crmmock/pkg/logging"
	"github.com/getmockd/crmmock/pkg/metrics"
	"github.com/getmockd/crmmock/pkg/schemafetch"
	"github.com/getmockd/crmmock/pkg/users"
)

var (
	// ErrNoResolvers is returned by Bootstrap when there is nothing to serve.
	ErrNoResolvers = graphql.ErrNoResolvers
	// ErrShutdownTimeout is returned by Shutdown when in-flight requests or
	// cleanup hooks did not finish within the shutdown timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrPathConflict is returned by Bootstrap when two routes share a path.
	ErrPathConflict = errors.New("conflicting route paths")
)

const readHeaderTimeout = 10 * time.Second

// ShutdownFunc releases a resource during shutdown.
type ShutdownFunc func(ctx context.Context) error

// Server is the crmmock GraphQL server.
type Server struct {
	cfg       *Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	fetcher   *schemafetch.Fetcher
	resolvers graphql.ResolverMap
	now       func() time.Time

	lifecycle *Lifecycle

	mu         sync.Mutex
	executor   *graphql.Executor
	docs       *apidocs.Docs
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	hooks      []ShutdownFunc
	serveErr   chan error

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics enables Prometheus metrics and the metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithFetcher replaces the schema fetcher.
func WithFetcher(f *schemafetch.Fetcher) Option {
	return func(s *Server) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithResolvers replaces the resolver map built from the configuration.
func WithResolvers(r graphql.ResolverMap) Option {
	return func(s *Server) {
		s.resolvers = r
	}
}

// WithClock sets the time source used for health timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Server in StateInitializing. A nil cfg uses DefaultConfig
// with no schema URL.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig("")
	}

	s := &Server{
		cfg:          cfg,
		log:          logging.Nop(),
		now:          time.Now,
		lifecycle:    NewLifecycle(),
		serveErr:     make(chan error, 1),
		shutdownDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = schemafetch.New(schemafetch.WithLogger(s.log), schemafetch.WithMetrics(s.metrics))
	}

	s.metrics.SetLifecycleState(s.lifecycle.State().String())
	s.lifecycle.OnTransition(func(from, to State) {
		s.metrics.SetLifecycleState(to.String())
		s.log.Debug("lifecycle transition", "from", from.String(), "to", to.String())
	})

	return s
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return s.lifecycle.State()
}

// Lifecycle returns the server's state machine, for registering observers.
func (s *Server) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.cfg
}

// Handler returns the fully wrapped HTTP handler. It is nil before Bootstrap.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// Docs returns the loaded OpenAPI document, or nil when the docs viewer is
// disabled.
func (s *Server) Docs() *apidocs.Docs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// OnShutdown registers fn to run during shutdown, after the HTTP server has
// drained. Hooks run in reverse registration order.
func (s *Server) OnShutdown(fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Bootstrap fetches the schema, attaches the resolvers and builds the HTTP
// handler. On success the server is in StateStarting; on failure it is in
// StateFailed and cannot be reused.
func (s *Server) Bootstrap(ctx context.Context) error {
	if st := s.lifecycle.State(); st != StateInitializing {
		return fmt.Errorf("%w: bootstrap in state %s", ErrInvalidTransition, st)
	}

	if err := s.bootstrap(ctx); err != nil {
		s.fail("bootstrap failed", err)
		return err
	}
	return s.lifecycle.Transition(StateStarting)
}

func (s *Server) bootstrap(ctx context.Context) error {
	if err := s.checkPaths(); err != nil {
		return err
	}

	doc, err := s.fetcher.Fetch(ctx, s.cfg.SchemaURL, s.cfg.fetchOptions(schemafetch.KindGraphQL))
	if err != nil {
		return fmt.Errorf("fetch schema: %w", err)
	}
	schema, err := graphql.ParseSchema(doc.Content)
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	resolvers := s.resolvers
	if resolvers == nil {
		r, err := s.newResolver()
		if err != nil {
			return err
		}
		resolvers = r.Resolvers()
	}

	executor, err := graphql.NewExecutor(schema, resolvers, graphql.WithExecutorLogger(s.log))
	if err != nil {
		return fmt.Errorf("attach resolvers: %w", err)
	}

	var docs *apidocs.Docs
	if s.cfg.OpenAPIURL != "" {
		docs, err = apidocs.Load(ctx, s.fetcher, s.cfg.OpenAPIURL, s.cfg.fetchOptions(schemafetch.KindOpenAPI))
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.log.Warn("API docs disabled", "url", s.cfg.OpenAPIURL, "error", err)
			docs = nil
		}
	}

	s.mu.Lock()
	s.executor = executor
	s.docs = docs
	s.handler = s.routes(executor, docs)
	s.mu.Unlock()

	s.log.Info("schema loaded",
		"url", s.cfg.SchemaURL,
		"attempts", doc.Attempts,
		"queries", len(schema.ListQueries()),
		"mutations", len(schema.ListMutations()),
	)
	return nil
}

func (s *Server) newResolver() (*users.Resolver, error) {
	ids, err := users.ParseIDStrategy(s.cfg.IDStrategy)
	if err != nil {
		return nil, err
	}

	opts := []users.Option{
		users.WithStrictValidation(s.cfg.StrictValidation),
		users.WithIDGenerator(ids),
		users.WithLogger(s.log),
		users.WithMetrics(s.metrics),
	}
	if s.cfg.TrackDuplicates {
		store, err := users.NewMemoryStore()
		if err != nil {
			return nil, fmt.Errorf("create user store: %w", err)
		}
		opts = append(opts, users.WithStore(store))
		s.OnShutdown(func(context.Context) error {
			store.Reset()
			return nil
		})
	}
	return users.NewResolver(opts...), nil
}

func (s *Server) checkPaths() error {
	seen := map[string]string{}
	check := func(name, path string) error {
		if path == "" {
			return nil
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s %q must start with /", name, path)
		}
		if other, ok := seen[path]; ok {
			return fmt.Errorf("%w: %s and %s are both %q", ErrPathConflict, other, name, path)
		}
		seen[path] = name
		return nil
	}

	if s.cfg.GraphQLPath == "" {
		return errors.New("graphql path is required")
	}
	for _, p := range []struct{ name, path string }{
		{"graphql path", s.cfg.GraphQLPath},
		{"health path", s.cfg.HealthPath},
		{"metrics path", s.cfg.MetricsPath},
		{"docs path", s.docsBase()},
	} {
		if err := check(p.name, p.path); err != nil {
			return err
		}
	}
	if s.docsBase() == "/" {
		return fmt.Errorf("%w: docs path cannot be /", ErrPathConflict)
	}
	return nil
}

func (s *Server) docsBase() string {
	if s.cfg.OpenAPIURL == "" || s.cfg.DocsPath == "" {
		return ""
	}
	if s.cfg.DocsPath == "/" {
		return "/"
	}
	return strings.TrimSuffix(s.cfg.DocsPath, "/")
}

func (s *Server) routes(executor *graphql.Executor, docs *apidocs.Docs) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(s.cfg.GraphQLPath, graphql.NewHandler(executor,
		graphql.WithHandlerLogger(s.log),
		graphql.WithHandlerMetrics(s.metrics),
		graphql.WithDebugErrors(s.cfg.DebugErrors),
	))

	if docs != nil {
		base := s.docsBase()
		dh := apidocs.NewHandler(docs, base, apidocs.WithLogger(s.log))
		mux.Handle(base, dh)
		mux.Handle(base+"/", dh)
	}

	if s.metrics != nil && s.cfg.MetricsPath != "" {
		mux.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not_found", "no route for "+r.URL.Path)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.HealthPath != "" && r.URL.Path == s.cfg.HealthPath {
			s.handleHealth(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	return Chain(root,
		RequestIDMiddleware(),
		MetricsMiddleware(s.metrics, s.routeLabel),
		AccessLogMiddleware(s.log),
		RecoverMiddleware(s.log),
		CORS(s.cfg.CORSOrigins),
	)
}

// routeLabel keeps the metrics path label bounded to the configured routes.
func (s *Server) routeLabel(r *http.Request) string {
	p := r.URL.Path
	switch {
	case p == s.cfg.GraphQLPath, p == s.cfg.HealthPath, p == s.cfg.MetricsPath:
		return p
	}
	if base := s.docsBase(); base != "" && (p == base || strings.HasPrefix(p, base+"/")) {
		return base
	}
	return "other"
}

// Start binds the listener and begins serving in the background. The server
// must be in StateStarting.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.lifecycle.State(); st != StateStarting {
		return fmt.Errorf("%w: start in state %s", ErrInvalidTransition, st)
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		err = fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
		s.fail("failed to bind listener", err)
		return err
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	s.listener = ln
	s.httpServer = srv

	go s.serve(srv, ln)

	if err := s.lifecycle.Transition(StateRunning); err != nil {
		return err
	}
	s.log.Info("server started",
		"addr", ln.Addr().String(),
		"graphql_path", s.cfg.GraphQLPath,
		"health_path", s.cfg.HealthPath,
		"docs", s.docs != nil,
	)
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	} else if err != nil {
		s.log.Error("HTTP server error", "error", err)
		err = fmt.Errorf("serve: %w", err)
	}
	s.serveErr <- err
}

// Run starts the server if needed and serves until ctx is done or the
// server fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.lifecycle.State() == StateStarting {
		if err := s.Start(); err != nil {
			return err
		}
	}
	if st := s.lifecycle.State(); st != StateRunning {
		return fmt.Errorf("%w: run in state %s", ErrInvalidTransition, st)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return <-s.serveErr
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.shutdownDone:
			return s.shutdownErr
		}
		return s.Shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

// Shutdown stops accepting connections, waits for in-flight requests up to
// the shutdown timeout and runs the shutdown hooks. It runs at most once;
// later and concurrent calls wait for the first and return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	if st := s.lifecycle.State(); st == StateInitializing || st == StateStarting {
		return fmt.Errorf("%w: shutdown in state %s", ErrInvalidTransition, st)
	}

	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
		close(s.shutdownDone)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	if err := s.lifecycle.Transition(StateShuttingDown); err != nil {
		return err
	}

	timeout := s.cfg.shutdownTimeout()
	s.log.Info("shutting down", "timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.mu.Lock()
	srv := s.httpServer
	hooks := make([]ShutdownFunc, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
			_ = srv.Close()
		}
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown hook: %w", err))
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		errs = append([]error{ErrShutdownTimeout}, errs...)
	}

	if err := errors.Join(errs...); err != nil {
		s.fail("shutdown failed", err)
		return err
	}
	if err := s.lifecycle.Transition(StateStopped); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) fail(msg string, err error) {
	s.log.Error(msg, "error", err, "state", s.lifecycle.State().String())
	if tErr := s.lifecycle.Transition(StateFailed); tErr != nil {
		s.log.Debug("lifecycle already terminal", "error", tErr)
	}
}
