package graphql

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/crmmock/pkg/logging"
	"github.com/getmockd/crmmock/pkg/metrics"
)

// MaxRequestBodySize is the maximum allowed request body size (1MB).
const MaxRequestBodySize = 1 << 20 // 1MB

var nullData = json.RawMessage("null")

// Handler handles GraphQL HTTP requests.
type Handler struct {
	executor    *Executor
	formatter   *ErrorFormatter
	log         *slog.Logger
	metrics     *metrics.Metrics
	csrf        bool
	debug       bool
	maxBodySize int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for request and error lines.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = logging.Component(l, "graphql")
	}
}

// WithHandlerMetrics records each request in m.
func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithDebugErrors adds the original error message to client errors.
func WithDebugErrors(debug bool) HandlerOption {
	return func(h *Handler) {
		h.debug = debug
	}
}

// WithCSRFPrevention toggles the content-type gate. It is on by default.
func WithCSRFPrevention(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.csrf = enabled
	}
}

// WithMaxBodySize overrides MaxRequestBodySize.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// NewHandler creates a new GraphQL HTTP handler.
func NewHandler(executor *Executor, opts ...HandlerOption) *Handler {
	h := &Handler{
		executor:    executor,
		log:         logging.Nop(),
		csrf:        true,
		maxBodySize: MaxRequestBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.formatter = NewErrorFormatter(h.debug, h.log)
	return h
}

// ServeHTTP handles GET and POST GraphQL requests. POST accepts
// application/json and application/graphql bodies. CORS headers are set by
// the server middleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Handle preflight requests (CORS headers are set by middleware)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		err := NewError(KindBadRequest, "method not allowed")
		err.Status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST")
		h.reject(w, r, start, err)
		return
	}

	if h.csrf {
		if err := CheckCSRF(r); err != nil {
			h.reject(w, r, start, err)
			return
		}
	}

	var (
		req *GraphQLRequest
		err *Error
	)
	if r.Method == http.MethodGet {
		req, err = parseGetRequest(r)
	} else {
		req, err = h.parsePostRequest(r)
	}
	if err != nil {
		h.reject(w, r, start, err)
		return
	}

	var opts []ExecuteOption
	if r.Method == http.MethodGet {
		opts = append(opts, ReadOnly())
	}

	res := h.executor.Execute(r.Context(), req, opts...)

	resp := &GraphQLResponse{Errors: h.formatter.FormatAll(r.Context(), res.Errors)}
	if res.Executed {
		if res.Data != nil {
			resp.Data = res.Data
		} else {
			resp.Data = nullData
		}
	}

	status := res.Status()
	writeResponse(w, status, resp)
	h.observe(r, start, operationLabel(res), status, resp.Errors)

	h.log.DebugContext(r.Context(), "graphql request",
		"operation", operationLabel(res),
		"operation_name", res.OperationName,
		"status", status,
		"errors", len(resp.Errors),
		"duration", time.Since(start),
	)
}

// reject answers a request that never reached the executor.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, start time.Time, err *Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := &GraphQLResponse{Errors: []GraphQLError{h.formatter.Format(r.Context(), err)}}
	writeResponse(w, status, resp)
	h.observe(r, start, "unknown", status, resp.Errors)
}

func (h *Handler) observe(_ *http.Request, start time.Time, operation string, status int, errs []GraphQLError) {
	h.metrics.ObserveGraphQLRequest(operation, status, time.Since(start))
	for _, e := range errs {
		h.metrics.AddGraphQLError(e.Code)
	}
}

func operationLabel(res *Result) string {
	if res == nil || res.Operation == "" {
		return "unknown"
	}
	return string(res.Operation)
}

// parseGetRequest parses a GraphQL request from GET query parameters.
func parseGetRequest(r *http.Request) (*GraphQLRequest, *Error) {
	query := r.URL.Query()

	req := &GraphQLRequest{
		Query:         query.Get("query"),
		OperationName: query.Get("operationName"),
	}

	if varsStr := query.Get("variables"); varsStr != "" {
		var variables map[string]interface{}
		if err := json.Unmarshal([]byte(varsStr), &variables); err != nil {
			return nil, NewError(KindBadRequest, "invalid variables JSON")
		}
		req.Variables = variables
	}

	return req, nil
}

// parsePostRequest parses a GraphQL request from a POST body.
func (h *Handler) parsePostRequest(r *http.Request) (*GraphQLRequest, *Error) {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		return nil, NewError(KindBadRequest, "failed to read request body")
	}
	if int64(len(body)) > h.maxBodySize {
		e := NewError(KindBadRequest, "request body too large")
		e.Status = http.StatusRequestEntityTooLarge
		return nil, e
	}
	if len(body) == 0 {
		return nil, NewError(KindBadRequest, "empty request body")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.EqualFold(mediaType, "application/graphql") {
		return &GraphQLRequest{Query: string(body)}, nil
	}

	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, NewError(KindBadRequest, "invalid JSON request body")
	}
	return &req, nil
}

func writeResponse(w http.ResponseWriter, status int, resp *GraphQLResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
