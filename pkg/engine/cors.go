// CORS middleware for the GraphQL server.

package engine

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/getmockd/crmmock/pkg/graphql"
)

const corsMaxAge = 86400 // 24 hours

var (
	corsAllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowHeaders = append([]string{"Content-Type", "Authorization", "Accept", "Origin", RequestIDHeader},
		graphql.PreflightHeaders...)
)

// CORSMiddleware wraps an http.Handler with CORS handling for a fixed set of
// allowed origins. "*" allows any origin.
type CORSMiddleware struct {
	handler  http.Handler
	origins  map[string]struct{}
	allowAll bool
}

// NewCORSMiddleware creates a CORS middleware. An empty origins list
// disables CORS headers entirely.
func NewCORSMiddleware(handler http.Handler, origins []string) *CORSMiddleware {
	m := &CORSMiddleware{handler: handler, origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			m.allowAll = true
			continue
		}
		m.origins[strings.ToLower(o)] = struct{}{}
	}
	return m
}

// CORS returns NewCORSMiddleware as a Middleware.
func CORS(origins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return NewCORSMiddleware(next, origins)
	}
}

func (m *CORSMiddleware) enabled() bool {
	return m.allowAll || len(m.origins) > 0
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// if the origin is not allowed.
func (m *CORSMiddleware) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	if m.allowAll {
		return "*"
	}
	if _, ok := m.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}

// ServeHTTP implements the http.Handler interface.
func (m *CORSMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !m.enabled() {
		m.handler.ServeHTTP(w, r)
		return
	}

	origin := r.Header.Get("Origin")
	allowOrigin := m.allowOrigin(origin)

	if allowOrigin != "" {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		if allowOrigin != "*" {
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", strings.Join(corsAllowMethods, ", "))
		h.Set("Access-Control-Allow-Headers", strings.Join(corsAllowHeaders, ", "))
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
	}

	// Preflight requests never reach the GraphQL handler.
	if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
		if allowOrigin != "" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusForbidden)
		}
		return
	}

	m.handler.ServeHTTP(w, r)
}
