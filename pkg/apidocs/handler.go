package apidocs

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getmockd/crmmock/pkg/httputil"
	"github.com/getmockd/crmmock/pkg/logging"
)

// SpecFile is the name the document is served under, below the docs path.
const SpecFile = "openapi.json"

// Handler serves the Swagger UI page at its base path and the document at
// {base}/openapi.json.
type Handler struct {
	docs      *Docs
	basePath  string
	assetsURL string
	log       *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAssetsURL overrides DefaultAssetsURL.
func WithAssetsURL(u string) HandlerOption {
	return func(h *Handler) {
		if u != "" {
			h.assetsURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = logging.Component(l, "apidocs")
	}
}

// NewHandler creates a Handler for docs mounted at basePath.
func NewHandler(docs *Docs, basePath string, opts ...HandlerOption) *Handler {
	h := &Handler{
		docs:      docs,
		basePath:  "/" + strings.Trim(basePath, "/"),
		assetsURL: DefaultAssetsURL,
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SpecPath returns the path of the JSON document.
func (h *Handler) SpecPath() string {
	return strings.TrimSuffix(h.basePath, "/") + "/" + SpecFile
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.WriteMethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	switch strings.TrimSuffix(r.URL.Path, "/") {
	case strings.TrimSuffix(h.basePath, "/"):
		h.serveIndex(w)
	case h.SpecPath():
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(h.docs.json)
	default:
		httputil.WriteNotFound(w, "not_found", "no such documentation resource")
	}
}

func (h *Handler) serveIndex(w http.ResponseWriter) {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, struct {
		Title     string
		Version   string
		AssetsURL string
		SpecURL   string
	}{
		Title:     h.docs.Title(),
		Version:   h.docs.Version(),
		AssetsURL: h.assetsURL,
		SpecURL:   h.SpecPath(),
	})
	if err != nil {
		h.log.Error("failed to render docs page", "error", err)
		httputil.WriteInternalError(w, "render_failed", "failed to render documentation page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
