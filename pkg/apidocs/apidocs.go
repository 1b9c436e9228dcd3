// Package apidocs serves an OpenAPI document and a Swagger UI page for it.
//
// The document is fetched from a remote URL through schemafetch, loaded and
// validated with kin-openapi, and served as JSON next to the viewer page.
package apidocs

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/crmmock/pkg/schemafetch"
)

// DefaultAssetsURL is where the Swagger UI scripts and styles are loaded from.
const DefaultAssetsURL = "https://unpkg.com/swagger-ui-dist@5"

// ErrInvalidDocument is returned when a document does not load or validate
// as OpenAPI 3.
var ErrInvalidDocument = errors.New("invalid OpenAPI document")

//go:embed templates/index.html.tmpl
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html.tmpl"))

// Docs is a loaded and validated OpenAPI document.
type Docs struct {
	doc       *openapi3.T
	json      []byte
	sourceURL string
}

// Load fetches the document at url with f and parses it.
func Load(ctx context.Context, f *schemafetch.Fetcher, url string, opts schemafetch.Options) (*Docs, error) {
	opts.Kind = schemafetch.KindOpenAPI
	doc, err := f.Fetch(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch OpenAPI document: %w", err)
	}
	return Parse(ctx, []byte(doc.Content), url)
}

// Parse loads and validates an OpenAPI 3 document given as YAML or JSON.
func Parse(ctx context.Context, data []byte, sourceURL string) (*Docs, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("%w: validate: %v", ErrInvalidDocument, err)
	}

	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode OpenAPI document: %w", err)
	}

	return &Docs{doc: doc, json: js, sourceURL: sourceURL}, nil
}

// Document returns the parsed document.
func (d *Docs) Document() *openapi3.T {
	return d.doc
}

// SourceURL returns the URL the document was loaded from.
func (d *Docs) SourceURL() string {
	return d.sourceURL
}

// Title returns info.title, or "API" when it is missing.
func (d *Docs) Title() string {
	if d.doc.Info != nil && d.doc.Info.Title != "" {
		return d.doc.Info.Title
	}
	return "API"
}

// Version returns info.version.
func (d *Docs) Version() string {
	if d.doc.Info != nil {
		return d.doc.Info.Version
	}
	return ""
}

// PathCount returns the number of paths in the document.
func (d *Docs) PathCount() int {
	if d.doc.Paths == nil {
		return 0
	}
	return d.doc.Paths.Len()
}
