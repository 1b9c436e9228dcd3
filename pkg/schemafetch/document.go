package schemafetch

import (
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"gopkg.in/yaml.v3"
)

// Kind is the type of schema document.
type Kind string

// Document kinds. KindAuto asks the fetcher to detect the kind.
const (
	KindAuto    Kind = ""
	KindGraphQL Kind = "graphql"
	KindOpenAPI Kind = "openapi"
)

// ParseKind parses a kind name. Unknown and empty values map to KindAuto.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "graphql", "sdl", "gql":
		return KindGraphQL
	case "openapi", "swagger", "oas":
		return KindOpenAPI
	default:
		return KindAuto
	}
}

// Document is a schema document retrieved from a remote URL.
type Document struct {
	// SourceURL is the URL the document was fetched from.
	SourceURL string
	// Content is the raw document text.
	Content string
	// ContentType is the Content-Type header of the response.
	ContentType string
	// Kind is the detected or requested document kind.
	Kind Kind
	// FetchedAt is when the successful response was read.
	FetchedAt time.Time
	// Attempts is the number of attempts it took to get the document.
	Attempts int
}

// newDocument checks content and builds a Document. Any error returned is an
// *InvalidDocumentError.
func newDocument(sourceURL, content, contentType string, want Kind) (*Document, error) {
	kind := want
	if kind == KindAuto {
		kind = detectKind(sourceURL, contentType, content)
	}

	if strings.TrimSpace(content) == "" {
		return nil, &InvalidDocumentError{URL: sourceURL, Kind: kind, Reason: "document is empty"}
	}

	switch kind {
	case KindGraphQL:
		if _, err := gqlparser.LoadSchema(&ast.Source{Name: sourceURL, Input: content}); err != nil {
			return nil, &InvalidDocumentError{URL: sourceURL, Kind: kind, Reason: "schema does not parse", Err: err}
		}
	case KindOpenAPI:
		var root map[string]any
		if err := yaml.Unmarshal([]byte(content), &root); err != nil {
			return nil, &InvalidDocumentError{URL: sourceURL, Kind: kind, Reason: "document is not YAML or JSON", Err: err}
		}
		_, isOpenAPI := root["openapi"]
		_, isSwagger := root["swagger"]
		if !isOpenAPI && !isSwagger {
			return nil, &InvalidDocumentError{URL: sourceURL, Kind: kind, Reason: "missing openapi or swagger version field"}
		}
	}

	return &Document{
		SourceURL:   sourceURL,
		Content:     content,
		ContentType: contentType,
		Kind:        kind,
		FetchedAt:   time.Now(),
	}, nil
}

// detectKind guesses the document kind from the content type, then the URL
// extension, then the content itself.
func detectKind(sourceURL, contentType, content string) Kind {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.Contains(mediaType, "graphql"):
			return KindGraphQL
		case strings.Contains(mediaType, "yaml"), strings.Contains(mediaType, "json"):
			return KindOpenAPI
		}
	}

	if u, err := url.Parse(sourceURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".graphql", ".graphqls", ".gql":
			return KindGraphQL
		case ".yaml", ".yml", ".json":
			return KindOpenAPI
		}
	}

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		return KindOpenAPI
	}
	for _, line := range strings.SplitN(trimmed, "\n", 20) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "openapi:") || strings.HasPrefix(line, "swagger:") {
			return KindOpenAPI
		}
	}
	return KindGraphQL
}
