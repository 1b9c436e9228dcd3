package apidocs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/crmmock/pkg/schemafetch"
)

const crmOpenAPI = `openapi: 3.0.3
info:
  title: CRM API
  version: 2.1.0
paths:
  /users:
    post:
      operationId: createUser
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [email, initials]
              properties:
                email:
                  type: string
                  format: email
                initials:
                  type: string
                  minLength: 2
      responses:
        "201":
          description: created
`

func TestParse(t *testing.T) {
	docs, err := Parse(context.Background(), []byte(crmOpenAPI), "https://crm.example/openapi.yaml")
	require.NoError(t, err)

	assert.Equal(t, "CRM API", docs.Title())
	assert.Equal(t, "2.1.0", docs.Version())
	assert.Equal(t, 1, docs.PathCount())
	assert.Equal(t, "https://crm.example/openapi.yaml", docs.SourceURL())
	assert.NotNil(t, docs.Document().Paths.Find("/users"))
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":        "openapi: [",
		"missing info":    "openapi: 3.0.3\npaths: {}\n",
		"bad response":    "openapi: 3.0.3\ninfo: {title: x, version: '1'}\npaths:\n  /a:\n    get:\n      responses: {}\n",
		"unknown version": "openapi: 3.0.3\ninfo: {title: x}\npaths: {}\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(doc), "")
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(crmOpenAPI))
	}))
	defer srv.Close()

	docs, err := Load(context.Background(), schemafetch.New(), srv.URL+"/openapi", schemafetch.Options{Timeout: time.Second, MaxRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, "CRM API", docs.Title())
}

func TestLoad_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), schemafetch.New(), srv.URL, schemafetch.Options{Timeout: time.Second, MaxRetries: 1})
	var exhausted *schemafetch.ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}

func TestHandler(t *testing.T) {
	docs, err := Parse(context.Background(), []byte(crmOpenAPI), "")
	require.NoError(t, err)
	h := NewHandler(docs, "/docs/", WithAssetsURL("https://cdn.example/swagger/"))

	t.Run("index", func(t *testing.T) {
		for _, path := range []string{"/docs", "/docs/"} {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, w.Code, path)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
			body := w.Body.String()
			assert.Contains(t, body, "<title>CRM API 2.1.0</title>")
			assert.Contains(t, body, `https://cdn.example/swagger/swagger-ui-bundle.js`)
			assert.Contains(t, body, "openapi.json")
		}
	})

	t.Run("openapi json", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
		assert.Contains(t, doc["paths"], "/users")
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/other", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/docs/openapi.json", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
