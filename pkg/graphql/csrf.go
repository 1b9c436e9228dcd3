package graphql

import (
	"mime"
	"net/http"
	"strings"
)

// PreflightHeaders are the headers that mark a GET request as coming from a
// client able to send non-simple requests. Browsers cannot attach them to a
// cross-site request without a CORS preflight.
var PreflightHeaders = []string{"Apollo-Require-Preflight", "X-Apollo-Operation-Name"}

// simpleContentTypes are the content types an HTML form can post cross-site.
var simpleContentTypes = map[string]bool{
	"text/plain":                        true,
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
}

const csrfMessage = "This operation has been blocked as a potential Cross-Site Request Forgery (CSRF). " +
	"Requests must carry a content-type other than text/plain, application/x-www-form-urlencoded " +
	"or multipart/form-data. GET requests must also set one of these headers: " +
	"Apollo-Require-Preflight, X-Apollo-Operation-Name."

// CheckCSRF applies the content-type gate to r. It returns nil when the
// request may proceed and a KindCSRF error otherwise. Every method needs a
// content-type that an HTML form cannot send; GET and HEAD also need a
// preflight header. The gate looks only at headers, never the body.
func CheckCSRF(r *http.Request) *Error {
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if ct == "" {
		return NewError(KindCSRF, csrfMessage).WithField("contentType", "")
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || simpleContentTypes[strings.ToLower(mediaType)] {
		return NewError(KindCSRF, csrfMessage).WithField("contentType", ct)
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		for _, h := range PreflightHeaders {
			if strings.TrimSpace(r.Header.Get(h)) != "" {
				return nil
			}
		}
		return NewError(KindCSRF, csrfMessage)
	}
	return nil
}
