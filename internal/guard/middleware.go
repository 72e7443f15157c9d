package guard

import (
	"net/http"
	"net/url"
	"strings"

	"ipzy-gateway/internal/domain"
)

// SubjectFunc builds the Subject of a request.
type SubjectFunc func(r *http.Request) Subject

// DenyFunc renders a redirect decision.
type DenyFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// Middleware enforces req on every request passing through. A Subject without a Path uses r.URL.Path.
func (g *Guard) Middleware(req Requirement, subject SubjectFunc, deny DenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = Redirect
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subj := subject(r)
			if subj.Path == "" {
				subj.Path = r.URL.Path
			}
			d := g.Evaluate(r.Context(), req, subj)
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, r, d)
		})
	}
}

// Redirect answers with 303 See Other to the decision's target.
func Redirect(w http.ResponseWriter, r *http.Request, d Decision) {
	http.Redirect(w, r, Location(d.Redirect), http.StatusSeeOther)
}

// Location renders a navigation as a URL. A string "from" state becomes a query parameter.
func Location(nav *domain.Navigation) string {
	if nav == nil {
		return "/"
	}
	from, ok := nav.State["from"].(string)
	if !ok || from == "" {
		return nav.Path
	}
	sep := "?"
	if strings.Contains(nav.Path, "?") {
		sep = "&"
	}
	return nav.Path + sep + url.Values{"from": {from}}.Encode()
}

// StatusFor maps a denial to the HTTP status used for API clients.
func StatusFor(reason Reason) int {
	switch reason {
	case ReasonUnauthenticated:
		return http.StatusUnauthorized
	case ReasonForbidden:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

// WantsHTML reports whether the client navigates with a browser rather than an API call.
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
