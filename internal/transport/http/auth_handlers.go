package http

import (
	"net/http"
	"net/url"
	"strings"

	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/guard"
	"ipzy-gateway/internal/i18n"
)

// handleGuard evaluates the guard of a view before the web app renders it.
func (s *Server) handleGuard(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !localPath(path) {
		writeError(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: i18n.T(r.Context(), "BadRequest")})
		return
	}
	tab, identity := s.tab(r)
	d := s.deps.Guard.Check(r.Context(), guard.Subject{Path: path, Auth: identity, Evidence: s.evidence(tab)})
	writeData(w, d)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	_, identity := s.tab(r)
	user := identity.CurrentUser()
	if user == nil && identity.RefreshFromServer(r.Context()) {
		user = identity.CurrentUser()
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, errorBody{Code: string(guard.ReasonUnauthenticated), Message: i18n.T(r.Context(), "GuardUnauthenticated")})
		return
	}
	writeData(w, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, identity := s.tab(r)
	identity.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleLogin starts the provider's login flow. A destination already recorded for parked quiz
// answers survives, so finishing login resumes the quiz.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if !localPath(from) {
		from = app.PathHome
	}
	tab, _ := s.tab(r)
	_, hasRedirect := tab.Store.Get(app.KeyPostLoginRedirect)
	_, hasPending := tab.Store.Get(app.KeyPendingAnswers)
	if !hasRedirect || !hasPending {
		tab.Store.Set(app.KeyPostLoginRedirect, from)
	}
	http.Redirect(w, r, s.deps.LoginURL, http.StatusSeeOther)
}

// handleAuthCallback finishes the login round-trip. The provider reports failures with a code
// query parameter.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	tab, identity := s.tab(r)
	to := s.consumeRedirect(tab.Store)
	login := s.deps.Guard.Paths().Login

	if code := r.URL.Query().Get("code"); code != "" {
		q := url.Values{"from": {to}, "error": {i18n.T(r.Context(), i18n.OAuthMessageID(code))}}
		http.Redirect(w, r, login+"?"+q.Encode(), http.StatusSeeOther)
		return
	}
	if !identity.RefreshFromServer(r.Context()) {
		http.Redirect(w, r, login+"?"+url.Values{"from": {to}}.Encode(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (s *Server) consumeRedirect(store app.Surface) string {
	to, ok := store.Get(app.KeyPostLoginRedirect)
	store.Remove(app.KeyPostLoginRedirect)
	if !ok || !localPath(to) {
		return app.PathHome
	}
	return to
}

// localPath accepts only same-origin absolute paths.
func localPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}
