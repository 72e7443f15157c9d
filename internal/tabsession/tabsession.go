// Package tabsession identifies the browser tab a request belongs to. The id travels in a signed
// cookie without Max-Age, so it lives exactly as long as the browser session.
package tabsession

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCookieName = "ipzy_tab"
	issuer            = "ipzy-gateway"
)

// ErrInvalidToken is returned for tokens that fail signature, issuer or subject checks.
var ErrInvalidToken = errors.New("invalid tab session token")

// Claims carries the tab id as the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager issues and verifies tab-session cookies.
type Manager struct {
	secret     []byte
	cookieName string
	secure     bool
	clock      func() time.Time
	logger     *zap.Logger
	newID      func() string
}

// Options tune a Manager.
type Options struct {
	CookieName string
	Secure     bool
	Logger     *zap.Logger
}

func NewManager(secret string, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		secret:     []byte(secret),
		cookieName: opts.CookieName,
		secure:     opts.Secure,
		clock:      time.Now,
		logger:     opts.Logger,
		newID:      func() string { return uuid.NewString() },
	}
}

// CookieName is the name of the tab cookie; it must never be forwarded upstream.
func (m *Manager) CookieName() string { return m.cookieName }

// Issue signs a token for tabID.
func (m *Manager) Issue(tabID string) (string, error) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  tabID,
		IssuedAt: jwt.NewNumericDate(m.clock()),
	}}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// Parse verifies a token and returns its tab id.
func (m *Manager) Parse(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil || !token.Valid {
		return "", errors.Join(ErrInvalidToken, err)
	}
	c, _ := token.Claims.(*Claims)
	if c == nil || c.Subject == "" {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(c.Subject); err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	return c.Subject, nil
}

// Middleware attaches the tab id to every request, minting a new tab (and cookie) when the
// request carries none or an invalid one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tabID, fresh := m.resolve(r)
		if fresh {
			if err := m.setCookie(w, tabID); err != nil {
				m.logger.Error("issue tab session", zap.Error(err))
				http.Error(w, "tab session unavailable", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithTabID(r.Context(), tabID)))
	})
}

func (m *Manager) resolve(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err == nil && c.Value != "" {
		tabID, err := m.Parse(c.Value)
		if err == nil {
			return tabID, false
		}
		m.logger.Debug("discarding tab session cookie", zap.Error(err))
	}
	return m.newID(), true
}

func (m *Manager) setCookie(w http.ResponseWriter, tabID string) error {
	token, err := m.Issue(tabID)
	if err != nil {
		return err
	}
	// no Expires/MaxAge: a session cookie ends with the browser session
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

type ctxKey struct{}

// WithTabID stores the tab id in ctx.
func WithTabID(ctx context.Context, tabID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tabID)
}

// TabID returns the tab id stored by the middleware.
func TabID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
