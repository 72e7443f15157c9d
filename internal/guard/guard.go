// Package guard decides whether a navigation to a protected view is allowed and, if not, where to
// send the user instead. Guards never fail: every evaluation resolves to Allow or a redirect.
package guard

import (
	"context"

	"go.uber.org/zap"
	"ipzy-gateway/internal/domain"
)

// Requirement lists the predicates a view needs. Guest-only views are the inverse of Auth.
type Requirement struct {
	GuestOnly     bool `json:"guestOnly,omitempty"`
	Auth          bool `json:"auth,omitempty"`
	Admin         bool `json:"admin,omitempty"`
	CompletedQuiz bool `json:"completedQuiz,omitempty"`
}

// Reason explains a redirect.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonAlreadyAuthenticated Reason = "already_authenticated"
	ReasonUnauthenticated      Reason = "unauthenticated"
	ReasonForbidden            Reason = "forbidden"
	ReasonQuizIncomplete       Reason = "quiz_incomplete"
)

// Decision is computed on every entry and never cached.
type Decision struct {
	Allow    bool               `json:"allow"`
	Redirect *domain.Navigation `json:"redirect,omitempty"`
	Reason   Reason             `json:"reason,omitempty"`
}

// Authenticator is the identity capability guards consult.
type Authenticator interface {
	CurrentUser() *domain.User
	RefreshFromServer(ctx context.Context) bool
}

// AdminRefresher is implemented by authenticators that can re-read an admin session specifically.
type AdminRefresher interface {
	RefreshAdminFromServer(ctx context.Context) bool
}

// Evidence reports whether completed quiz answers are available, either carried by navigation
// or parked for the login round-trip.
type Evidence interface {
	HasCompletedAnswers() bool
}

// EvidenceFunc adapts a function to Evidence.
type EvidenceFunc func() bool

func (f EvidenceFunc) HasCompletedAnswers() bool { return f() }

// Subject is who is navigating where.
type Subject struct {
	Path     string
	Auth     Authenticator
	Evidence Evidence
}

// Paths are the redirect targets.
type Paths struct {
	Login      string
	AdminLogin string
	Landing    string
	Quiz       string
}

// DefaultPaths match the web app's routes.
var DefaultPaths = Paths{
	Login:      "/login",
	AdminLogin: "/admin/login",
	Landing:    "/",
	Quiz:       "/quiz",
}

// Guard evaluates requirements against a route table.
type Guard struct {
	paths  Paths
	routes []Route
	logger *zap.Logger
}

func New(paths Paths, routes []Route, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{paths: paths, routes: routes, logger: logger}
}

// Paths returns the configured redirect targets.
func (g *Guard) Paths() Paths { return g.paths }

// Check looks up the requirement of subj.Path and evaluates it. Unlisted paths are public.
func (g *Guard) Check(ctx context.Context, subj Subject) Decision {
	req, ok := g.RequirementFor(subj.Path)
	if !ok {
		return Decision{Allow: true}
	}
	return g.Evaluate(ctx, req, subj)
}

// Evaluate applies the predicates in fixed order: guest-only, authentication (with at most one
// refresh), role, quiz completion.
func (g *Guard) Evaluate(ctx context.Context, req Requirement, subj Subject) Decision {
	if req.GuestOnly {
		if subj.Auth != nil && subj.Auth.CurrentUser() != nil {
			return g.deny(subj, ReasonAlreadyAuthenticated, &domain.Navigation{Path: g.paths.Landing, Replace: true})
		}
	}

	if req.Auth || req.Admin {
		user := g.authenticate(ctx, subj.Auth, req.Admin)
		if user == nil {
			target := g.paths.Login
			if req.Admin {
				target = g.paths.AdminLogin
			}
			return g.deny(subj, ReasonUnauthenticated, &domain.Navigation{
				Path:    target,
				State:   map[string]any{"from": subj.Path},
				Replace: true,
			})
		}
		if req.Admin && !user.IsAdmin() {
			return g.deny(subj, ReasonForbidden, &domain.Navigation{Path: g.paths.Landing, Replace: true})
		}
	}

	if req.CompletedQuiz {
		if subj.Evidence == nil || !subj.Evidence.HasCompletedAnswers() {
			return g.deny(subj, ReasonQuizIncomplete, &domain.Navigation{Path: g.paths.Quiz, Replace: true})
		}
	}
	return Decision{Allow: true}
}

// authenticate returns the cached user or tries one refresh. A failed refresh is "not authenticated".
func (g *Guard) authenticate(ctx context.Context, auth Authenticator, admin bool) *domain.User {
	if auth == nil {
		return nil
	}
	if user := auth.CurrentUser(); user != nil {
		return user
	}
	refreshed := false
	if ar, ok := auth.(AdminRefresher); admin && ok {
		refreshed = ar.RefreshAdminFromServer(ctx)
	} else {
		refreshed = auth.RefreshFromServer(ctx)
	}
	if !refreshed {
		return nil
	}
	return auth.CurrentUser()
}

func (g *Guard) deny(subj Subject, reason Reason, nav *domain.Navigation) Decision {
	g.logger.Debug("navigation redirected",
		zap.String("path", subj.Path),
		zap.String("reason", string(reason)),
		zap.String("to", nav.Path))
	return Decision{Redirect: nav, Reason: reason}
}
