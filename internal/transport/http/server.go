package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/domain"
	"ipzy-gateway/internal/guard"
	"ipzy-gateway/internal/i18n"
	"ipzy-gateway/internal/infra/quizapi"
	"ipzy-gateway/internal/tabsession"
)

// Identity is the per-tab auth capability the gateway needs.
type Identity interface {
	CurrentUser() *domain.User
	RefreshFromServer(ctx context.Context) bool
	RefreshAdminFromServer(ctx context.Context) bool
	Logout(ctx context.Context)
	ClearAuth() int
}

// Results reads recommendation generations for a finished session.
type Results interface {
	Recommendations(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error)
	RegenerateRecommendations(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error)
}

// Deps wires the HTTP surface to the use cases.
type Deps struct {
	Flow       *app.FlowService
	Surfaces   app.SurfaceProvider
	Identities func(store app.Surface) Identity
	Results    Results
	Sessions   *tabsession.Manager
	Guard      *guard.Guard
	Logger     *zap.Logger

	AllowedOrigins []string
	// LoginURL is where the identity provider's login flow starts.
	LoginURL       string
	RequestTimeout time.Duration
	Clock          func() time.Time
}

// Server exposes the quiz flow, guards and auth round-trip to the web app.
type Server struct {
	deps   Deps
	logger *zap.Logger
	ws     *WSHandler
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}
	s := &Server{deps: deps, logger: deps.Logger}
	s.ws = NewWSHandler(s, deps.AllowedOrigins)
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.deps.Sessions.Middleware, i18n.Middleware(), s.forwardCookies)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws/quiz", s.ws.ServeWS)
	r.Get("/auth/callback", s.handleAuthCallback)
	r.Get("/auth/login/kakao", s.handleLogin)

	r.Route("/api", func(api chi.Router) {
		// websocket streams live outside this group; they must not be cut off
		api.Use(middleware.Timeout(s.deps.RequestTimeout))

		api.Get("/guard", s.handleGuard)

		api.Route("/quiz", func(q chi.Router) {
			q.Get("/", s.handleLoad)
			q.Delete("/", s.handleLeave)
			q.Get("/state", s.handleState)
			q.Post("/answers", s.handleAnswer)
			q.Post("/back", s.handleBack)
			q.Post("/login-prompt/confirm", s.handleConfirmLogin)
		})

		api.Get("/auth/me", s.handleMe)
		api.Post("/auth/logout", s.handleLogout)

		api.Group(func(res chi.Router) {
			res.Use(s.deps.Guard.Middleware(guard.Requirement{Auth: true, CompletedQuiz: true}, s.subjectAt(pathResult), s.deny))
			res.Get("/recommendations", s.handleRecommendations)
			res.Post("/recommendations/regenerate", s.handleRegenerate)
		})

		api.With(s.deps.Guard.Middleware(guard.Requirement{Auth: true}, s.subjectAt(pathPayment), s.deny)).
			Post("/payment/validate", s.handleValidatePayment)
	})
	return r
}

const (
	pathResult  = "/result"
	pathPayment = "/payment"
)

// tab resolves the tab session of a request. The tab middleware guarantees an id.
func (s *Server) tab(r *http.Request) (app.Tab, Identity) {
	id, _ := tabsession.TabID(r.Context())
	store := s.deps.Surfaces.Open(id)
	identity := s.deps.Identities(store)
	return app.Tab{ID: id, Store: store, Auth: identity}, identity
}

func (s *Server) evidence(tab app.Tab) guard.Evidence {
	return guard.EvidenceFunc(func() bool { return s.deps.Flow.HasCompletedAnswers(tab) })
}

// subjectAt evaluates API calls as if the user navigated to the view that owns them.
func (s *Server) subjectAt(path string) guard.SubjectFunc {
	return func(r *http.Request) guard.Subject {
		tab, identity := s.tab(r)
		return guard.Subject{Path: path, Auth: identity, Evidence: s.evidence(tab)}
	}
}

// deny redirects browser navigations and answers API calls with the decision as JSON.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, d guard.Decision) {
	if guard.WantsHTML(r) {
		guard.Redirect(w, r, d)
		return
	}
	writeError(w, guard.StatusFor(d.Reason), errorBody{
		Code:    string(d.Reason),
		Message: i18n.T(r.Context(), guardMessageID(d.Reason)),
		Details: d,
	})
}

func guardMessageID(reason guard.Reason) string {
	switch reason {
	case guard.ReasonAlreadyAuthenticated:
		return "GuardAlreadyAuthenticated"
	case guard.ReasonUnauthenticated:
		return "GuardUnauthenticated"
	case guard.ReasonForbidden:
		return "GuardForbidden"
	case guard.ReasonQuizIncomplete:
		return "GuardQuizIncomplete"
	default:
		return "BadRequest"
	}
}

// forwardCookies hands the browser's upstream credentials to the quiz service client.
func (s *Server) forwardCookies(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := quizapi.WithCookies(r.Context(), r.Cookies(), s.deps.Sessions.CookieName())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}
