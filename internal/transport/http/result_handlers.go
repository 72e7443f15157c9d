package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/domain"
	"ipzy-gateway/internal/guard"
	"ipzy-gateway/internal/i18n"
	"ipzy-gateway/internal/payment"
)

type fetchGenerations func(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error)

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	s.serveGenerations(w, r, s.deps.Results.Recommendations)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	s.serveGenerations(w, r, s.deps.Results.RegenerateRecommendations)
}

// serveGenerations reads generations of the tab's stored session. An upstream 401/419 drops
// the cached identity and remembers the results view for after login.
func (s *Server) serveGenerations(w http.ResponseWriter, r *http.Request, fetch fetchGenerations) {
	ctx := r.Context()
	tab, identity := s.tab(r)
	h, ok := app.StoredSession(tab.Store)
	if !ok {
		writeError(w, http.StatusNotFound, errorBody{Code: "session_not_found", Message: i18n.T(ctx, "RecommendationsFailed")})
		return
	}

	gens, err := fetch(ctx, h.SessionID)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			removed := identity.ClearAuth()
			tab.Store.Set(app.KeyPostLoginRedirect, pathResult)
			s.logger.Info("upstream session expired", zap.Int("clearedKeys", removed))
			writeError(w, http.StatusUnauthorized, errorBody{
				Code:    string(guard.ReasonUnauthenticated),
				Message: i18n.T(ctx, "AuthSessionExpired"),
				Details: guard.Decision{Redirect: &domain.Navigation{
					Path:    s.deps.Guard.Paths().Login,
					State:   map[string]any{"from": pathResult},
					Replace: true,
				}, Reason: guard.ReasonUnauthenticated},
			})
			return
		}
		s.logger.Warn("recommendations failed", zap.Int64("sessionId", h.SessionID), zap.Error(err))
		writeError(w, http.StatusBadGateway, errorBody{Code: "recommendations_failed", Message: i18n.T(ctx, "RecommendationsFailed"), Retry: true})
		return
	}
	writeData(w, gens)
}

// handleValidatePayment checks the checkout form and echoes it in display format.
func (s *Server) handleValidatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var form payment.Form
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: i18n.T(ctx, "BadRequest")})
		return
	}
	if errs := form.Validate(s.deps.Clock()); len(errs) > 0 {
		for i := range errs {
			errs[i].Message = i18n.T(ctx, errs[i].MessageID)
		}
		writeError(w, http.StatusUnprocessableEntity, errorBody{
			Code:    "payment_invalid",
			Message: i18n.Tp(ctx, "PaymentInvalid", len(errs)),
			Details: errs,
		})
		return
	}
	normalized := form.Normalized()
	normalized.CVC = ""
	writeData(w, normalized)
}
