package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/domain"
	"ipzy-gateway/internal/i18n"
)

type answerRequest struct {
	QuestionID int64  `json:"questionId"`
	Value      string `json:"value"`
}

type backResponse struct {
	Snapshot   app.Snapshot       `json:"snapshot"`
	Navigation *domain.Navigation `json:"navigation,omitempty"`
}

// handleLoad enters the quiz view. It replaces any attempt the tab already had.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	tab, _ := s.tab(r)
	res, err := s.deps.Flow.Load(r.Context(), tab)
	if err != nil {
		s.writeQuizError(w, r, err)
		return
	}
	writeData(w, res)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	tab, _ := s.tab(r)
	snap, err := s.deps.Flow.State(tab)
	if err != nil {
		s.writeQuizError(w, r, err)
		return
	}
	writeData(w, snap)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil || req.QuestionID == 0 || req.Value == "" {
		writeError(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: i18n.T(r.Context(), "BadRequest")})
		return
	}
	tab, _ := s.tab(r)
	snap, err := s.deps.Flow.Select(r.Context(), tab, req.QuestionID, req.Value)
	if err != nil {
		s.writeQuizError(w, r, err)
		return
	}
	writeData(w, snap)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	tab, _ := s.tab(r)
	snap, nav, err := s.deps.Flow.Back(tab)
	if err != nil {
		s.writeQuizError(w, r, err)
		return
	}
	writeData(w, backResponse{Snapshot: snap, Navigation: nav})
}

// handleLeave is the quiz view's teardown.
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	tab, _ := s.tab(r)
	s.deps.Flow.Leave(tab)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmLogin(w http.ResponseWriter, r *http.Request) {
	tab, _ := s.tab(r)
	writeData(w, s.deps.Flow.ConfirmLogin(tab))
}

// quizErrorBody maps a flow error to its status and localized body.
func (s *Server) quizErrorBody(r *http.Request, err error) (int, errorBody) {
	ctx := r.Context()
	var startErr *domain.SessionStartError
	var loadErr *domain.QuestionLoadError
	switch {
	case errors.Is(err, domain.ErrAdvanceInProgress):
		return http.StatusConflict, errorBody{Code: "advance_in_progress", Message: i18n.T(ctx, "QuizAdvanceInProgress")}
	case errors.Is(err, domain.ErrLoginRequired):
		return http.StatusConflict, errorBody{Code: "login_required", Message: i18n.T(ctx, "QuizLoginPrompt")}
	case errors.Is(err, app.ErrAttemptClosed):
		return http.StatusConflict, errorBody{Code: "attempt_closed", Message: i18n.T(ctx, "QuizClosed")}
	case errors.Is(err, domain.ErrAttemptNotLoaded):
		return http.StatusNotFound, errorBody{Code: "attempt_not_loaded", Message: i18n.T(ctx, "QuizNotLoaded")}
	case errors.Is(err, domain.ErrQuestionNotCurrent), errors.Is(err, domain.ErrOptionNotFound):
		return http.StatusUnprocessableEntity, errorBody{Code: "invalid_answer", Message: i18n.T(ctx, "QuizInvalidAnswer")}
	case errors.As(err, &startErr):
		s.logger.Warn("quiz session start failed", zap.Error(err))
		return http.StatusBadGateway, errorBody{Code: "session_start_failed", Message: i18n.T(ctx, "QuizSessionStartFailed"), Retry: true}
	case errors.As(err, &loadErr):
		s.logger.Warn("quiz load failed", zap.Error(err))
		return http.StatusBadGateway, errorBody{Code: "quiz_load_failed", Message: i18n.T(ctx, "QuizLoadFailed"), Retry: true}
	default:
		s.logger.Error("quiz request failed", zap.Error(err))
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: i18n.T(ctx, "InternalError")}
	}
}

func (s *Server) writeQuizError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := s.quizErrorBody(r, err)
	writeError(w, status, body)
}
