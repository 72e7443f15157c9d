package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"ipzy-gateway/internal/domain"
)

// AttemptRegistry holds the live attempt of each tab session (in-memory, expiring, etc).
type AttemptRegistry interface {
	Get(tabID string) (*Attempt, bool)
	Put(tabID string, attempt *Attempt) (previous *Attempt)
	Delete(tabID string)
}

// QuizCatalog loads quiz content (from the quiz service, a cache, or the catalog database).
type QuizCatalog interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error)
	FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error)
}

// Tab bundles what a request knows about its tab session.
type Tab struct {
	ID    string
	Store Surface
	Auth  Auth
}

// LoadResult is returned when the quiz view is (re)entered.
type LoadResult struct {
	Snapshot Snapshot     `json:"snapshot"`
	Resume   ResumeResult `json:"resume"`
}

// FlowService contains the quiz flow use cases for every tab.
type FlowService struct {
	catalog  QuizCatalog
	quiz     QuizService
	attempts AttemptRegistry
	opts     AttemptOptions
	logger   *zap.Logger
}

func NewFlowService(catalog QuizCatalog, quiz QuizService, attempts AttemptRegistry, opts AttemptOptions) *FlowService {
	opts = opts.withDefaults()
	return &FlowService{
		catalog:  catalog,
		quiz:     quiz,
		attempts: attempts,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// DefaultQuizID picks the active quiz with the lowest display order.
func DefaultQuizID(ctx context.Context, catalog QuizCatalog) (int64, error) {
	quizzes, err := catalog.ListQuizzes(ctx)
	if err != nil {
		return 0, err
	}
	if len(quizzes) == 0 {
		return 0, domain.ErrQuizNotFound
	}
	best := quizzes[0]
	for _, q := range quizzes[1:] {
		if q.DisplayOrder < best.DisplayOrder {
			best = q
		}
	}
	return best.QuizID, nil
}

// Load enters the quiz view: fetch questions, start or reuse the remote session, then reconcile
// parked answers. Any attempt the tab already had is torn down first, as leaving the view would.
func (s *FlowService) Load(ctx context.Context, tab Tab) (LoadResult, error) {
	quizID, err := DefaultQuizID(ctx, s.catalog)
	if err != nil {
		return LoadResult{}, &domain.QuestionLoadError{Err: err}
	}
	questions, err := s.catalog.FetchQuestions(ctx, quizID)
	if err != nil {
		return LoadResult{}, &domain.QuestionLoadError{QuizID: quizID, Err: err}
	}
	if len(questions) == 0 {
		return LoadResult{}, &domain.QuestionLoadError{QuizID: quizID, Err: domain.ErrNoQuestions}
	}

	logger := s.logger.With(zap.String("tab", tab.ID))
	opts := s.opts
	opts.Logger = logger
	attempt := NewAttempt(s.quiz, tab.Store, quizID, questions, opts)
	if prev := s.attempts.Put(tab.ID, attempt); prev != nil {
		prev.Teardown()
	}

	if _, err := attempt.StartAttempt(ctx, quizID); err != nil {
		return LoadResult{}, err
	}

	resume, _, err := NewResumer(tab.Store, logger).Reconcile(ctx, attempt, tab.Auth)
	if err != nil {
		logger.Warn("resumption failed", zap.Error(err))
	}
	return LoadResult{Snapshot: attempt.Snapshot(), Resume: resume}, nil
}

// Select records an answer for the tab's current question.
func (s *FlowService) Select(ctx context.Context, tab Tab, questionID int64, value string) (Snapshot, error) {
	attempt, ok := s.attempts.Get(tab.ID)
	if !ok {
		return Snapshot{}, domain.ErrAttemptNotLoaded
	}
	return attempt.SelectAnswer(ctx, tab.Auth, questionID, value)
}

// Back moves the tab's attempt one question back, or resets it and leads home from the first one.
func (s *FlowService) Back(tab Tab) (Snapshot, *domain.Navigation, error) {
	attempt, ok := s.attempts.Get(tab.ID)
	if !ok {
		return Snapshot{}, nil, domain.ErrAttemptNotLoaded
	}
	nav, err := attempt.Back()
	if err != nil {
		return Snapshot{}, nil, err
	}
	return attempt.Snapshot(), nav, nil
}

// State returns the current snapshot of the tab's attempt.
func (s *FlowService) State(tab Tab) (Snapshot, error) {
	attempt, ok := s.attempts.Get(tab.ID)
	if !ok {
		return Snapshot{}, domain.ErrAttemptNotLoaded
	}
	return attempt.Snapshot(), nil
}

// Subscribe streams snapshots of the tab's attempt.
func (s *FlowService) Subscribe(tab Tab) (<-chan Snapshot, func(), error) {
	attempt, ok := s.attempts.Get(tab.ID)
	if !ok {
		return nil, nil, domain.ErrAttemptNotLoaded
	}
	ch, cancel := attempt.Subscribe()
	return ch, cancel, nil
}

// Leave is the quiz view's teardown: cancel a pending advance and reset unless completed.
// The attempt stays registered so answers carried into the results flow remain visible.
func (s *FlowService) Leave(tab Tab) {
	if attempt, ok := s.attempts.Get(tab.ID); ok {
		attempt.Teardown()
	}
}

// ConfirmLogin answers the blocking login prompt.
func (s *FlowService) ConfirmLogin(tab Tab) domain.Navigation {
	attempt, _ := s.attempts.Get(tab.ID)
	return NewResumer(tab.Store, s.logger).ConfirmLogin(attempt)
}

// CompletedAnswers returns answers that prove a finished quiz: those carried by the tab's
// attempt, else a readable parked snapshot.
func (s *FlowService) CompletedAnswers(tab Tab) (domain.AnswerMap, bool) {
	if attempt, ok := s.attempts.Get(tab.ID); ok {
		if answers, ok := attempt.Carried(); ok {
			return answers, true
		}
	}
	answers, ok, err := PendingAnswers(tab.Store)
	if !ok || err != nil {
		return nil, false
	}
	return answers, true
}

// HasCompletedAnswers reports whether results-class views may be entered.
func (s *FlowService) HasCompletedAnswers(tab Tab) bool {
	_, ok := s.CompletedAnswers(tab)
	return ok
}

// IsUserFacing reports whether err must be shown as a blocking error with a retry action.
func IsUserFacing(err error) bool {
	var startErr *domain.SessionStartError
	var loadErr *domain.QuestionLoadError
	return errors.As(err, &startErr) || errors.As(err, &loadErr)
}
