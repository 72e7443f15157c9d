package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"ipzy-gateway/internal/domain"
)

// DefaultAdvanceDelay leaves the selected option visible before moving on.
const DefaultAdvanceDelay = 150 * time.Millisecond

// Paths the attempt navigates to.
const (
	PathHome    = "/"
	PathLogin   = "/login"
	PathLoading = "/loading"
)

// ErrAttemptClosed is returned once an attempt has been torn down or has left InProgress.
var ErrAttemptClosed = errors.New("quiz attempt closed")

// QuizService is the remote quiz API the controller drives.
type QuizService interface {
	StartSession(ctx context.Context, quizID int64) (domain.SessionHandle, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID int64, values []string) (domain.AnswerAck, error)
	CompleteSession(ctx context.Context, sessionID int64) (domain.CompletionRecord, error)
	GenerateRecommendations(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error)
}

// Auth is the identity capability. CurrentUser is cached and cheap; RefreshFromServer hits the network.
type Auth interface {
	CurrentUser() *domain.User
	RefreshFromServer(ctx context.Context) bool
}

// Scheduler runs f after d. The returned func cancels it and reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// OutcomeKind says what AdvanceOrFinish did.
type OutcomeKind string

const (
	OutcomeAdvanced      OutcomeKind = "advanced"
	OutcomeLoginRequired OutcomeKind = "login_required"
	OutcomeFinished      OutcomeKind = "finished"
)

// Outcome is the result of moving past the current question.
type Outcome struct {
	Kind       OutcomeKind
	Step       int
	Navigation *domain.Navigation
	Answers    domain.AnswerMap
}

// Snapshot is a read-only view of an attempt.
type Snapshot struct {
	QuizID        int64                 `json:"quizId"`
	State         domain.AttemptState   `json:"state"`
	Step          int                   `json:"step"`
	Total         int                   `json:"total"`
	Answered      int                   `json:"answered"`
	Question      *domain.QuizQuestion  `json:"question,omitempty"`
	Questions     []domain.QuizQuestion `json:"questions"`
	Answers       domain.AnswerMap      `json:"answers"`
	Advancing     bool                  `json:"advancing"`
	LoginRequired bool                  `json:"loginRequired"`
	Navigation    *domain.Navigation    `json:"navigation,omitempty"`
}

// AttemptOptions tune an Attempt.
type AttemptOptions struct {
	AdvanceDelay time.Duration
	Scheduler    Scheduler
	Logger       *zap.Logger
}

func (o AttemptOptions) withDefaults() AttemptOptions {
	if o.AdvanceDelay <= 0 {
		o.AdvanceDelay = DefaultAdvanceDelay
	}
	if o.Scheduler == nil {
		o.Scheduler = timerScheduler{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Attempt drives one quiz attempt from the first question to submission.
type Attempt struct {
	quiz   QuizService
	store  Surface
	opts   AttemptOptions
	logger *zap.Logger

	mu            sync.Mutex
	quizID        int64
	questions     []domain.QuizQuestion
	step          int
	answers       domain.AnswerMap
	state         domain.AttemptState
	advancing     bool
	cancelAdvance func() bool
	loginPrompt   bool
	resumeOffered bool
	navigation    *domain.Navigation
	carried       domain.AnswerMap
	closed        bool
	subscribers   map[chan Snapshot]struct{}

	background sync.WaitGroup
}

// NewAttempt builds a NotStarted attempt over an already fetched question set.
func NewAttempt(quiz QuizService, store Surface, quizID int64, questions []domain.QuizQuestion, opts AttemptOptions) *Attempt {
	opts = opts.withDefaults()
	return &Attempt{
		quiz:        quiz,
		store:       store,
		opts:        opts,
		logger:      opts.Logger.With(zap.Int64("quizId", quizID)),
		quizID:      quizID,
		questions:   questions,
		answers:     domain.AnswerMap{},
		state:       domain.StateNotStarted,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// StartAttempt reuses a stored incomplete session for the same quiz, or requests a new one and
// overwrites any prior session state. Remote failures are not retried.
func (a *Attempt) StartAttempt(ctx context.Context, quizID int64) (domain.SessionHandle, error) {
	if h, ok := StoredSession(a.store); ok && h.QuizID == quizID && !h.Completed {
		a.mu.Lock()
		a.quizID = quizID
		if a.state == domain.StateNotStarted {
			a.state = domain.StateInProgress
		}
		a.broadcastLocked()
		a.mu.Unlock()
		return h, nil
	}

	h, err := a.quiz.StartSession(ctx, quizID)
	if err != nil {
		return domain.SessionHandle{}, &domain.SessionStartError{QuizID: quizID, Err: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	storeSession(a.store, h)
	a.quizID = quizID
	a.step = 0
	a.answers = domain.AnswerMap{}
	a.navigation = nil
	a.loginPrompt = false
	a.state = domain.StateInProgress
	a.broadcastLocked()
	a.logger.Debug("quiz session started", zap.Int64("sessionId", h.SessionID))
	return h, nil
}

// SelectAnswer records value for the question in focus, mirrors it remotely without waiting and
// schedules the advance. Calls made while an advance is pending are rejected.
func (a *Attempt) SelectAnswer(ctx context.Context, auth Auth, questionID int64, value string) (Snapshot, error) {
	a.mu.Lock()
	if a.closed || a.state != domain.StateInProgress {
		a.mu.Unlock()
		return Snapshot{}, ErrAttemptClosed
	}
	if a.loginPrompt {
		a.mu.Unlock()
		return Snapshot{}, domain.ErrLoginRequired
	}
	if a.advancing {
		a.mu.Unlock()
		return Snapshot{}, domain.ErrAdvanceInProgress
	}
	current := a.questions[a.step]
	if current.ID != questionID {
		a.mu.Unlock()
		return Snapshot{}, domain.ErrQuestionNotCurrent
	}
	if !current.HasOption(value) {
		a.mu.Unlock()
		return Snapshot{}, domain.ErrOptionNotFound
	}

	if len(a.answers) == 0 && !a.resumeOffered {
		// a fresh attempt supersedes a snapshot parked by an abandoned one
		a.store.Remove(KeyPendingAnswers)
	}
	a.answers[questionID] = value
	a.advancing = true

	detached := context.WithoutCancel(ctx)
	a.cancelAdvance = a.opts.Scheduler.AfterFunc(a.opts.AdvanceDelay, func() {
		if _, err := a.AdvanceOrFinish(detached, auth); err != nil && !errors.Is(err, ErrAttemptClosed) {
			a.logger.Warn("delayed advance failed", zap.Error(err))
		}
	})
	snap := a.broadcastLocked()
	a.mu.Unlock()

	if h, ok := StoredSession(a.store); ok {
		a.mirror(detached, h.SessionID, questionID, value)
	}
	return snap, nil
}

// mirror is fire-and-forget: failures are logged and never reach the caller.
func (a *Attempt) mirror(ctx context.Context, sessionID, questionID int64, value string) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		if _, err := a.quiz.SubmitAnswer(ctx, sessionID, questionID, []string{value}); err != nil {
			mirrorErr := &domain.AnswerMirrorError{SessionID: sessionID, QuestionID: questionID, Err: err}
			a.logger.Warn("answer mirror failed", zap.Error(mirrorErr))
		}
	}()
}

// AdvanceOrFinish moves to the next question, or at the last one either parks the answers for
// login or completes the session.
func (a *Attempt) AdvanceOrFinish(ctx context.Context, auth Auth) (Outcome, error) {
	a.mu.Lock()
	a.cancelAdvance = nil
	if a.closed || a.state != domain.StateInProgress {
		a.advancing = false
		a.mu.Unlock()
		return Outcome{}, ErrAttemptClosed
	}

	if a.step < len(a.questions)-1 {
		a.step++
		a.advancing = false
		a.broadcastLocked()
		step := a.step
		a.mu.Unlock()
		return Outcome{Kind: OutcomeAdvanced, Step: step}, nil
	}

	answers := a.answers.Clone()
	if auth == nil || auth.CurrentUser() == nil {
		parkAnswers(a.store, answers)
		a.store.Set(KeyPostLoginRedirect, PathLoading)
		a.state = domain.StateAwaitingAuth
		a.advancing = false
		a.loginPrompt = true
		a.broadcastLocked()
		step := a.step
		a.mu.Unlock()
		a.logger.Info("answers parked until login", zap.Int("answers", len(answers)))
		return Outcome{Kind: OutcomeLoginRequired, Step: step, Answers: answers}, nil
	}
	a.mu.Unlock()

	return a.complete(ctx, answers)
}

// CompleteWith enters Completing with answers recovered from a parked snapshot. The answers are
// replayed to the current remote session first; replay failures are swallowed like any mirror.
func (a *Attempt) CompleteWith(ctx context.Context, answers domain.AnswerMap) (Outcome, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return Outcome{}, ErrAttemptClosed
	}
	if a.cancelAdvance != nil {
		a.cancelAdvance()
		a.cancelAdvance = nil
	}
	a.answers = answers.Clone()
	a.advancing = false
	a.loginPrompt = false
	a.mu.Unlock()

	if h, ok := StoredSession(a.store); ok && !h.Completed {
		for _, qid := range answers.QuestionIDs() {
			if _, err := a.quiz.SubmitAnswer(ctx, h.SessionID, qid, []string{answers[qid]}); err != nil {
				mirrorErr := &domain.AnswerMirrorError{SessionID: h.SessionID, QuestionID: qid, Err: err}
				a.logger.Warn("answer replay failed", zap.Error(mirrorErr))
			}
		}
	}
	return a.complete(ctx, answers.Clone())
}

func (a *Attempt) complete(ctx context.Context, answers domain.AnswerMap) (Outcome, error) {
	a.mu.Lock()
	a.state = domain.StateCompleting
	a.broadcastLocked()
	a.mu.Unlock()

	if h, ok := StoredSession(a.store); ok {
		if _, err := a.quiz.CompleteSession(ctx, h.SessionID); err != nil {
			completionErr := &domain.SessionCompletionError{SessionID: h.SessionID, Err: err}
			a.logger.Warn("session completion failed", zap.Error(completionErr))
		} else {
			h.Completed = true
			storeSession(a.store, h)
			a.requestRecommendations(context.WithoutCancel(ctx), h.SessionID)
		}
	}

	nav := &domain.Navigation{Path: PathLoading, State: map[string]any{"answers": answers}}

	a.mu.Lock()
	a.state = domain.StateCompleted
	a.advancing = false
	a.carried = answers
	a.navigation = nav
	a.broadcastLocked()
	step := a.step
	a.mu.Unlock()

	return Outcome{Kind: OutcomeFinished, Step: step, Navigation: nav, Answers: answers.Clone()}, nil
}

// requestRecommendations triggers generation; the results view polls for the outcome.
func (a *Attempt) requestRecommendations(ctx context.Context, sessionID int64) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		if _, err := a.quiz.GenerateRecommendations(ctx, sessionID); err != nil {
			reqErr := &domain.RecommendationRequestError{SessionID: sessionID, Err: err}
			a.logger.Warn("recommendation request failed", zap.Error(reqErr))
		}
	}()
}

// ResetAttempt clears the stored handle and answers unless the stored session is completed.
func (a *Attempt) ResetAttempt() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resetLocked()
}

func (a *Attempt) resetLocked() bool {
	if h, ok := StoredSession(a.store); ok && h.Completed {
		return false
	}
	a.store.Remove(KeyQuizSession)
	a.answers = domain.AnswerMap{}
	a.step = 0
	a.state = domain.StateNotStarted
	a.navigation = nil
	a.loginPrompt = false
	a.broadcastLocked()
	return true
}

// Back steps to the previous question. At the first question the attempt is reset and the
// returned navigation leads home.
func (a *Attempt) Back() (*domain.Navigation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrAttemptClosed
	}
	if a.loginPrompt {
		return nil, domain.ErrLoginRequired
	}
	if a.advancing {
		return nil, domain.ErrAdvanceInProgress
	}
	if a.state == domain.StateInProgress && a.step > 0 {
		a.step--
		a.broadcastLocked()
		return nil, nil
	}
	a.resetLocked()
	return &domain.Navigation{Path: PathHome}, nil
}

// DismissLoginPrompt clears the prompt flag, e.g. once the user chose to go to login.
func (a *Attempt) DismissLoginPrompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginPrompt = false
	a.broadcastLocked()
}

// RequireLogin raises the blocking login prompt without touching answers.
func (a *Attempt) RequireLogin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginPrompt = true
	a.resumeOffered = true
	a.broadcastLocked()
}

// Teardown cancels a pending advance and resets the attempt unless its session is completed.
// Mirrors already sent are not retracted.
func (a *Attempt) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.cancelAdvance != nil {
		a.cancelAdvance()
		a.cancelAdvance = nil
	}
	a.advancing = false
	a.resetLocked()
	a.closed = true
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
}

// Carried returns the answers handed to the results flow, if the attempt finished.
func (a *Attempt) Carried() (domain.AnswerMap, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.carried) == 0 {
		return nil, false
	}
	return a.carried.Clone(), true
}

// State reports the lifecycle state.
func (a *Attempt) State() domain.AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Answers returns a copy of the AnswerMap.
func (a *Attempt) Answers() domain.AnswerMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answers.Clone()
}

// Snapshot returns the current view.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Wait blocks until background mirrors and recommendation requests have returned.
func (a *Attempt) Wait() {
	a.background.Wait()
}

// Subscribe returns a channel that receives a snapshot after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	a.subscribers[ch] = struct{}{}
	// buffer is empty, so this cannot block while holding the lock
	ch <- a.snapshotLocked()
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) broadcastLocked() Snapshot {
	snap := a.snapshotLocked()
	for ch := range a.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: drop its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (a *Attempt) snapshotLocked() Snapshot {
	answered := 0
	for i := 0; i < a.step && i < len(a.questions); i++ {
		if _, ok := a.answers[a.questions[i].ID]; ok {
			answered++
		}
	}
	snap := Snapshot{
		QuizID:        a.quizID,
		State:         a.state,
		Step:          a.step,
		Total:         len(a.questions),
		Answered:      answered,
		Questions:     a.questions,
		Answers:       a.answers.Clone(),
		Advancing:     a.advancing,
		LoginRequired: a.loginPrompt,
		Navigation:    a.navigation,
	}
	if a.step < len(a.questions) {
		q := a.questions[a.step]
		snap.Question = &q
	}
	return snap
}
