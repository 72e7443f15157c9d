package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAdvanceInProgress is returned when an answer arrives while the previous one is still advancing.
	ErrAdvanceInProgress = errors.New("advance already in progress")
	// ErrLoginRequired is returned while the blocking login prompt is up.
	ErrLoginRequired = errors.New("login required to continue")
	// ErrAttemptNotLoaded is returned when a tab has no loaded quiz attempt.
	ErrAttemptNotLoaded = errors.New("quiz attempt not loaded")
	// ErrNoQuestions indicates the quiz service returned an empty question set.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrQuestionNotCurrent indicates an answer for a question other than the one in focus.
	ErrQuestionNotCurrent = errors.New("question is not the current step")
	// ErrOptionNotFound indicates a submitted value is not one of the question's options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrQuizNotFound indicates no active quiz is available.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound indicates no remote session is stored for the tab.
	ErrSessionNotFound = errors.New("quiz session not found")
)

// APIError is a failed quiz service or identity call.
// Status is the HTTP status of the response, which may be 2xx when the envelope reports failure.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Status >= 400 && e.Code != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.Status, e.Code, e.Message)
	case e.Status >= 400:
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	case e.Code != "":
		return e.Code + ": " + e.Message
	default:
		return e.Message
	}
}

// IsUnauthorized reports whether the upstream rejected the caller's credentials.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == 401 || e.Status == 419
}

// SessionStartError is surfaced to the user with a retry affordance.
type SessionStartError struct {
	QuizID int64
	Err    error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("start quiz session %d: %v", e.QuizID, e.Err)
}

func (e *SessionStartError) Unwrap() error { return e.Err }

// QuestionLoadError is surfaced to the user with a retry affordance.
type QuestionLoadError struct {
	QuizID int64
	Err    error
}

func (e *QuestionLoadError) Error() string {
	if e.QuizID == 0 {
		return fmt.Sprintf("load quiz: %v", e.Err)
	}
	return fmt.Sprintf("load questions for quiz %d: %v", e.QuizID, e.Err)
}

func (e *QuestionLoadError) Unwrap() error { return e.Err }

// AnswerMirrorError is logged and swallowed.
type AnswerMirrorError struct {
	SessionID  int64
	QuestionID int64
	Err        error
}

func (e *AnswerMirrorError) Error() string {
	return fmt.Sprintf("mirror answer q%d to session %d: %v", e.QuestionID, e.SessionID, e.Err)
}

func (e *AnswerMirrorError) Unwrap() error { return e.Err }

// SessionCompletionError is logged; navigation to results still happens.
type SessionCompletionError struct {
	SessionID int64
	Err       error
}

func (e *SessionCompletionError) Error() string {
	return fmt.Sprintf("complete session %d: %v", e.SessionID, e.Err)
}

func (e *SessionCompletionError) Unwrap() error { return e.Err }

// RecommendationRequestError is logged; the results view owns retries.
type RecommendationRequestError struct {
	SessionID int64
	Err       error
}

func (e *RecommendationRequestError) Error() string {
	return fmt.Sprintf("request recommendations for session %d: %v", e.SessionID, e.Err)
}

func (e *RecommendationRequestError) Unwrap() error { return e.Err }

// SnapshotCorruptionError is logged; the snapshot is discarded.
type SnapshotCorruptionError struct {
	Key string
	Err error
}

func (e *SnapshotCorruptionError) Error() string {
	return fmt.Sprintf("corrupt snapshot %q: %v", e.Key, e.Err)
}

func (e *SnapshotCorruptionError) Unwrap() error { return e.Err }

// AuthRefreshError is treated as "not authenticated".
type AuthRefreshError struct {
	Err error
}

func (e *AuthRefreshError) Error() string {
	return fmt.Sprintf("refresh identity: %v", e.Err)
}

func (e *AuthRefreshError) Unwrap() error { return e.Err }
