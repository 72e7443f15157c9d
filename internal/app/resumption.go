package app

import (
	"context"

	"go.uber.org/zap"
	"ipzy-gateway/internal/domain"
)

// ResumeResult says what Reconcile did with a parked snapshot.
type ResumeResult string

const (
	ResumeNone          ResumeResult = "none"
	ResumeForwarded     ResumeResult = "forwarded"
	ResumeDiscarded     ResumeResult = "discarded"
	ResumeLoginRequired ResumeResult = "login_required"
)

// Resumer reconciles a freshly loaded attempt with answers parked before a login redirect.
type Resumer struct {
	store  Surface
	logger *zap.Logger
}

func NewResumer(store Surface, logger *zap.Logger) *Resumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resumer{store: store, logger: logger}
}

// Reconcile runs once after the question set and session are loaded. It never returns a
// snapshot parse error: corrupt snapshots are deleted and the attempt carries on fresh.
func (r *Resumer) Reconcile(ctx context.Context, attempt *Attempt, auth Auth) (ResumeResult, Outcome, error) {
	answers, ok, err := PendingAnswers(r.store)
	if !ok {
		return ResumeNone, Outcome{}, nil
	}
	if err != nil {
		r.store.Remove(KeyPendingAnswers)
		r.logger.Warn("discarding parked answers", zap.Error(err))
		return ResumeDiscarded, Outcome{}, nil
	}

	if !authenticated(ctx, auth) {
		attempt.RequireLogin()
		return ResumeLoginRequired, Outcome{}, nil
	}

	r.store.Remove(KeyPendingAnswers)
	r.logger.Info("resuming parked answers", zap.Int("answers", len(answers)))
	outcome, err := attempt.CompleteWith(ctx, answers)
	if err != nil {
		return ResumeForwarded, Outcome{}, err
	}
	return ResumeForwarded, outcome, nil
}

// ConfirmLogin is the prompt's only action: go to login and come back to the loading view.
func (r *Resumer) ConfirmLogin(attempt *Attempt) domain.Navigation {
	if attempt != nil {
		attempt.DismissLoginPrompt()
	}
	return domain.Navigation{Path: PathLogin, State: map[string]any{"from": PathLoading}}
}

// authenticated checks the cached user and falls back to one server refresh. A failed refresh
// means "not authenticated".
func authenticated(ctx context.Context, auth Auth) bool {
	if auth == nil {
		return false
	}
	if auth.CurrentUser() != nil {
		return true
	}
	return auth.RefreshFromServer(ctx) && auth.CurrentUser() != nil
}
