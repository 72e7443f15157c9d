package quizapi

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/domain"
)

// Identity is the auth capability of one tab. The signed-in user is cached in the tab's
// Surface under auth_user; refreshing asks the quiz service who the forwarded cookies belong to.
type Identity struct {
	client *Client
	store  app.Surface
	logger *zap.Logger
}

func NewIdentity(client *Client, store app.Surface, logger *zap.Logger) *Identity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identity{client: client, store: store, logger: logger}
}

// CurrentUser returns the cached user, or nil.
func (i *Identity) CurrentUser() *domain.User {
	raw, ok := i.store.Get(app.KeyAuthUser)
	if !ok {
		return nil
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		return nil
	}
	return &u
}

// RefreshFromServer re-reads the member session, falling back to the admin session.
// Any failure means "not authenticated" and clears the cache.
func (i *Identity) RefreshFromServer(ctx context.Context) bool {
	user, err := i.client.Me(ctx)
	if err != nil {
		admin, adminErr := i.client.AdminMe(ctx)
		if adminErr != nil {
			i.forget(err)
			return false
		}
		user = admin
	}
	i.remember(user)
	return true
}

// RefreshAdminFromServer re-reads the admin session only.
func (i *Identity) RefreshAdminFromServer(ctx context.Context) bool {
	admin, err := i.client.AdminMe(ctx)
	if err != nil {
		i.forget(err)
		return false
	}
	i.remember(admin)
	return true
}

// Logout ends the upstream session and drops every auth_ key. Upstream failures are logged;
// local cleanup always happens.
func (i *Identity) Logout(ctx context.Context) {
	admin := i.CurrentUser().IsAdmin()
	if err := i.client.Logout(ctx, admin); err != nil {
		i.logger.Warn("upstream logout failed", zap.Bool("admin", admin), zap.Error(err))
	}
	i.ClearAuth()
}

// ClearAuth removes every auth_ prefixed key of the tab.
func (i *Identity) ClearAuth() int {
	return app.RemovePrefixed(i.store, app.AuthKeyPrefix)
}

func (i *Identity) remember(u domain.User) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	i.store.Set(app.KeyAuthUser, string(data))
}

func (i *Identity) forget(err error) {
	i.store.Remove(app.KeyAuthUser)
	i.logger.Debug("identity refresh failed", zap.Error(&domain.AuthRefreshError{Err: err}))
}
