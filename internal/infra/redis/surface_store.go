package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"ipzy-gateway/internal/app"
)

// SurfaceStore keeps each tab's key/value bag in a Redis hash so any gateway instance can serve the tab.
// Layout: HSET ipzy:tab:{tabID} {key} {value}, with a sliding TTL refreshed on every write.
// Writes are best-effort: errors are logged and the call returns, as with browser storage.
type SurfaceStore struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func NewSurfaceStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SurfaceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurfaceStore{
		client:  client,
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func (s *SurfaceStore) Open(tabID string) app.Surface {
	return &surface{store: s, key: s.key(tabID)}
}

func (s *SurfaceStore) Clear(tabID string) {
	ctx, cancel := s.context()
	defer cancel()
	if err := s.client.Del(ctx, s.key(tabID)).Err(); err != nil {
		s.logger.Warn("clear tab surface", zap.String("tab", tabID), zap.Error(err))
	}
}

func (s *SurfaceStore) key(tabID string) string {
	return "ipzy:tab:" + tabID
}

func (s *SurfaceStore) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

type surface struct {
	store *SurfaceStore
	key   string
}

func (s *surface) Get(field string) (string, bool) {
	ctx, cancel := s.store.context()
	defer cancel()
	value, err := s.store.client.HGet(ctx, s.key, field).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		s.store.logger.Warn("read tab surface", zap.String("key", field), zap.Error(err))
		return "", false
	}
	return value, true
}

func (s *surface) Set(field, value string) {
	ctx, cancel := s.store.context()
	defer cancel()
	pipe := s.store.client.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	if s.store.ttl > 0 {
		pipe.Expire(ctx, s.key, s.store.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.store.logger.Warn("write tab surface", zap.String("key", field), zap.Error(err))
	}
}

func (s *surface) Remove(field string) {
	ctx, cancel := s.store.context()
	defer cancel()
	if err := s.store.client.HDel(ctx, s.key, field).Err(); err != nil {
		s.store.logger.Warn("remove from tab surface", zap.String("key", field), zap.Error(err))
	}
}

func (s *surface) Keys(prefix string) []string {
	ctx, cancel := s.store.context()
	defer cancel()
	fields, err := s.store.client.HKeys(ctx, s.key).Result()
	if err != nil {
		s.store.logger.Warn("list tab surface", zap.Error(err))
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return app.FilterKeys(set, prefix)
}
