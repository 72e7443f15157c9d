package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"ipzy-gateway/internal/domain"
	"ipzy-gateway/internal/infra/memory"
)

// QuestionCache caches the quiz list and question sets in Redis, shared by every gateway instance,
// and falls back to a loader on cache miss.
// Keys: ipzy:quizzes and ipzy:quiz:{quizID}:questions, both JSON strings.
type QuestionCache struct {
	client *redis.Client
	loader memory.CatalogLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader memory.CatalogLoader, ttl time.Duration, logger *zap.Logger) *QuestionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	key := c.quizzesKey()
	var quizzes []domain.QuizMetadata
	if c.read(ctx, key, &quizzes) {
		return quizzes, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var cached []domain.QuizMetadata
		if c.read(ctx, key, &cached) {
			return cached, nil
		}
		quizzes, err := c.loader.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		c.write(ctx, key, quizzes)
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizMetadata), nil
}

func (c *QuestionCache) FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error) {
	key := c.questionsKey(quizID)
	var questions []domain.QuizQuestion
	if c.read(ctx, key, &questions) && len(questions) > 0 {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached []domain.QuizQuestion
		if c.read(ctx, key, &cached) && len(cached) > 0 {
			return cached, nil
		}
		questions, err := c.loader.FetchQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if len(questions) > 0 {
			c.write(ctx, key, questions)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizQuestion), nil
}

// Invalidate removes the cached list and the given question sets.
func (c *QuestionCache) Invalidate(ctx context.Context, quizIDs ...int64) error {
	keys := []string{c.quizzesKey()}
	for _, id := range quizIDs {
		keys = append(keys, c.questionsKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// read reports a hit only for a present, decodable value. Redis trouble degrades to a miss.
func (c *QuestionCache) read(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("question cache read", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("question cache decode", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *QuestionCache) write(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	// best-effort: a failed write only costs another loader call
	if err := c.client.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
		c.logger.Warn("question cache write", zap.String("key", key), zap.Error(err))
	}
}

func (c *QuestionCache) quizzesKey() string {
	return "ipzy:quizzes"
}

func (c *QuestionCache) questionsKey(quizID int64) string {
	return "ipzy:quiz:" + strconv.FormatInt(quizID, 10) + ":questions"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
