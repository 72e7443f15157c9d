package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"ipzy-gateway/internal/domain"
)

// CatalogLoader fetches quiz content from a backing store (e.g., the quiz service or the catalog DB).
type CatalogLoader interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error)
	FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error)
}

const quizListKey = "quizzes"

// QuestionCache caches the quiz list and question sets with TTL to avoid repeated upstream hits.
type QuestionCache struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu        sync.RWMutex
	quizzes   *cachedQuizzes
	questions map[int64]cachedQuestions
}

type cachedQuizzes struct {
	quizzes   []domain.QuizMetadata
	expiresAt time.Time
}

type cachedQuestions struct {
	questions []domain.QuizQuestion
	expiresAt time.Time
}

func NewQuestionCache(loader CatalogLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		questions: make(map[int64]cachedQuestions),
	}
}

func (c *QuestionCache) ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	if quizzes, ok := c.cachedList(); ok {
		return quizzes, nil
	}

	result, err, _ := c.sf.Do(quizListKey, func() (interface{}, error) {
		if quizzes, ok := c.cachedList(); ok {
			return quizzes, nil
		}
		now := c.clock()
		quizzes, err := c.loader.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.quizzes = &cachedQuizzes{quizzes: quizzes, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizMetadata), nil
}

func (c *QuestionCache) FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error) {
	if questions, ok := c.cachedSet(quizID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		if questions, ok := c.cachedSet(quizID); ok {
			return questions, nil
		}
		now := c.clock()
		questions, err := c.loader.FetchQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		// empty sets are not cached so a fixed catalog shows up on the next load
		if len(questions) > 0 {
			c.mu.Lock()
			c.questions[quizID] = cachedQuestions{questions: questions, expiresAt: now.Add(c.ttlWithJitter())}
			c.mu.Unlock()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizQuestion), nil
}

// Invalidate drops everything cached.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quizzes = nil
	c.questions = make(map[int64]cachedQuestions)
}

func (c *QuestionCache) cachedList() ([]domain.QuizMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.quizzes != nil && c.quizzes.expiresAt.After(c.clock()) {
		return c.quizzes.quizzes, true
	}
	return nil, false
}

func (c *QuestionCache) cachedSet(quizID int64) ([]domain.QuizQuestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.questions[quizID]; ok && entry.expiresAt.After(c.clock()) {
		return entry.questions, true
	}
	return nil, false
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader is a loader backed by in-memory data (useful for tests/demos).
type StaticCatalogLoader struct {
	quizzes   []domain.QuizMetadata
	questions map[int64][]domain.QuizQuestion
}

func NewStaticCatalogLoader(quizzes []domain.QuizMetadata, questions map[int64][]domain.QuizQuestion) *StaticCatalogLoader {
	return &StaticCatalogLoader{quizzes: quizzes, questions: questions}
}

func (l *StaticCatalogLoader) ListQuizzes(context.Context) ([]domain.QuizMetadata, error) {
	out := append([]domain.QuizMetadata(nil), l.quizzes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (l *StaticCatalogLoader) FetchQuestions(_ context.Context, quizID int64) ([]domain.QuizQuestion, error) {
	if questions, ok := l.questions[quizID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuizNotFound
}
