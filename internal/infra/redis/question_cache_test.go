package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"ipzy-gateway/internal/domain"
	"ipzy-gateway/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{CatalogLoader: sampleLoader()}
	cache := NewQuestionCache(client, loader, time.Minute, nil)

	questions, err := cache.FetchQuestions(context.Background(), 7)
	if err != nil {
		t.Fatalf("fetch questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if loader.questionCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.questionCalls)
	}
	if !mr.Exists("ipzy:quiz:7:questions") {
		t.Fatalf("expected questions key to be set")
	}
	if ttl := mr.TTL("ipzy:quiz:7:questions"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := cache.FetchQuestions(context.Background(), 7)
	if loader.questionCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.questionCalls)
	}
	if cached[1].Options[0].Label != "캐주얼" {
		t.Fatalf("expected options to round-trip, got %+v", cached[1])
	}
}

func TestQuestionCacheListsQuizzes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{CatalogLoader: sampleLoader()}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute, nil)

	for i := 0; i < 2; i++ {
		quizzes, err := cache.ListQuizzes(context.Background())
		if err != nil {
			t.Fatalf("list quizzes: %v", err)
		}
		if len(quizzes) != 1 || quizzes[0].QuizID != 7 {
			t.Fatalf("unexpected quizzes %+v", quizzes)
		}
	}
	if loader.listCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.listCalls)
	}

	if err := cache.Invalidate(context.Background(), 7); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("ipzy:quizzes") {
		t.Fatalf("expected quiz list key removed")
	}
}

func TestQuestionCacheIgnoresGarbage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("ipzy:quiz:7:questions", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loader := &countingLoader{CatalogLoader: sampleLoader()}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute, nil)

	if _, err := cache.FetchQuestions(context.Background(), 7); err != nil {
		t.Fatalf("fetch questions: %v", err)
	}
	if loader.questionCalls != 1 {
		t.Fatalf("expected garbage to count as a miss")
	}
}

type countingLoader struct {
	memory.CatalogLoader
	listCalls     int
	questionCalls int
}

func (l *countingLoader) ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	l.listCalls++
	return l.CatalogLoader.ListQuizzes(ctx)
}

func (l *countingLoader) FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error) {
	l.questionCalls++
	return l.CatalogLoader.FetchQuestions(ctx, quizID)
}

func sampleLoader() *memory.StaticCatalogLoader {
	return memory.NewStaticCatalogLoader(
		[]domain.QuizMetadata{{QuizID: 7, Title: "스타일 퀴즈", DisplayOrder: 1}},
		map[int64][]domain.QuizQuestion{
			7: {
				{ID: 71, Prompt: "어떤 자리에 입고 가시나요?", Options: []domain.QuizOption{{Value: "date", Label: "데이트"}}},
				{ID: 72, Prompt: "선호하는 스타일은?", Options: []domain.QuizOption{{Value: "casual", Label: "캐주얼"}}},
			},
		},
	)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
