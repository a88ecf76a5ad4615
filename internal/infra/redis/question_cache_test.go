package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewQuestionStore(sampleQuestions())}
	cache := NewQuestionCache(client, loader, time.Minute)

	questions, err := cache.ListQuestions(context.Background())
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if loader.calls != 1 || len(questions) != 2 {
		t.Fatalf("expected loader called once for 2 questions, got %d calls, %d questions", loader.calls, len(questions))
	}
	if !mr.Exists(bankKey) {
		t.Fatalf("expected bank cached under %s", bankKey)
	}
	if ttl := mr.TTL(bankKey); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := cache.ListQuestions(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached[0].ID != "q1" || cached[1].Options[0] != "Hà Nội" || cached[0].CorrectAnswer != 1 {
		t.Fatalf("cached bank lost order or content: %+v", cached)
	}
}

func TestQuestionCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := memory.NewQuestionStore(sampleQuestions())
	loader := &countingLoader{QuestionLoader: store}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	_, _ = cache.ListQuestions(context.Background())
	_ = store.ClearQuestions(context.Background())
	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(bankKey) {
		t.Fatalf("expected cached bank removed")
	}
	questions, _ := cache.ListQuestions(context.Background())
	if len(questions) != 0 || loader.calls != 2 {
		t.Fatalf("expected reload of empty bank, got %d questions after %d loads", len(questions), loader.calls)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.ListQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Question: "2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Category: "Toán"},
		{ID: "q2", Question: "Thủ đô của Việt Nam?", Options: []string{"Hà Nội", "Huế"}, CorrectAnswer: 0, Category: "Địa lý"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
