package memory

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"agribank-quiz/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store.
type QuestionLoader interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

const bankKey = "bank"

// QuestionCache caches the question bank with a TTL to avoid repeated DB hits.
// Concurrent misses share one load.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
	loaded    bool
	gen       uint64
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := c.cached(c.clock()); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		now := c.clock()
		if questions, ok := c.cached(now); ok {
			return questions, nil
		}

		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		questions, err := c.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}

		// A load that raced with Invalidate is returned but not kept.
		c.mu.Lock()
		if c.gen == gen {
			c.questions = questions
			c.expiresAt = now.Add(c.ttlWithJitter())
			c.loaded = true
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(result.([]domain.Question)), nil
}

// Invalidate forces the next read to reload.
func (c *QuestionCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.questions = nil
	c.loaded = false
	c.gen++
	c.mu.Unlock()
	c.sf.Forget(bankKey)
	return nil
}

func (c *QuestionCache) cached(now time.Time) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || !c.expiresAt.After(now) {
		return nil, false
	}
	return slices.Clone(c.questions), true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// QuestionStore is an in-memory question bank, useful for tests, demos and
// running without Postgres.
type QuestionStore struct {
	mu        sync.RWMutex
	questions []domain.Question
}

func NewQuestionStore(questions []domain.Question) *QuestionStore {
	return &QuestionStore{questions: slices.Clone(questions)}
}

func (s *QuestionStore) ListQuestions(context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.questions), nil
}

func (s *QuestionStore) AddQuestions(_ context.Context, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, questions...)
	return nil
}

func (s *QuestionStore) ClearQuestions(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = nil
	return nil
}
