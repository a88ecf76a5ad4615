package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"agribank-quiz/internal/domain"
)

// QuestionLoader fetches the question bank from its backing store (e.g. Postgres).
type QuestionLoader interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache keeps the question bank in Redis so every instance shares one
// copy, and falls back to the loader on a miss.
// The bank is stored in order as a list of JSON documents:
//
//	RPUSH quiz:bank:questions {question...}
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		// Another instance may have filled the cache meanwhile.
		if questions, ok := c.cached(ctx); ok {
			return questions, nil
		}

		questions, err := c.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return questions, nil
		}

		docs := make([]interface{}, 0, len(questions))
		for _, q := range questions {
			doc, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			docs = append(docs, doc)
		}

		pipe := c.client.TxPipeline()
		pipe.Del(ctx, bankKey)
		pipe.RPush(ctx, bankKey, docs...)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, bankKey, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("redis: cache question bank: %v", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached bank. The next read reloads it.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	c.sf.Forget(bankKey)
	if err := c.client.Del(ctx, bankKey).Err(); err != nil {
		return fmt.Errorf("drop cached bank: %w", err)
	}
	return nil
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	docs, err := c.client.LRange(ctx, bankKey, 0, -1).Result()
	if err != nil || len(docs) == 0 {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(docs))
	for _, doc := range docs {
		var q domain.Question
		if err := json.Unmarshal([]byte(doc), &q); err != nil {
			log.Printf("redis: discard cached bank: %v", err)
			return nil, false
		}
		questions = append(questions, q)
	}
	return questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

const bankKey = "quiz:bank:questions"
