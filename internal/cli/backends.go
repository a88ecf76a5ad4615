package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/config"
	"agribank-quiz/internal/infra/memory"
	"agribank-quiz/internal/infra/postgres"
	infraredis "agribank-quiz/internal/infra/redis"
)

// backends holds the stores chosen from config: Postgres for durable data
// when a URL is set, Redis for caches, sessions and presence when an address
// is set, memory otherwise.
type backends struct {
	bank      app.QuestionStore
	questions app.QuestionRepository
	caches    []app.Invalidator
	templates app.TemplateRepository
	results   app.ResultRepository
	sessions  app.SessionRepository
	users     app.UserRepository
	presence  app.PresenceStore

	pool        *pgxpool.Pool
	redisClient *redis.Client
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.bank = postgres.NewQuestionStore(pool)
		b.templates = postgres.NewTemplateStore(pool)
		b.results = postgres.NewResultStore(pool)
		b.users = postgres.NewUserStore(pool)
		b.presence = postgres.NewPresenceStore(pool)
	} else {
		log.Printf("postgres url not configured, keeping all data in memory")
		users := memory.NewUserStore()
		b.bank = memory.NewQuestionStore(nil)
		b.templates = memory.NewTemplateStore()
		b.results = memory.NewResultStore(users.DisplayName)
		b.users = users
		b.presence = memory.NewPresenceStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		b.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redisClient.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
		cache := infraredis.NewQuestionCache(b.redisClient, b.bank, quizTTL)
		b.questions = cache
		b.caches = append(b.caches, cache)
		b.sessions = infraredis.NewSessionStore(b.redisClient, redisTTL)
		b.presence = infraredis.NewPresenceStore(b.redisClient, redisTTL)
	} else {
		cache := memory.NewQuestionCache(b.bank, quizTTL)
		b.questions = cache
		b.caches = append(b.caches, cache)
		b.sessions = memory.NewSessionStore()
	}
	return b, nil
}

func (b *backends) Close() {
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
