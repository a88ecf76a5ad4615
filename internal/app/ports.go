package app

import (
	"context"
	"time"

	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
)

// QuestionRepository is the read-only question source sessions draw from.
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionStore is the writable question bank behind admin imports.
type QuestionStore interface {
	QuestionRepository
	AddQuestions(ctx context.Context, questions []domain.Question) error
	ClearQuestions(ctx context.Context) error
}

// Invalidator drops cached copies of the question bank.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// TemplateRepository stores ready-made quiz configurations.
type TemplateRepository interface {
	GetTemplate(ctx context.Context, id string) (domain.QuizTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]domain.QuizTemplate, error)
	SaveTemplate(ctx context.Context, t domain.QuizTemplate) error
}

// ResultRepository persists exam results and ranks users by them.
type ResultRepository interface {
	SaveResult(ctx context.Context, r domain.StoredResult) error
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
	ClearResults(ctx context.Context) (int, error)
}

// SessionRepository abstracts where live quiz sessions are kept.
type SessionRepository interface {
	Put(s *quiz.Session)
	Get(id string) (*quiz.Session, bool)
	Delete(id string)
}

// PresenceStore records which device each user is logged in on.
type PresenceStore interface {
	// Activate deactivates every other session of the user and marks s active.
	Activate(ctx context.Context, s domain.ActiveSession) error
	IsActive(ctx context.Context, userID, sessionID string) (bool, error)
	Touch(ctx context.Context, userID, sessionID string, at time.Time) error
	Deactivate(ctx context.Context, userID, sessionID string) error
}

// UserRepository stores portal accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, u domain.UserProfile) error
	GetUser(ctx context.Context, id string) (domain.UserProfile, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserProfile, error)
	ListUsers(ctx context.Context) ([]domain.UserProfile, error)
	UpdateUser(ctx context.Context, u domain.UserProfile) error
}
