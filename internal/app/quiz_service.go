package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
	"agribank-quiz/internal/search"
)

// LeaderboardSize is the number of users shown on the public leaderboard.
const LeaderboardSize = 10

const persistTimeout = 10 * time.Second

// QuizService contains the quiz session use cases.
type QuizService struct {
	questions QuestionRepository
	templates TemplateRepository
	results   ResultRepository
	sessions  SessionRepository
	selector  *quiz.Selector

	now         func() time.Time
	sessionOpts []quiz.Option

	// pending tracks result writes still in flight.
	pending sync.WaitGroup
}

// ServiceOption customises a QuizService.
type ServiceOption func(*QuizService)

// WithSessionOptions applies opts to every session the service creates.
func WithSessionOptions(opts ...quiz.Option) ServiceOption {
	return func(s *QuizService) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithClock sets the clock used to timestamp stored results.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) {
		s.now = now
	}
}

func NewQuizService(questions QuestionRepository, templates TemplateRepository, results ResultRepository, sessions SessionRepository, selector *quiz.Selector, opts ...ServiceOption) *QuizService {
	if selector == nil {
		selector = quiz.NewSelector(nil)
	}
	s := &QuizService{
		questions: questions,
		templates: templates,
		results:   results,
		sessions:  sessions,
		selector:  selector,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartQuiz builds a session for userID from cfg and starts it.
func (s *QuizService) StartQuiz(ctx context.Context, userID string, cfg domain.QuizConfig) (*quiz.Session, error) {
	pool, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	opts := append([]quiz.Option{quiz.WithSubmitHook(s.persist)}, s.sessionOpts...)
	session := quiz.NewSession(uuid.NewString(), userID, cfg, opts...)
	if err := session.Start(pool, s.selector); err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	log.Printf("quiz: session %s started for %s (%s, %d questions, %ds)", session.ID(), userID, cfg.Mode, session.View().Total, cfg.TimeLimit)
	return session, nil
}

// StartTemplate starts a session from an active template.
func (s *QuizService) StartTemplate(ctx context.Context, userID, templateID string) (*quiz.Session, error) {
	tpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, domain.ErrTemplateNotFound
	}
	return s.StartQuiz(ctx, userID, tpl.Config())
}

// Session returns a live session by ID.
func (s *QuizService) Session(id string) (*quiz.Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Submit ends a session manually. Submitting twice returns the same result.
func (s *QuizService) Submit(_ context.Context, id string) (domain.QuizResult, error) {
	session, err := s.Session(id)
	if err != nil {
		return domain.QuizResult{}, err
	}
	return session.Submit()
}

// Review starts a practice session over the wrong answers of a submitted session.
func (s *QuizService) Review(_ context.Context, id string) (*quiz.Session, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	review, err := session.Review(uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.sessions.Put(review)
	return review, nil
}

// Restart throws away the attempt and starts the same session again with a
// fresh selection. It is how players recover from ErrSessionCorrupted.
func (s *QuizService) Restart(ctx context.Context, id string) (*quiz.Session, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	pool, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	session.Restart()
	if err := session.Start(pool, s.selector); err != nil {
		return nil, err
	}
	log.Printf("quiz: session %s restarted", id)
	return session, nil
}

// Abandon stops a session and forgets it. Unknown IDs are ignored.
func (s *QuizService) Abandon(id string) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(id)
}

// Leaderboard returns the top ranked users.
func (s *QuizService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.results.Leaderboard(ctx, LeaderboardSize)
}

// UserStats returns one user's ranking and latest exam.
func (s *QuizService) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	return s.results.UserStats(ctx, userID)
}

// ClearResults deletes every stored result and reports how many were removed.
func (s *QuizService) ClearResults(ctx context.Context) (int, error) {
	n, err := s.results.ClearResults(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("quiz: cleared %d stored results", n)
	return n, nil
}

// Lookup searches the question bank for keyword. An empty category searches all.
func (s *QuizService) Lookup(ctx context.Context, keyword, category string) ([]search.Match, error) {
	pool, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return search.Lookup(pool, keyword, category), nil
}

// Wait blocks until every result write started so far has finished.
func (s *QuizService) Wait() {
	s.pending.Wait()
}

// persist runs for every submitted session. Only exam results are stored, in the
// background; a failed write is logged and never reaches the player.
func (s *QuizService) persist(session *quiz.Session, result domain.QuizResult) {
	if !session.Persistable() {
		return
	}
	stored := domain.StoredResult{
		ID:             uuid.NewString(),
		UserID:         session.UserID(),
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		Percentage:     result.Score,
		TimeSpent:      result.TimeSpent,
		QuizType:       session.Config().Mode,
		CreatedAt:      s.now(),
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.results.SaveResult(ctx, stored); err != nil {
			log.Printf("quiz: save result for session %s: %v", session.ID(), err)
			return
		}
		log.Printf("quiz: saved result %s for %s (%.1f%%)", stored.ID, stored.UserID, stored.Score)
	}()
}
