package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/infra/memory"
	"agribank-quiz/internal/quiz"
)

func TestStartQuizAndSubmitPersistsExamResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(questionBank(10))

	session, err := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 600, TotalQuestions: 4})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := env.service.Session(session.ID()); err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	for pos, q := range session.Questions() {
		if _, err := session.Answer(pos, q.CorrectAnswer); err != nil {
			t.Fatalf("answer %d: %v", pos, err)
		}
	}

	result, err := env.service.Submit(ctx, session.ID())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Score != 100 || result.CorrectAnswers != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	env.service.Wait()

	board, err := env.service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].UserID != "u1" || board[0].BestScore != 100 {
		t.Fatalf("expected stored exam result, got %+v", board)
	}
	stats, _ := env.service.UserStats(ctx, "u1")
	if len(stats.Recent) != 1 || stats.Recent[0].TotalQuestions != 4 || stats.Recent[0].QuizType != domain.ModeExam {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, err := env.service.Submit(ctx, session.ID()); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	env.service.Wait()
	if n, _ := env.results.ClearResults(ctx); n != 1 {
		t.Fatalf("resubmitting must not store twice, stored %d", n)
	}
}

func TestPracticeAndReviewResultsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(questionBank(6))

	practice, err := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModePractice, TimeLimit: 600, TotalQuestions: 3})
	if err != nil {
		t.Fatalf("start practice: %v", err)
	}
	if _, err := env.service.Submit(ctx, practice.ID()); err != nil {
		t.Fatalf("submit practice: %v", err)
	}

	exam, err := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 600, TotalQuestions: 3})
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	q := exam.Questions()[0]
	if _, err := exam.Answer(0, (q.CorrectAnswer+1)%len(q.Options)); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := env.service.Submit(ctx, exam.ID()); err != nil {
		t.Fatalf("submit exam: %v", err)
	}

	review, err := env.service.Review(ctx, exam.ID())
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !review.IsReview() || len(review.Questions()) != 1 {
		t.Fatalf("unexpected review session %+v", review.View())
	}
	if _, err := env.service.Session(review.ID()); err != nil {
		t.Fatalf("review session not registered: %v", err)
	}
	if _, err := env.service.Submit(ctx, review.ID()); err != nil {
		t.Fatalf("submit review: %v", err)
	}

	env.service.Wait()
	if n, _ := env.results.ClearResults(ctx); n != 1 {
		t.Fatalf("only the exam should be stored, got %d results", n)
	}
}

func TestPersistenceFailureDoesNotAffectResult(t *testing.T) {
	ctx := context.Background()
	results := &failingResults{ResultStore: memory.NewResultStore(nil)}
	service := app.NewQuizService(memory.NewQuestionStore(questionBank(5)), memory.NewTemplateStore(), results, memory.NewSessionStore(), quiz.NewSelector(rand.NewSource(1)))

	session, err := service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 60, TotalQuestions: 5})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	result, err := service.Submit(ctx, session.ID())
	if err != nil {
		t.Fatalf("submit should succeed despite storage failure: %v", err)
	}
	service.Wait()
	if result.Unanswered != 5 || results.attempts != 1 {
		t.Fatalf("unexpected result %+v after %d attempts", result, results.attempts)
	}
}

func TestTimerExpiryPersistsOnce(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
	sched := &testScheduler{}
	results := memory.NewResultStore(nil)
	service := app.NewQuizService(memory.NewQuestionStore(questionBank(5)), memory.NewTemplateStore(), results, memory.NewSessionStore(),
		quiz.NewSelector(rand.NewSource(1)), app.WithSessionOptions(quiz.WithClock(clock.Now, sched)))

	session, err := service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 2, TotalQuestions: 5})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 5; i++ {
		clock.advance(time.Second)
		sched.fire()
	}
	if session.State() != quiz.StateSubmitted {
		t.Fatalf("expected expiry to submit, state %s", session.State())
	}
	if _, err := service.Submit(ctx, session.ID()); err != nil {
		t.Fatalf("manual submit after expiry: %v", err)
	}
	service.Wait()

	stats, _ := service.UserStats(ctx, "u1")
	if len(stats.Recent) != 1 || stats.Recent[0].TimeSpent != 2 {
		t.Fatalf("expected one stored result with 2s spent, got %+v", stats.Recent)
	}
	if n, _ := results.ClearResults(ctx); n != 1 {
		t.Fatalf("expected exactly one stored result, got %d", n)
	}
}

func TestStartQuizRejections(t *testing.T) {
	ctx := context.Background()

	empty := newTestEnv(nil)
	if _, err := empty.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 60, TotalQuestions: 5}); !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected empty pool error, got %v", err)
	}
	if empty.sessions.Len() != 0 {
		t.Fatalf("rejected sessions must not be registered")
	}

	env := newTestEnv(questionBank(5))
	if _, err := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 0, TotalQuestions: 5}); !errors.Is(err, domain.ErrInvalidTimeLimit) {
		t.Fatalf("expected time limit error, got %v", err)
	}
	if _, err := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 60, TotalQuestions: 5, Categories: map[string]int{"Nope": 2}}); !errors.Is(err, domain.ErrNoQuestionsSelected) {
		t.Fatalf("expected empty selection error, got %v", err)
	}
}

func TestStartTemplate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(questionBank(10))
	_ = env.templates.SaveTemplate(ctx, domain.QuizTemplate{ID: "t1", Name: "Tín dụng", Mode: domain.ModeExam, TimeLimitMinutes: 15, TotalQuestions: 4, Categories: map[string]int{"Credit": 2, "Rates": 2}, IsActive: true})
	_ = env.templates.SaveTemplate(ctx, domain.QuizTemplate{ID: "t2", Name: "Old", Mode: domain.ModeExam, TimeLimitMinutes: 15, TotalQuestions: 4})

	session, err := env.service.StartTemplate(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("start template: %v", err)
	}
	view := session.View()
	if view.TimeLimit != 900 || view.Total != 4 {
		t.Fatalf("unexpected session %+v", view)
	}
	counts := quiz.CategoryCounts(session.Questions())
	if counts["Credit"] != 2 || counts["Rates"] != 2 {
		t.Fatalf("unexpected category mix %v", counts)
	}

	if _, err := env.service.StartTemplate(ctx, "u1", "t2"); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("inactive template should not start, got %v", err)
	}
	if _, err := env.service.StartTemplate(ctx, "u1", "missing"); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAbandonAndUnknownSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(questionBank(5))

	if _, err := env.service.Submit(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}

	session, _ := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 60, TotalQuestions: 2})
	events, cancel := session.Subscribe()
	defer cancel()

	env.service.Abandon(session.ID())
	if _, err := env.service.Session(session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("abandoned session still registered")
	}
	if _, open := <-events; open {
		t.Fatalf("abandon should close subscribers")
	}
	env.service.Abandon("missing")
}

func TestLookup(t *testing.T) {
	env := newTestEnv(questionBank(6))
	matches, err := env.service.Lookup(context.Background(), "question 3", "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(matches) == 0 || matches[0].Question.ID != "q3" || matches[0].Index != 4 {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

type testEnv struct {
	service   *app.QuizService
	results   *memory.ResultStore
	templates *memory.TemplateStore
	sessions  *memory.SessionStore
}

func newTestEnv(questions []domain.Question) testEnv {
	env := testEnv{
		results:   memory.NewResultStore(nil),
		templates: memory.NewTemplateStore(),
		sessions:  memory.NewSessionStore(),
	}
	env.service = app.NewQuizService(memory.NewQuestionStore(questions), env.templates, env.results, env.sessions, quiz.NewSelector(rand.NewSource(42)))
	return env
}

func questionBank(n int) []domain.Question {
	categories := []string{"Credit", "Rates"}
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			ID:            fmt.Sprintf("q%d", i),
			Question:      fmt.Sprintf("Question %d", i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: i % 4,
			Category:      categories[i%2],
		}
	}
	return out
}

type failingResults struct {
	*memory.ResultStore
	mu       sync.Mutex
	attempts int
}

func (f *failingResults) SaveResult(context.Context, domain.StoredResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	return errors.New("database unavailable")
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testScheduler holds scheduled ticks until fire is called.
type testScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *testScheduler) AfterFunc(_ time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := false
	s.pending = append(s.pending, func() {
		if !cancelled {
			f()
		}
	})
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		cancelled = true
		return true
	}
}

func (s *testScheduler) fire() {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range queued {
		f()
	}
}

func TestRestartStartsAFreshAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(questionBank(8))

	session, err := env.service.StartQuiz(ctx, "u1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 600, TotalQuestions: 3})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := session.Answer(0, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := session.Jump(2); err != nil {
		t.Fatalf("jump: %v", err)
	}

	restarted, err := env.service.Restart(ctx, session.ID())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	view := restarted.View()
	if restarted != session || view.State != quiz.StateInProgress || view.Cursor != 0 || view.Total != 3 {
		t.Fatalf("unexpected restarted session %+v", view)
	}
	for _, a := range view.Answers {
		if a.SelectedAnswer.IsSet() {
			t.Fatalf("restart must clear answers, got %+v", view.Answers)
		}
	}
	if _, err := env.service.Restart(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
}
