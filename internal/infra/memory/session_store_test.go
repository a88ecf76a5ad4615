package memory

import (
	"testing"

	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	session := quiz.NewSession("s-1", "u-1", domain.QuizConfig{Mode: domain.ModeExam, TimeLimit: 60, TotalQuestions: 1})

	store.Put(session)
	got, ok := store.Get("s-1")
	if !ok || got != session {
		t.Fatalf("expected session present")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}

	store.Delete("s-1")
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session removed")
	}
}
