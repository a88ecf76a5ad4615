package quiz

import (
	"fmt"
	"math/rand"
	"testing"

	"agribank-quiz/internal/domain"
)

func bank(counts map[string]int) []domain.Question {
	var pool []domain.Question
	for category, n := range counts {
		for i := 0; i < n; i++ {
			pool = append(pool, domain.Question{
				ID:            fmt.Sprintf("%s-%d", category, i),
				Question:      fmt.Sprintf("%s question %d", category, i),
				Options:       []string{"A", "B", "C", "D"},
				CorrectAnswer: i % 4,
				Category:      category,
			})
		}
	}
	return pool
}

func assertNoDuplicates(t *testing.T, selected []domain.Question) {
	t.Helper()
	seen := make(map[string]bool, len(selected))
	for _, q := range selected {
		if seen[q.ID] {
			t.Fatalf("question %s selected twice", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestSelectWithoutCategories(t *testing.T) {
	pool := bank(map[string]int{"Math": 6, "History": 4})
	inPool := make(map[string]bool)
	for _, q := range pool {
		inPool[q.ID] = true
	}

	for seed := int64(0); seed < 20; seed++ {
		selector := NewSelector(rand.NewSource(seed))
		selected := selector.Select(pool, domain.QuizConfig{TotalQuestions: 7})
		if len(selected) != 7 {
			t.Fatalf("seed %d: expected 7 questions, got %d", seed, len(selected))
		}
		assertNoDuplicates(t, selected)
		for _, q := range selected {
			if !inPool[q.ID] {
				t.Fatalf("seed %d: %s is not from the pool", seed, q.ID)
			}
		}
	}
}

func TestSelectCapsAtPoolSize(t *testing.T) {
	pool := bank(map[string]int{"Math": 3})
	selected := NewSelector(rand.NewSource(1)).Select(pool, domain.QuizConfig{TotalQuestions: 50})
	if len(selected) != 3 {
		t.Fatalf("expected whole pool of 3, got %d", len(selected))
	}
	assertNoDuplicates(t, selected)
}

func TestSelectNonPositiveTotalYieldsNothing(t *testing.T) {
	pool := bank(map[string]int{"Math": 3})
	selected := NewSelector(rand.NewSource(1)).Select(pool, domain.QuizConfig{TotalQuestions: 0})
	if len(selected) != 0 {
		t.Fatalf("expected no questions, got %d", len(selected))
	}
}

func TestSelectByCategory(t *testing.T) {
	pool := bank(map[string]int{"Math": 6, "History": 4, "Law": 5})
	cfg := domain.QuizConfig{
		TotalQuestions: 5,
		Categories:     map[string]int{"Math": 3, "History": 2},
	}

	for seed := int64(0); seed < 20; seed++ {
		selected := NewSelector(rand.NewSource(seed)).Select(pool, cfg)
		if len(selected) != 5 {
			t.Fatalf("seed %d: expected 5 questions, got %d", seed, len(selected))
		}
		assertNoDuplicates(t, selected)
		got := CategoryCounts(selected)
		if got["Math"] != 3 || got["History"] != 2 || got["Law"] != 0 {
			t.Fatalf("seed %d: unexpected category mix %v", seed, got)
		}
	}
}

func TestSelectCategoryOverRequestReturnsWhatExists(t *testing.T) {
	pool := bank(map[string]int{"Math": 6, "History": 4})
	cfg := domain.QuizConfig{
		TotalQuestions: 12,
		Categories:     map[string]int{"Math": 10, "History": 1},
	}
	selected := NewSelector(rand.NewSource(3)).Select(pool, cfg)
	got := CategoryCounts(selected)
	if got["Math"] != 6 || got["History"] != 1 {
		t.Fatalf("expected 6 Math and 1 History, got %v", got)
	}
}

func TestSelectSkipsZeroAndUnknownCategories(t *testing.T) {
	pool := bank(map[string]int{"Math": 6})
	cfg := domain.QuizConfig{
		TotalQuestions: 5,
		Categories:     map[string]int{"Math": 0, "Geography": 4},
	}
	if selected := NewSelector(rand.NewSource(3)).Select(pool, cfg); len(selected) != 0 {
		t.Fatalf("expected empty selection, got %d", len(selected))
	}
}

func TestSelectIsDeterministicForSeed(t *testing.T) {
	pool := bank(map[string]int{"Math": 8, "History": 8})
	cfg := domain.QuizConfig{TotalQuestions: 6, Categories: map[string]int{"Math": 3, "History": 3}}

	first := NewSelector(rand.NewSource(42)).Select(pool, cfg)
	second := NewSelector(rand.NewSource(42)).Select(pool, cfg)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("position %d differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSelectDoesNotReorderPool(t *testing.T) {
	pool := bank(map[string]int{"Math": 5})
	before := make([]string, len(pool))
	for i, q := range pool {
		before[i] = q.ID
	}
	NewSelector(rand.NewSource(9)).Select(pool, domain.QuizConfig{TotalQuestions: 5})
	for i, q := range pool {
		if q.ID != before[i] {
			t.Fatalf("pool mutated at %d", i)
		}
	}
}

func TestCheckAvailability(t *testing.T) {
	pool := bank(map[string]int{"Math": 6, "History": 2})

	problems := CheckAvailability(pool, domain.QuizConfig{
		TotalQuestions: 5,
		Categories:     map[string]int{"Math": 3, "History": 3, "Law": 1},
	})
	if len(problems) != 3 {
		t.Fatalf("expected 3 problems, got %+v", problems)
	}
	if problems[0].Category != "History" || problems[0].Available != 2 {
		t.Fatalf("unexpected first problem %+v", problems[0])
	}
	if problems[1].Category != "Law" || problems[1].Available != 0 {
		t.Fatalf("unexpected second problem %+v", problems[1])
	}
	if problems[2].Category != "" || problems[2].Requested != 7 {
		t.Fatalf("unexpected sum problem %+v", problems[2])
	}

	if problems := CheckAvailability(pool, domain.QuizConfig{TotalQuestions: 20}); len(problems) != 1 {
		t.Fatalf("expected bank shortfall, got %+v", problems)
	}
	if problems := CheckAvailability(pool, domain.QuizConfig{TotalQuestions: 4, Categories: map[string]int{"Math": 4}}); len(problems) != 0 {
		t.Fatalf("expected no problems, got %+v", problems)
	}
}
