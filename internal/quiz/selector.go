package quiz

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"agribank-quiz/internal/domain"
)

// Selector draws the question set for a session. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector returns a Selector using src for randomness. A nil src seeds from the clock.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Selector{rnd: rand.New(src)}
}

// Select picks questions from pool according to cfg.
//
// With no category constraints the whole pool is shuffled and the first
// cfg.TotalQuestions are taken. Otherwise each category with a positive count
// contributes up to that many questions, and the combined set is shuffled again
// so categories do not appear in blocks. Requests larger than what a category
// holds yield fewer questions without error.
func (s *Selector) Select(pool []domain.Question, cfg domain.QuizConfig) []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(cfg.Categories) == 0 {
		shuffled := s.shuffled(pool)
		return take(shuffled, cfg.TotalQuestions)
	}

	// Sorted so a seeded source produces the same selection every run.
	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	var selected []domain.Question
	for _, name := range names {
		count := cfg.Categories[name]
		if count <= 0 {
			continue
		}
		inCategory := make([]domain.Question, 0)
		for _, q := range pool {
			if q.Category == name {
				inCategory = append(inCategory, q)
			}
		}
		selected = append(selected, take(s.shuffled(inCategory), count)...)
	}
	s.rnd.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}

func (s *Selector) shuffled(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	s.rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func take(questions []domain.Question, n int) []domain.Question {
	if n <= 0 {
		return []domain.Question{}
	}
	if n > len(questions) {
		n = len(questions)
	}
	return questions[:n]
}

// CategoryCounts reports how many questions each category holds.
func CategoryCounts(pool []domain.Question) map[string]int {
	counts := make(map[string]int)
	for _, q := range pool {
		counts[q.Category]++
	}
	return counts
}

// Shortfall describes one way a configuration asks for more than the pool holds.
type Shortfall struct {
	Category  string `json:"category,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

// CheckAvailability validates cfg against pool. Select itself tolerates every
// problem reported here; callers editing templates use this to reject them up front.
func CheckAvailability(pool []domain.Question, cfg domain.QuizConfig) []Shortfall {
	counts := CategoryCounts(pool)
	var problems []Shortfall

	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	sum := 0
	for _, name := range names {
		requested := cfg.Categories[name]
		if requested <= 0 {
			continue
		}
		sum += requested
		available := counts[name]
		switch {
		case available == 0:
			problems = append(problems, Shortfall{Category: name, Requested: requested, Available: 0, Reason: "category has no questions"})
		case requested > available:
			problems = append(problems, Shortfall{Category: name, Requested: requested, Available: available, Reason: "not enough questions in category"})
		}
	}
	if len(cfg.Categories) > 0 && sum > cfg.TotalQuestions {
		problems = append(problems, Shortfall{Requested: sum, Available: cfg.TotalQuestions, Reason: "category counts exceed total questions"})
	}
	if len(cfg.Categories) == 0 && cfg.TotalQuestions > len(pool) {
		problems = append(problems, Shortfall{Requested: cfg.TotalQuestions, Available: len(pool), Reason: "not enough questions in bank"})
	}
	return problems
}
