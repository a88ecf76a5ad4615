package quiz

import (
	"slices"

	"agribank-quiz/internal/domain"
)

// Tracker holds per-question answer state for one session.
//
// Every mutation installs a fresh slice with a single replaced record, so any
// slice returned by Answers stays unchanged afterwards.
type Tracker struct {
	answers []domain.UserAnswer
	frozen  bool
}

// NewTracker creates one unanswered record per question, in the same order.
func NewTracker(questions []domain.Question) *Tracker {
	answers := make([]domain.UserAnswer, len(questions))
	for i, q := range questions {
		answers[i] = domain.UserAnswer{QuestionID: q.ID}
	}
	return &Tracker{answers: answers}
}

// Select records option for the question at pos, replacing any earlier choice.
// The option is not range-checked here.
func (t *Tracker) Select(pos, option int) error {
	return t.update(pos, func(a *domain.UserAnswer) {
		a.SelectedAnswer = domain.Selected(option)
	})
}

// ToggleMark flips the review mark of the question at pos.
func (t *Tracker) ToggleMark(pos int) error {
	return t.update(pos, func(a *domain.UserAnswer) {
		a.IsMarked = !a.IsMarked
	})
}

// Tick adds one second of viewing time to the question at pos.
func (t *Tracker) Tick(pos int) error {
	return t.Spend(pos, 1)
}

// Spend adds seconds of viewing time to the question at pos.
func (t *Tracker) Spend(pos, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	return t.update(pos, func(a *domain.UserAnswer) {
		a.TimeSpent += seconds
	})
}

// Freeze rejects every later mutation.
func (t *Tracker) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze was called.
func (t *Tracker) Frozen() bool {
	return t.frozen
}

// Answers returns the current snapshot. Callers must not modify it.
func (t *Tracker) Answers() []domain.UserAnswer {
	return t.answers
}

// Len returns the number of tracked questions.
func (t *Tracker) Len() int {
	return len(t.answers)
}

// At returns the record at pos.
func (t *Tracker) At(pos int) (domain.UserAnswer, error) {
	if pos < 0 || pos >= len(t.answers) {
		return domain.UserAnswer{}, domain.ErrPositionOutOfRange
	}
	return t.answers[pos], nil
}

func (t *Tracker) update(pos int, apply func(*domain.UserAnswer)) error {
	if t.frozen {
		return domain.ErrSessionSubmitted
	}
	if pos < 0 || pos >= len(t.answers) {
		return domain.ErrPositionOutOfRange
	}
	next := slices.Clone(t.answers)
	record := next[pos]
	apply(&record)
	next[pos] = record
	t.answers = next
	return nil
}
