package quiz

import (
	"fmt"
	"slices"

	"agribank-quiz/internal/domain"
)

// Score computes the result of a session from its questions and answers.
// Positions must line up; the returned TimeSpent is left for the caller to fill.
func Score(questions []domain.Question, answers []domain.UserAnswer) (domain.QuizResult, error) {
	if len(questions) != len(answers) {
		return domain.QuizResult{}, fmt.Errorf("%w: %d questions, %d answers", domain.ErrSessionCorrupted, len(questions), len(answers))
	}

	result := domain.QuizResult{
		TotalQuestions: len(questions),
		Answers:        slices.Clone(answers),
		WrongQuestions: []domain.Question{},
	}
	for i, q := range questions {
		selected, ok := answers[i].SelectedAnswer.Get()
		switch {
		case !ok:
			result.Unanswered++
		case selected == q.CorrectAnswer:
			result.CorrectAnswers++
		default:
			result.WrongAnswers++
			result.WrongQuestions = append(result.WrongQuestions, q)
		}
	}
	if result.TotalQuestions > 0 {
		result.Score = float64(result.CorrectAnswers) * 100 / float64(result.TotalQuestions)
	}
	return result, nil
}
