package bank

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"agribank-quiz/internal/domain"
)

// ParseJSON reads an array of questions. Entries that fail validation are
// reported by their 1-based array position.
func ParseJSON(r io.Reader) (ParseResult, error) {
	var raw []domain.Question
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return ParseResult{}, ErrEmptyFile
		}
		return ParseResult{}, fmt.Errorf("decode json: %w", err)
	}
	if len(raw) == 0 {
		return ParseResult{}, ErrEmptyFile
	}

	res := ParseResult{Questions: []domain.Question{}, Errors: []RowError{}}
	for i, q := range raw {
		q.Question = strings.TrimSpace(q.Question)
		if err := q.Validate(); err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if strings.TrimSpace(q.Category) == "" {
			q.Category = DefaultCategory
		}
		res.Questions = append(res.Questions, q)
	}
	if len(res.Questions) == 0 {
		return res, fmt.Errorf("%w: %d entries rejected", ErrNoValidQuestions, len(res.Errors))
	}
	return res, nil
}

// WriteJSON exports questions as an indented JSON array.
func WriteJSON(w io.Writer, questions []domain.Question) error {
	if questions == nil {
		questions = []domain.Question{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
