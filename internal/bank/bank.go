// Package bank reads and writes question bank files.
//
// All tabular formats share one column layout:
//
//	question, option_a, option_b, option_c, option_d, correct_answer, explanation, category
//
// correct_answer is 1-based. Empty options are dropped, so a row may carry
// two to four answers. Invalid rows are skipped and reported in
// ParseResult.Errors; a file without a single valid row is rejected.
package bank

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"agribank-quiz/internal/domain"
)

// DefaultCategory is assigned to rows without a category.
const DefaultCategory = "Uncategorized"

// Columns is the header row written on export.
var Columns = []string{"question", "option_a", "option_b", "option_c", "option_d", "correct_answer", "explanation", "category"}

const minColumns = 6

var (
	ErrEmptyFile        = errors.New("question file is empty")
	ErrNoValidQuestions = errors.New("question file has no valid questions")
	ErrUnknownFormat    = errors.New("unknown question file format")
)

// Format names a supported file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// RowError reports why a row was skipped. Row is 1-based and counts the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseResult holds the accepted questions and the skipped rows.
type ParseResult struct {
	Questions []domain.Question `json:"questions"`
	Errors    []RowError        `json:"errors"`
}

// Parse reads a question file in the given format.
func Parse(r io.Reader, format Format) (ParseResult, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r)
	case FormatJSON:
		return ParseJSON(r)
	default:
		return ParseResult{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Write exports questions in the given format.
func Write(w io.Writer, format Format, questions []domain.Question) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, questions)
	case FormatXLSX:
		return WriteXLSX(w, questions)
	case FormatJSON:
		return WriteJSON(w, questions)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// parseRows converts a header row plus data rows into questions.
func parseRows(rows [][]string) (ParseResult, error) {
	if len(rows) == 0 {
		return ParseResult{}, ErrEmptyFile
	}

	res := ParseResult{Questions: []domain.Question{}, Errors: []RowError{}}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		q, err := rowToQuestion(row)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 2, Message: err.Error()})
			continue
		}
		res.Questions = append(res.Questions, q)
	}

	if len(res.Questions) == 0 {
		return res, fmt.Errorf("%w: %d rows rejected", ErrNoValidQuestions, len(res.Errors))
	}
	return res, nil
}

func rowToQuestion(row []string) (domain.Question, error) {
	if len(row) < minColumns {
		return domain.Question{}, fmt.Errorf("not enough columns (need %d, have %d)", minColumns, len(row))
	}
	field := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	text := field(0)
	if text == "" {
		return domain.Question{}, errors.New("missing question")
	}

	options := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		if opt := field(i); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 {
		return domain.Question{}, fmt.Errorf("not enough options (need at least 2, have %d)", len(options))
	}

	raw := field(5)
	answer, err := strconv.Atoi(raw)
	if err != nil || answer < 1 || answer > len(options) {
		return domain.Question{}, fmt.Errorf("invalid correct answer %q", raw)
	}

	category := field(7)
	if category == "" {
		category = DefaultCategory
	}

	return domain.Question{
		ID:            uuid.NewString(),
		Question:      text,
		Options:       options,
		CorrectAnswer: answer - 1,
		Explanation:   field(6),
		Category:      category,
	}, nil
}

// questionRow is the inverse of rowToQuestion.
func questionRow(q domain.Question) []string {
	row := make([]string, len(Columns))
	row[0] = q.Question
	for i := 0; i < 4 && i < len(q.Options); i++ {
		row[1+i] = q.Options[i]
	}
	row[5] = strconv.Itoa(q.CorrectAnswer + 1)
	row[6] = q.Explanation
	row[7] = q.Category
	return row
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
