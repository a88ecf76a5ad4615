package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"agribank-quiz/internal/bank"
	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/quiz"
)

// ImportBatchSize bounds how many questions are written per store call.
const ImportBatchSize = 500

// ImportReport summarises a question bank import.
type ImportReport struct {
	Imported int             `json:"imported"`
	Replaced bool            `json:"replaced"`
	Skipped  []bank.RowError `json:"skipped"`
}

// BankService manages the question bank and keeps caches in step with it.
type BankService struct {
	store  QuestionStore
	caches []Invalidator
}

func NewBankService(store QuestionStore, caches ...Invalidator) *BankService {
	return &BankService{store: store, caches: caches}
}

// Import parses a question file and stores its valid rows. With replace set the
// existing bank is cleared first; otherwise the questions are appended.
func (b *BankService) Import(ctx context.Context, r io.Reader, format bank.Format, replace bool) (ImportReport, error) {
	parsed, err := bank.Parse(r, format)
	if err != nil {
		return ImportReport{Skipped: parsed.Errors}, err
	}

	if replace {
		if err := b.store.ClearQuestions(ctx); err != nil {
			return ImportReport{}, fmt.Errorf("clear questions: %w", err)
		}
	}
	imported := 0
	for start := 0; start < len(parsed.Questions); start += ImportBatchSize {
		end := min(start+ImportBatchSize, len(parsed.Questions))
		if err := b.store.AddQuestions(ctx, parsed.Questions[start:end]); err != nil {
			b.invalidate(ctx)
			return ImportReport{Imported: imported, Replaced: replace, Skipped: parsed.Errors}, fmt.Errorf("add questions %d-%d: %w", start+1, end, err)
		}
		imported = end
	}
	b.invalidate(ctx)

	log.Printf("bank: imported %d questions (%s, replace=%t), skipped %d rows", imported, format, replace, len(parsed.Errors))
	return ImportReport{Imported: imported, Replaced: replace, Skipped: parsed.Errors}, nil
}

// Export writes the whole bank in the given format and returns the question count.
func (b *BankService) Export(ctx context.Context, w io.Writer, format bank.Format) (int, error) {
	questions, err := b.store.ListQuestions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	if err := bank.Write(w, format, questions); err != nil {
		return 0, err
	}
	return len(questions), nil
}

// Questions lists the bank.
func (b *BankService) Questions(ctx context.Context) ([]domain.Question, error) {
	return b.store.ListQuestions(ctx)
}

// Categories counts questions per category.
func (b *BankService) Categories(ctx context.Context) (map[string]int, error) {
	questions, err := b.store.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return quiz.CategoryCounts(questions), nil
}

// Clear empties the bank.
func (b *BankService) Clear(ctx context.Context) error {
	if err := b.store.ClearQuestions(ctx); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	b.invalidate(ctx)
	log.Printf("bank: cleared question bank")
	return nil
}

func (b *BankService) invalidate(ctx context.Context) {
	for _, c := range b.caches {
		if err := c.Invalidate(ctx); err != nil {
			log.Printf("bank: invalidate cache: %v", err)
		}
	}
}
