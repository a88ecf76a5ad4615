package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/bank"
	"agribank-quiz/internal/domain"
	"agribank-quiz/internal/infra/memory"
)

const importCSV = "question,option_a,option_b,option_c,option_d,correct_answer,explanation,category\n" +
	"Lãi suất cơ bản do ai công bố?,NHNN,Bộ Tài chính,,,1,,Lãi suất\n" +
	"Hạn mức tín dụng là gì?,A,B,C,D,3,,Tín dụng\n" +
	"Dòng lỗi,a\n"

func TestBankImportAppendsAndInvalidates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuestionStore(questionBank(2))
	cache := &countingInvalidator{}
	svc := app.NewBankService(store, cache)

	report, err := svc.Import(ctx, strings.NewReader(importCSV), bank.FormatCSV, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 2 || report.Replaced || len(report.Skipped) != 1 || report.Skipped[0].Row != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	if cache.calls != 1 {
		t.Fatalf("expected cache invalidated once, got %d", cache.calls)
	}

	questions, _ := svc.Questions(ctx)
	if len(questions) != 4 {
		t.Fatalf("expected appended bank of 4, got %d", len(questions))
	}
	categories, _ := svc.Categories(ctx)
	if categories["Tín dụng"] != 1 || categories["Credit"] != 1 {
		t.Fatalf("unexpected categories %v", categories)
	}
}

func TestBankImportReplaces(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuestionStore(questionBank(5))
	svc := app.NewBankService(store)

	report, err := svc.Import(ctx, strings.NewReader(importCSV), bank.FormatCSV, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !report.Replaced {
		t.Fatalf("expected replace flag in report")
	}
	questions, _ := store.ListQuestions(ctx)
	if len(questions) != 2 {
		t.Fatalf("expected only imported questions, got %d", len(questions))
	}
}

func TestBankImportRejectsFileWithoutValidRows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuestionStore(questionBank(3))
	svc := app.NewBankService(store)

	_, err := svc.Import(ctx, strings.NewReader("question,option_a\nchỉ một,a\n"), bank.FormatCSV, true)
	if !errors.Is(err, bank.ErrNoValidQuestions) {
		t.Fatalf("expected no valid questions error, got %v", err)
	}
	if questions, _ := store.ListQuestions(ctx); len(questions) != 3 {
		t.Fatalf("a rejected file must not clear the bank, have %d", len(questions))
	}
}

func TestBankImportWritesInBatches(t *testing.T) {
	ctx := context.Background()
	var b strings.Builder
	b.WriteString("question,option_a,option_b,option_c,option_d,correct_answer,explanation,category\n")
	for i := 0; i < 1200; i++ {
		fmt.Fprintf(&b, "Câu %d,a,b,c,d,1,,Bulk\n", i)
	}
	store := &batchCountingStore{QuestionStore: memory.NewQuestionStore(nil)}
	svc := app.NewBankService(store)

	report, err := svc.Import(ctx, strings.NewReader(b.String()), bank.FormatCSV, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 1200 {
		t.Fatalf("expected 1200 imported, got %d", report.Imported)
	}
	if len(store.batches) != 3 || store.batches[0] != app.ImportBatchSize || store.batches[2] != 200 {
		t.Fatalf("unexpected batches %v", store.batches)
	}
}

func TestBankImportReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	cache := &countingInvalidator{}
	store := &batchCountingStore{QuestionStore: memory.NewQuestionStore(nil), failAfter: 1}
	svc := app.NewBankService(store, cache)

	var b strings.Builder
	b.WriteString("question,option_a,option_b,option_c,option_d,correct_answer,explanation,category\n")
	for i := 0; i < 700; i++ {
		fmt.Fprintf(&b, "Câu %d,a,b,,,2,,Bulk\n", i)
	}
	report, err := svc.Import(ctx, strings.NewReader(b.String()), bank.FormatCSV, false)
	if err == nil {
		t.Fatalf("expected store failure")
	}
	if report.Imported != app.ImportBatchSize || cache.calls != 1 {
		t.Fatalf("expected first batch kept and cache invalidated, got %+v, %d invalidations", report, cache.calls)
	}
}

func TestBankExportAndClear(t *testing.T) {
	ctx := context.Background()
	cache := &countingInvalidator{}
	svc := app.NewBankService(memory.NewQuestionStore(questionBank(3)), cache)

	var buf bytes.Buffer
	n, err := svc.Export(ctx, &buf, bank.FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 exported, got %d", n)
	}
	parsed, err := bank.Parse(&buf, bank.FormatJSON)
	if err != nil || len(parsed.Questions) != 3 {
		t.Fatalf("export did not round trip: %v %+v", err, parsed)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if questions, _ := svc.Questions(ctx); len(questions) != 0 {
		t.Fatalf("expected empty bank")
	}
	if cache.calls != 1 {
		t.Fatalf("clear should invalidate caches")
	}
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

type batchCountingStore struct {
	app.QuestionStore
	batches   []int
	failAfter int
}

func (s *batchCountingStore) AddQuestions(ctx context.Context, questions []domain.Question) error {
	if s.failAfter > 0 && len(s.batches) >= s.failAfter {
		return errors.New("connection reset")
	}
	s.batches = append(s.batches, len(questions))
	return s.QuestionStore.AddQuestions(ctx, questions)
}
