package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestChoiceJSON(t *testing.T) {
	raw, err := json.Marshal(UserAnswer{QuestionID: "q1", SelectedAnswer: Selected(2)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"questionId":"q1","selectedAnswer":2,"isMarked":false,"timeSpent":0}` {
		t.Fatalf("unexpected json %s", raw)
	}

	var blank UserAnswer
	if err := json.Unmarshal([]byte(`{"questionId":"q2","selectedAnswer":null}`), &blank); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if blank.SelectedAnswer.IsSet() {
		t.Fatalf("null should decode as unanswered")
	}

	var zero UserAnswer
	if err := json.Unmarshal([]byte(`{"questionId":"q3","selectedAnswer":0}`), &zero); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !zero.SelectedAnswer.Is(0) {
		t.Fatalf("option 0 must be distinct from unanswered, got %s", zero.SelectedAnswer)
	}
}

func TestQuestionValidate(t *testing.T) {
	valid := Question{Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	bad := []Question{
		{Question: " ", Options: []string{"a", "b"}},
		{Question: "q", Options: []string{"a"}},
		{Question: "q", Options: []string{"a", "b", "c", "d", "e"}},
		{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: 2},
	}
	for i, q := range bad {
		if err := q.Validate(); !errors.Is(err, ErrInvalidQuestion) {
			t.Fatalf("case %d: expected invalid question, got %v", i, err)
		}
	}
}

func TestTemplateConfigConvertsMinutes(t *testing.T) {
	tpl := QuizTemplate{
		Mode:             ModeExam,
		TimeLimitMinutes: 45,
		TotalQuestions:   30,
		Categories:       map[string]int{"Credit": 20},
	}
	cfg := tpl.Config()
	if cfg.TimeLimit != 2700 {
		t.Fatalf("expected 2700 seconds, got %d", cfg.TimeLimit)
	}
	cfg.Categories["Credit"] = 1
	if tpl.Categories["Credit"] != 20 {
		t.Fatalf("config must not alias template categories")
	}
}
