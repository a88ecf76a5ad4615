package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects when a quiz reveals correctness feedback.
type Mode string

const (
	// ModePractice reveals feedback right after each answer.
	ModePractice Mode = "practice"
	// ModeExam withholds feedback until submission; only exam results are persisted.
	ModeExam Mode = "exam"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePractice || m == ModeExam
}

// Question models a multiple choice question from the question bank.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Category      string   `json:"category"`
}

// Validate checks the shape of a question: text present, 2-4 options and an answer index in range.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question text is empty", ErrInvalidQuestion)
	}
	if len(q.Options) < 2 || len(q.Options) > 4 {
		return fmt.Errorf("%w: need 2-4 options, got %d", ErrInvalidQuestion, len(q.Options))
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("%w: correct answer %d out of range", ErrInvalidQuestion, q.CorrectAnswer)
	}
	return nil
}

// QuizConfig describes how a session picks questions and how long it runs.
type QuizConfig struct {
	Mode           Mode           `json:"mode"`
	TimeLimit      int            `json:"timeLimit"` // seconds
	TotalQuestions int            `json:"totalQuestions"`
	Categories     map[string]int `json:"categories"`
}

// Choice is an optional option index. The zero value means "not answered".
type Choice struct {
	index int
	set   bool
}

// Selected returns a Choice holding option index i.
func Selected(i int) Choice {
	return Choice{index: i, set: true}
}

// Unanswered returns the empty Choice.
func Unanswered() Choice {
	return Choice{}
}

// Get returns the selected index and whether one is present.
func (c Choice) Get() (int, bool) {
	return c.index, c.set
}

// IsSet reports whether an option was selected.
func (c Choice) IsSet() bool {
	return c.set
}

// Is reports whether the choice is present and equal to i.
func (c Choice) Is(i int) bool {
	return c.set && c.index == i
}

func (c Choice) String() string {
	if !c.set {
		return "none"
	}
	return strconv.Itoa(c.index)
}

func (c Choice) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(c.index)), nil
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Choice{}
		return nil
	}
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("choice: %w", err)
	}
	*c = Selected(i)
	return nil
}

// UserAnswer is the per-question state of a session.
type UserAnswer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer Choice `json:"selectedAnswer"`
	IsMarked       bool   `json:"isMarked"`
	TimeSpent      int    `json:"timeSpent"` // seconds
}

// QuizResult is the scored outcome of a submitted session.
type QuizResult struct {
	TotalQuestions int          `json:"totalQuestions"`
	CorrectAnswers int          `json:"correctAnswers"`
	WrongAnswers   int          `json:"wrongAnswers"`
	Unanswered     int          `json:"unanswered"`
	Score          float64      `json:"score"`
	TimeSpent      int          `json:"timeSpent"` // seconds
	Answers        []UserAnswer `json:"answers"`
	WrongQuestions []Question   `json:"wrongQuestions,omitempty"`
}

// QuizTemplate is an admin-defined, ready-made quiz configuration.
type QuizTemplate struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Mode             Mode           `json:"mode"`
	TimeLimitMinutes int            `json:"timeLimit"`
	TotalQuestions   int            `json:"totalQuestions"`
	Categories       map[string]int `json:"categories"`
	IsActive         bool           `json:"isActive"`
	CreatedBy        string         `json:"createdBy"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Config converts the template into a session configuration. Templates keep minutes; sessions use seconds.
func (t QuizTemplate) Config() QuizConfig {
	categories := make(map[string]int, len(t.Categories))
	for name, count := range t.Categories {
		categories[name] = count
	}
	return QuizConfig{
		Mode:           t.Mode,
		TimeLimit:      t.TimeLimitMinutes * 60,
		TotalQuestions: t.TotalQuestions,
		Categories:     categories,
	}
}

// StoredResult is the persisted summary of an exam attempt.
type StoredResult struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	Percentage     float64   `json:"percentage"`
	TimeSpent      int       `json:"timeSpent"`
	QuizType       Mode      `json:"quizType"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	DisplayName  string  `json:"displayName"`
	TotalQuizzes int     `json:"totalQuizzes"`
	AverageScore float64 `json:"averageScore"`
	BestScore    float64 `json:"bestScore"`
}

// UserStats summarises a single user's exam history.
type UserStats struct {
	Ranking    *LeaderboardEntry `json:"ranking,omitempty"`
	TotalUsers int               `json:"totalUsers"`
	Recent     []StoredResult    `json:"recent"`
}

// ActiveSession records a logged-in device for single-device enforcement.
type ActiveSession struct {
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId"`
	DeviceInfo   string    `json:"deviceInfo"`
	IPAddress    string    `json:"ipAddress"`
	IsActive     bool      `json:"isActive"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Role is a user's permission level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// UserStatus gates whether an account may log in.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
	StatusPending  UserStatus = "pending"
)

// UserProfile is a portal account.
type UserProfile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"fullName"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserUpdate carries optional admin edits to a profile.
type UserUpdate struct {
	FullName *string     `json:"fullName,omitempty"`
	Role     *Role       `json:"role,omitempty"`
	Status   *UserStatus `json:"status,omitempty"`
}
