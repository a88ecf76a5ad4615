package quiz

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"agribank-quiz/internal/domain"
)

// State is the lifecycle state of a quiz session.
type State int

const (
	StateSetup State = iota
	StateInProgress
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateInProgress:
		return "in-progress"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateSetup, StateInProgress, StateSubmitted} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// EventType names a session notification.
type EventType string

const (
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
)

// Event is pushed to subscribers as the session progresses.
type Event struct {
	Type      EventType          `json:"type"`
	SessionID string             `json:"sessionId"`
	Remaining int                `json:"remaining"`
	Result    *domain.QuizResult `json:"result,omitempty"`
}

// Feedback is returned for every answer. Only practice sessions reveal it.
type Feedback struct {
	Position      int    `json:"position"`
	Revealed      bool   `json:"revealed"`
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

// View is a read-only snapshot of a session for presentation.
type View struct {
	ID        string              `json:"id"`
	State     State               `json:"state"`
	Mode      domain.Mode         `json:"mode"`
	Review    bool                `json:"review"`
	Cursor    int                 `json:"cursor"`
	Total     int                 `json:"total"`
	TimeLimit int                 `json:"timeLimit"`
	Remaining int                 `json:"remaining"`
	Timer     string              `json:"timer"`
	Answers   []domain.UserAnswer `json:"answers"`
}

// SubmitHook observes every session exactly once, when it is submitted.
type SubmitHook func(s *Session, result domain.QuizResult)

// Option customises a Session.
type Option func(*Session)

// WithClock replaces the wall clock and tick scheduler, for tests.
func WithClock(now func() time.Time, sched Scheduler) Option {
	return func(s *Session) {
		s.now = now
		s.sched = sched
	}
}

// WithSubmitHook registers fn to run after submission, outside the session lock.
func WithSubmitHook(fn SubmitHook) Option {
	return func(s *Session) {
		s.onSubmit = fn
	}
}

// Session drives one quiz attempt: setup, in-progress, submitted.
// All state changes go through mu, including those triggered by the timer.
type Session struct {
	id       string
	userID   string
	cfg      domain.QuizConfig
	review   bool
	now      func() time.Time
	sched    Scheduler
	onSubmit SubmitHook

	mu          sync.Mutex
	state       State
	questions   []domain.Question
	tracker     *Tracker
	timer       *Timer
	limit       int
	cursor      int
	startedAt   time.Time
	credited    int
	result      *domain.QuizResult
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewSession creates a session in setup state.
func NewSession(id, userID string, cfg domain.QuizConfig, opts ...Option) *Session {
	s := &Session{
		id:          id,
		userID:      userID,
		cfg:         cfg,
		now:         time.Now,
		sched:       systemScheduler{},
		state:       StateSetup,
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string                { return s.id }
func (s *Session) UserID() string            { return s.userID }
func (s *Session) Config() domain.QuizConfig { return s.cfg }
func (s *Session) IsReview() bool            { return s.review }

// Persistable reports whether the result belongs in the external store:
// exam sessions only, never review sessions.
func (s *Session) Persistable() bool {
	return s.cfg.Mode == domain.ModeExam && !s.review
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start selects questions from pool and starts the countdown. On error the session stays in setup.
func (s *Session) Start(pool []domain.Question, selector *Selector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSetup {
		return fmt.Errorf("start: %w", domain.ErrSessionAlreadyStarted)
	}
	if !s.cfg.Mode.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMode, s.cfg.Mode)
	}
	if len(pool) == 0 {
		return domain.ErrEmptyPool
	}
	if s.cfg.TimeLimit <= 0 {
		return domain.ErrInvalidTimeLimit
	}
	selected := selector.Select(pool, s.cfg)
	if len(selected) == 0 {
		return domain.ErrNoQuestionsSelected
	}
	s.beginLocked(selected)
	return nil
}

func (s *Session) beginLocked(questions []domain.Question) {
	s.questions = questions
	s.tracker = NewTracker(questions)
	s.cursor = 0
	s.credited = 0
	s.result = nil
	s.startedAt = s.now()

	var timer *Timer
	timer = NewTimerWithClock(s.cfg.TimeLimit, func() { s.expire(timer) }, s.now, s.sched)
	timer.OnTick(s.onTick)
	s.timer = timer
	s.limit = timer.Limit()
	s.state = StateInProgress
	timer.Start()
}

// Answer selects option for the question at pos.
func (s *Session) Answer(pos, option int) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return Feedback{}, err
	}
	if pos < 0 || pos >= len(s.questions) {
		return Feedback{}, domain.ErrPositionOutOfRange
	}
	q := s.questions[pos]
	if option < 0 || option >= len(q.Options) {
		return Feedback{}, domain.ErrOptionOutOfRange
	}
	if err := s.tracker.Select(pos, option); err != nil {
		return Feedback{}, err
	}

	fb := Feedback{Position: pos}
	if s.cfg.Mode == domain.ModePractice {
		fb.Revealed = true
		fb.Correct = option == q.CorrectAnswer
		fb.CorrectAnswer = q.CorrectAnswer
		fb.Explanation = q.Explanation
	}
	return fb, nil
}

// ToggleMark flips the review mark of the question at pos.
func (s *Session) ToggleMark(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	return s.tracker.ToggleMark(pos)
}

// Next moves the cursor forward, stopping at the last question.
func (s *Session) Next() (int, error) {
	return s.move(func(cur, total int) int {
		if cur < total-1 {
			return cur + 1
		}
		return cur
	})
}

// Prev moves the cursor back, stopping at the first question.
func (s *Session) Prev() (int, error) {
	return s.move(func(cur, _ int) int {
		if cur > 0 {
			return cur - 1
		}
		return cur
	})
}

// Jump moves the cursor to pos.
func (s *Session) Jump(pos int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSetup {
		return 0, domain.ErrSessionNotStarted
	}
	if pos < 0 || pos >= len(s.questions) {
		return s.cursor, domain.ErrPositionOutOfRange
	}
	s.cursor = pos
	return s.cursor, nil
}

func (s *Session) move(step func(cur, total int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSetup {
		return 0, domain.ErrSessionNotStarted
	}
	s.cursor = step(s.cursor, len(s.questions))
	return s.cursor, nil
}

// Cursor returns the position of the question being viewed.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Current returns the question and answer under the cursor. ErrSessionCorrupted
// means the two fell out of step and the caller should offer Restart.
func (s *Session) Current() (domain.Question, domain.UserAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSetup {
		return domain.Question{}, domain.UserAnswer{}, domain.ErrSessionNotStarted
	}
	if s.cursor < 0 || s.cursor >= len(s.questions) {
		return domain.Question{}, domain.UserAnswer{}, domain.ErrSessionCorrupted
	}
	answer, err := s.tracker.At(s.cursor)
	if err != nil {
		return domain.Question{}, domain.UserAnswer{}, domain.ErrSessionCorrupted
	}
	q := s.questions[s.cursor]
	if answer.QuestionID != q.ID {
		return domain.Question{}, domain.UserAnswer{}, domain.ErrSessionCorrupted
	}
	return q, answer, nil
}

// Questions returns the selected questions in session order.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.questions)
}

// Pause freezes the countdown.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	s.timer.Pause()
	return nil
}

// Resume continues a paused countdown.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	if s.timer.State() == TimerPaused {
		s.timer.Start()
	}
	return nil
}

// Submit ends the session and returns its result. Calling it again returns the same result.
func (s *Session) Submit() (domain.QuizResult, error) {
	return s.submit(nil)
}

// errStaleTimer rejects an expiry from a timer that no longer drives the session.
var errStaleTimer = errors.New("expiry from a replaced timer")

// expire is the callback of timer; it takes the same path as a manual submit.
// Expiries of a timer replaced by Restart are ignored.
func (s *Session) expire(timer *Timer) {
	_, err := s.submit(timer)
	if err != nil && !errors.Is(err, errStaleTimer) {
		log.Printf("quiz: session %s expired but could not be submitted: %v", s.id, err)
	}
}

// submit ends the attempt. A non-nil origin must be the session's current timer.
func (s *Session) submit(origin *Timer) (domain.QuizResult, error) {
	s.mu.Lock()
	if origin != nil && origin != s.timer {
		s.mu.Unlock()
		return domain.QuizResult{}, errStaleTimer
	}
	switch s.state {
	case StateSubmitted:
		result := *s.result
		s.mu.Unlock()
		return result, nil
	case StateSetup:
		s.mu.Unlock()
		return domain.QuizResult{}, domain.ErrSessionNotStarted
	}
	if s.tracker.Len() != len(s.questions) {
		s.mu.Unlock()
		return domain.QuizResult{}, domain.ErrSessionCorrupted
	}

	s.creditLocked(s.timer.Remaining())
	s.timer.Stop()
	s.tracker.Freeze()

	result, err := Score(s.questions, s.tracker.Answers())
	if err != nil {
		s.mu.Unlock()
		return domain.QuizResult{}, err
	}
	result.TimeSpent = int(s.now().Sub(s.startedAt) / time.Second)
	s.result = &result
	s.state = StateSubmitted

	published := result
	s.broadcastLocked(Event{Type: EventSubmitted, SessionID: s.id, Result: &published})
	hook := s.onSubmit
	s.mu.Unlock()

	if hook != nil {
		hook(s, result)
	}
	return result, nil
}

// Result returns the submitted result, if any.
func (s *Session) Result() (domain.QuizResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.QuizResult{}, false
	}
	return *s.result, true
}

// Review starts a practice session over the questions this session got wrong.
// Review sessions are never persisted.
func (s *Session) Review(id string) (*Session, error) {
	s.mu.Lock()
	if s.state != StateSubmitted {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotSubmitted
	}
	wrong := slices.Clone(s.result.WrongQuestions)
	s.mu.Unlock()

	if len(wrong) == 0 {
		return nil, domain.ErrNoWrongQuestions
	}

	cfg := domain.QuizConfig{
		Mode:           domain.ModePractice,
		TimeLimit:      DefaultTimeLimit,
		TotalQuestions: len(wrong),
		Categories:     map[string]int{},
	}
	review := NewSession(id, s.userID, cfg, WithClock(s.now, s.sched), WithSubmitHook(s.onSubmit))
	review.review = true

	review.mu.Lock()
	review.beginLocked(wrong)
	review.mu.Unlock()
	return review, nil
}

// Restart abandons the attempt and returns to setup. It is the recovery path
// after ErrSessionCorrupted.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.state = StateSetup
	s.questions = nil
	s.tracker = nil
	s.timer = nil
	s.cursor = 0
	s.credited = 0
	s.result = nil
}

// Close stops the countdown and releases subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// View returns a presentation snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:        s.id,
		State:     s.state,
		Mode:      s.cfg.Mode,
		Review:    s.review,
		Cursor:    s.cursor,
		Total:     len(s.questions),
		TimeLimit: s.limit,
		Timer:     TimerIdle.String(),
	}
	if s.timer != nil {
		v.Remaining = s.timer.Remaining()
		v.Timer = s.timer.State().String()
	}
	if s.tracker != nil {
		v.Answers = s.tracker.Answers()
	}
	return v
}

// Subscribe returns a channel of session events. The caller must invoke cancel.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return
	}
	s.creditLocked(remaining)
	s.broadcastLocked(Event{Type: EventTick, SessionID: s.id, Remaining: remaining})
}

// creditLocked books countdown seconds not yet attributed to any question to the current one.
func (s *Session) creditLocked(remaining int) {
	elapsed := s.limit - remaining
	if delta := elapsed - s.credited; delta > 0 {
		if err := s.tracker.Spend(s.cursor, delta); err != nil {
			log.Printf("quiz: session %s: credit %ds to question %d: %v", s.id, delta, s.cursor, err)
		}
		s.credited = elapsed
	}
}

func (s *Session) requireInProgressLocked() error {
	switch s.state {
	case StateSetup:
		return domain.ErrSessionNotStarted
	case StateSubmitted:
		return domain.ErrSessionSubmitted
	}
	return nil
}

func (s *Session) broadcastLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so a slow reader never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
