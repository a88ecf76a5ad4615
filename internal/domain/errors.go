package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or was abandoned.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a question ID is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion indicates a malformed question record.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrEmptyPool rejects a session start when the question bank is empty.
	ErrEmptyPool = errors.New("no questions available to start a quiz")
	// ErrNoQuestionsSelected rejects a session start when the configuration selects nothing.
	ErrNoQuestionsSelected = errors.New("no questions match the quiz configuration")
	// ErrInvalidTimeLimit rejects a session start with a non-positive time limit.
	ErrInvalidTimeLimit = errors.New("time limit must be a positive number of seconds")
	// ErrInvalidMode rejects an unknown quiz mode.
	ErrInvalidMode = errors.New("unknown quiz mode")

	// ErrSessionAlreadyStarted rejects a second Start on the same session.
	ErrSessionAlreadyStarted = errors.New("quiz session already started")
	// ErrSessionNotStarted is returned for actions that need an in-progress session.
	ErrSessionNotStarted = errors.New("quiz session is not in progress")
	// ErrSessionSubmitted is returned for mutations after submission.
	ErrSessionSubmitted = errors.New("quiz session already submitted")
	// ErrSessionNotSubmitted is returned when a result is requested too early.
	ErrSessionNotSubmitted = errors.New("quiz session not submitted yet")
	// ErrSessionCorrupted signals that questions and answers fell out of step; the session must restart.
	ErrSessionCorrupted = errors.New("quiz session state is inconsistent")
	// ErrPositionOutOfRange indicates a question position outside the session.
	ErrPositionOutOfRange = errors.New("question position out of range")
	// ErrOptionOutOfRange indicates an option index the question does not have.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrNoWrongQuestions is returned when a review is requested but nothing was answered wrong.
	ErrNoWrongQuestions = errors.New("no wrong answers to review")

	// ErrTemplateNotFound indicates an unknown or inactive quiz template.
	ErrTemplateNotFound = errors.New("quiz template not found")
	// ErrInvalidTemplate wraps template validation failures.
	ErrInvalidTemplate = errors.New("invalid quiz template")

	// ErrUserNotFound indicates an unknown account.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUser rejects malformed account data such as a bad email or role.
	ErrInvalidUser = errors.New("invalid user data")
	// ErrUserExists is returned when registering a taken email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserInactive blocks login for disabled or pending accounts.
	ErrUserInactive = errors.New("user account is not active")
	// ErrUnauthorized indicates a missing or invalid token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrSessionTerminated is reported when the same account logged in elsewhere.
	ErrSessionTerminated = errors.New("session terminated by a login on another device")
)
