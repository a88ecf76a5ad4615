package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"agribank-quiz/internal/app"
	"agribank-quiz/internal/auth"
	"agribank-quiz/internal/bank"
	"agribank-quiz/internal/domain"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		log.Printf("http: internal error: %v", err)
		body.Error = "internal error"
	}
	var terr *app.TemplateError
	if errors.As(err, &terr) && len(terr.Shortfall) > 0 {
		body.Detail = terr.Shortfall
	}
	writeJSON(w, status, body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrSessionSubmitted),
		errors.Is(err, domain.ErrSessionNotStarted), errors.Is(err, domain.ErrSessionAlreadyStarted),
		errors.Is(err, domain.ErrSessionNotSubmitted), errors.Is(err, domain.ErrSessionCorrupted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTemplate), errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidUser), errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, domain.ErrEmptyPool), errors.Is(err, domain.ErrNoQuestionsSelected),
		errors.Is(err, domain.ErrInvalidTimeLimit), errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrNoWrongQuestions), errors.Is(err, domain.ErrPositionOutOfRange),
		errors.Is(err, domain.ErrOptionOutOfRange), errors.Is(err, bank.ErrEmptyFile),
		errors.Is(err, bank.ErrNoValidQuestions), errors.Is(err, bank.ErrUnknownFormat),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")
