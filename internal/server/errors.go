package server

import (
	"errors"
	"fmt"
	"net/http"

	"interview-go/internal/submission"
)

var (
	ErrInvalidSession = errors.New("Invalid session")
	ErrSessionClosed  = errors.New("Session is no longer active")
	ErrInvalidJSON    = errors.New("Invalid JSON")
	ErrInvalidBody    = errors.New("Invalid request body")
)

// BodyTooLargeError is returned when a POST body exceeds the ceiling.
type BodyTooLargeError struct {
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return "Request body too large"
}

// HTTPStatus maps an error to the status code it is reported with.
func HTTPStatus(err error) int {
	var tooLarge *BodyTooLargeError
	var maxBytes *http.MaxBytesError
	var fieldErr *submission.FieldError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSession):
		return http.StatusForbidden
	case errors.Is(err, ErrSessionClosed):
		return http.StatusConflict
	case errors.As(err, &tooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, submission.ErrTooManyImages), errors.As(err, &fieldErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func errorPayload(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var fieldErr *submission.FieldError
	if errors.As(err, &fieldErr) {
		body.Error = fieldErr.Message
		body.Field = fieldErr.Field
	}
	return body
}

// writeError reports err as JSON. An oversized body also closes the
// connection so the client stops sending.
func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusRequestEntityTooLarge {
		w.Header().Set("Connection", "close")
	}
	writeJSON(w, status, errorPayload(err))
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}
