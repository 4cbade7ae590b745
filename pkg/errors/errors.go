// Package errors defines the sentinel errors shared across the index
// builder and search service, plus an AppError wrapper that carries an
// HTTP status code for the service layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCorpusNotFound     = errors.New("corpus directory not found")
	ErrCorpusEmpty        = errors.New("no document files found in corpus")
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrSegmentCorrupt     = errors.New("segment corrupt")
	ErrIndexNotFound      = errors.New("index file not found")
	ErrLexiconNotFound    = errors.New("lexicon file not found")
	ErrDocMapNotFound     = errors.New("document mapping not found")
	ErrIndexNotReady      = errors.New("index not loaded")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

// AppError wraps a sentinel with a human message and an HTTP status code.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status the service should
// respond with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotFound), errors.Is(err, ErrLexiconNotFound), errors.Is(err, ErrDocMapNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
