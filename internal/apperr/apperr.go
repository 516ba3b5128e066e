// Package apperr defines the error taxonomy shared by every pipeline
// stage and the HTTP boundary. Each stage fails fast with exactly one
// typed error; the handler maps the kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for propagation and status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUpstreamNotFound
	KindUpstreamEmpty
	KindUpstreamTimeout
	KindUpstreamNetworkRestricted
	KindNoValidReviews
	KindRateLimited
	KindModelQuotaExceeded
	KindInvalidModelResponse
	KindPipelineTimeout
)

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind       Kind
	Msg        string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a typed error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Suggestion: suggestionFor(kind)}
}

// Newf builds a typed error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap builds a typed error around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Suggestion: suggestionFor(kind), Err: err}
}

// KindOf extracts the kind from err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SuggestionOf extracts the retry/verify hint from err, if any.
func SuggestionOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Suggestion
	}
	return ""
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstreamNotFound, KindUpstreamEmpty, KindNoValidReviews:
		return http.StatusNotFound
	case KindRateLimited, KindModelQuotaExceeded:
		return http.StatusTooManyRequests
	case KindUpstreamTimeout, KindUpstreamNetworkRestricted:
		return http.StatusBadGateway
	case KindPipelineTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func suggestionFor(kind Kind) string {
	switch kind {
	case KindUpstreamNotFound:
		return "Verify the app ID is correct for the selected store."
	case KindUpstreamEmpty, KindNoValidReviews:
		return "The app may be too new or have too few reviews to analyze."
	case KindUpstreamTimeout, KindUpstreamNetworkRestricted:
		return "The store did not respond; try again in a moment."
	case KindRateLimited, KindModelQuotaExceeded:
		return "Analysis quota reached; try again in about a minute."
	case KindPipelineTimeout:
		return "The analysis took too long; try again with the same apps."
	default:
		return ""
	}
}
