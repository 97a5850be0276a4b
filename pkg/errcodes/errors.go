package errcodes

import (
	"fmt"
	"net/http"
	"time"
)

type Error struct {
	StatusCode int
	Message    string
	Code       string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.StatusCode = err.StatusCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.StatusCode == err.StatusCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// RateLimitError is returned for 429 responses. It is a distinct type so
// callers can route it into the rate-limit tracker instead of treating it as a
// hard failure of the triggering action.
type RateLimitError struct {
	ResetAt time.Time
	Message string
}

func (err *RateLimitError) Error() string {
	return err.Message
}

// Unauthorized returns a 401 error with the given message.
func Unauthorized(msg string) error {
	return &Error{
		http.StatusUnauthorized,
		msg,
		"unauthorized",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

// Conflict is returned when a page save was based on a stale version and the
// server rejected it. Callers should offer a refresh-or-overwrite choice.
func Conflict(msg string) error {
	if msg == "" {
		msg = "The page was changed elsewhere since you loaded it."
	}
	return &Error{
		http.StatusConflict,
		msg,
		"conflict",
	}
}

// InsufficientCredits is the client-side guard raised before any network call
// when the balance can't cover the action.
func InsufficientCredits(required, remaining int) error {
	return &Error{
		http.StatusPaymentRequired,
		fmt.Sprintf("This action costs %d credits but only %d remain. Purchase more credits to continue.", required, remaining),
		"insufficient_credits",
	}
}

func MalformedResponse() error {
	return &Error{
		http.StatusBadGateway,
		"The server returned a response that could not be parsed.",
		"malformed_response",
	}
}

// NetworkUnavailable wraps transport-level failures so the UI renders a
// generic retryable message instead of a raw dial error.
func NetworkUnavailable() error {
	return &Error{
		0,
		"Could not reach the server. Check your connection and try again.",
		"network_unavailable",
	}
}

func ServerError(msg string) error {
	if msg == "" {
		msg = "Internal Server Error"
	}
	return &Error{
		http.StatusInternalServerError,
		msg,
		"internal_server_error",
	}
}
