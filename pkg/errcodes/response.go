package errcodes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/segmentio/encoding/json"
)

// envelope matches the API's error payload. Older endpoints return a flat
// {"error": "..."} or {"detail": "..."} string instead of the nested object.
type envelope struct {
	Error  json.RawMessage `json:"error"`
	Detail string          `json:"detail"`
}

type nestedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type rateLimitBody struct {
	ResetTime *int64 `json:"reset_time"`
}

// FromResponse maps a non-2xx API response to a typed error. 429 responses
// become a *RateLimitError carrying the server-provided reset time; everything
// else becomes an *Error built from the response body, falling back to a
// generic message when the body is unusable.
func FromResponse(statusCode int, body []byte, header http.Header) error {
	if statusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			ResetAt: parseResetTime(body, header),
			Message: messageFromBody(body, "You're doing that too often. Please wait a moment."),
		}
	}

	msg := messageFromBody(body, "")
	code := codeFromBody(body)

	if msg == "" {
		msg = http.StatusText(statusCode)
		if msg == "" {
			msg = "Request failed"
		}
	}
	if code == "" {
		code = strcase.ToSnake(msg)
	}

	return &Error{
		StatusCode: statusCode,
		Message:    msg,
		Code:       code,
	}
}

func messageFromBody(body []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if len(env.Error) > 0 {
			var nested nestedError
			if err := json.Unmarshal(env.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if err := json.Unmarshal(env.Error, &flat); err == nil && flat != "" {
				return flat
			}
		}
		if env.Detail != "" {
			return env.Detail
		}
	}
	return fallback
}

func codeFromBody(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return ""
	}
	var nested nestedError
	if err := json.Unmarshal(env.Error, &nested); err != nil {
		return ""
	}
	return nested.Code
}

// parseResetTime prefers the X-RateLimit-Reset header (unix seconds), then
// Retry-After (delta seconds), then a reset_time field in the body. A zero
// time means the server gave us nothing usable.
func parseResetTime(body []byte, header http.Header) time.Time {
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(secs, 0)
		}
	}
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	var rl rateLimitBody
	if err := json.Unmarshal(body, &rl); err == nil && rl.ResetTime != nil {
		return time.Unix(*rl.ResetTime, 0)
	}
	return time.Time{}
}

// IsAuthError reports whether err should force the user back through login.
func IsAuthError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRateLimited returns the reset time when err is a rate-limit signal.
func IsRateLimited(err error) (time.Time, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.ResetAt, true
	}
	return time.Time{}, false
}
