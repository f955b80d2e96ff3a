package hub

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNetworkFailure   = "NETWORK_FAILURE"
	TextCodeRateLimited      = "RATE_LIMITED"
	TextCodeUnexpectedStatus = "UNEXPECTED_STATUS"
)

// NetworkFailure wraps a transport error or timeout. No HTTP status was received.
func NetworkFailure(source error, endpoint string) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, "request to "+endpoint+" failed").
		WithTextCode(TextCodeNetworkFailure).
		WithMetadata(map[string]any{"endpoint": endpoint})
}

// RateLimited is returned when the local request budget refuses a call.
func RateLimited(source error, endpoint string) error {
	return goerrors.Wrap(source, goerrors.CategoryRateLimit, "request to "+endpoint+" not sent").
		WithCode(429).
		WithTextCode(TextCodeRateLimited).
		WithMetadata(map[string]any{"endpoint": endpoint})
}

// UnexpectedStatus describes a response whose status the caller did not expect.
// The body is kept for diagnostics.
func UnexpectedStatus(status int, body string) error {
	return goerrors.New("unexpected status", goerrors.CategoryOperation).
		WithCode(status).
		WithTextCode(TextCodeUnexpectedStatus).
		WithMetadata(map[string]any{"body": body})
}

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, code string) bool {
	var e *goerrors.Error
	if errors.As(err, &e) {
		return e.TextCode == code
	}
	var re *goerrors.RetryableError
	if errors.As(err, &re) && re.BaseError != nil {
		return re.BaseError.TextCode == code
	}
	return false
}

func IsNetworkFailure(err error) bool {
	return HasTextCode(err, TextCodeNetworkFailure)
}

func IsRateLimited(err error) bool {
	return HasTextCode(err, TextCodeRateLimited)
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var e *goerrors.Error
	if errors.As(err, &e) {
		return e.Code
	}
	var re *goerrors.RetryableError
	if errors.As(err, &re) && re.BaseError != nil {
		return re.BaseError.Code
	}
	return 0
}
