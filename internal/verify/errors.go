package verify

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/deusflow/hftoken/internal/hub"
)

const (
	TextCodeMissingCredential = "MISSING_CREDENTIAL"
	TextCodeInvalidCredential = "INVALID_CREDENTIAL"
	TextCodeModelLoading      = "MODEL_LOADING"
)

// ErrMissingCredential is returned by Run when no token was supplied.
var ErrMissingCredential = goerrors.New("no credential configured", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingCredential)

// InvalidCredential is the identity lookup answering anything but 200.
func InvalidCredential(status int) error {
	return goerrors.New(fmt.Sprintf("credential rejected with status %d", status), goerrors.CategoryAuth).
		WithCode(status).
		WithTextCode(TextCodeInvalidCredential)
}

// TransientUnavailable marks a cold-starting or throttled model. The caller
// decides whether to try again later; nothing here retries.
func TransientUnavailable(status int, textCode, message string) error {
	return goerrors.NewRetryable(message, goerrors.CategoryExternal).
		WithCode(status).
		WithTextCode(textCode).
		WithRetryable(true)
}

func IsMissingCredential(err error) bool {
	return hub.HasTextCode(err, TextCodeMissingCredential)
}

func IsInvalidCredential(err error) bool {
	return hub.HasTextCode(err, TextCodeInvalidCredential)
}

func IsNetworkFailure(err error) bool {
	return hub.IsNetworkFailure(err)
}

func IsTransient(err error) bool {
	return hub.HasTextCode(err, TextCodeModelLoading) || hub.HasTextCode(err, hub.TextCodeRateLimited)
}
