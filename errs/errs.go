// Package errs defines the two error taxonomies used across the provider
// tree: SetupError for construction/reconfiguration failures and
// SuggestError for failures during a suggest call. Both are plain
// yaerrors.Error values; the taxonomy lives in the HTTP-style code passed to
// yaerrors.FromError.
package errs

import (
	"net/http"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/yalogger"
)

// Setup error codes, surfaced via yaerrors.Error.Code().
const (
	SetupInvalidConfiguration = http.StatusBadRequest
	SetupNetwork              = http.StatusBadGateway
	SetupIo                   = http.StatusInternalServerError
	SetupFormat               = http.StatusUnprocessableEntity
	SetupInternal             = http.StatusInternalServerError
)

// Suggest error codes, surfaced via yaerrors.Error.Code().
const (
	SuggestNetwork       = http.StatusBadGateway
	SuggestSerialization = http.StatusInternalServerError
	SuggestInternal      = http.StatusInternalServerError
)

// NewSetupError wraps cause as a setup-time error with the given code.
func NewSetupError(code int, cause error, msg string) yaerrors.Error {
	return yaerrors.FromError(code, cause, msg)
}

// NewSetupErrorWithLog wraps cause as a setup-time error and logs it.
func NewSetupErrorWithLog(code int, cause error, msg string, log yalogger.Logger) yaerrors.Error {
	return yaerrors.FromErrorWithLog(code, cause, msg, log)
}

// NewSuggestError wraps cause as a suggest-time error with the given code.
func NewSuggestError(code int, cause error, msg string) yaerrors.Error {
	return yaerrors.FromError(code, cause, msg)
}

// NewSuggestErrorWithLog wraps cause as a suggest-time error and logs it.
func NewSuggestErrorWithLog(code int, cause error, msg string, log yalogger.Logger) yaerrors.Error {
	return yaerrors.FromErrorWithLog(code, cause, msg, log)
}
