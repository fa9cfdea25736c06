package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeCredentialNotFound    = "CREDENTIAL_NOT_FOUND"
	TextCodeInvalidActivationCode = "INVALID_ACTIVATION_CODE"
	TextCodeDeliveryFailed        = "DELIVERY_FAILED"
	TextCodeNotImplemented        = "NOT_IMPLEMENTED"
)

// ErrInvalidCredentials is returned for a wrong password or an unknown email.
// Both cases share the error so callers cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("could not validate credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(errors.TextCodeInvalidCredentials)

// ErrAccountNotActivated is returned when a pending credential tries to log in
var ErrAccountNotActivated = errors.New("account not activated", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(errors.TextCodeAccountPending)

// ErrDuplicateEmail is returned when the email is already bound to a credential
var ErrDuplicateEmail = errors.New("there is already a credential with this email", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeDuplicateEmail)

// ErrCredentialNotFound is the error we return for non found credentials
var ErrCredentialNotFound = errors.New("credential not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeCredentialNotFound)

// ErrInvalidToken signature or payload did not verify
var ErrInvalidToken = errors.New("could not validate token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(errors.TextCodeTokenMalformed)

// ErrTokenExpired token is past its exp claim
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(errors.TextCodeTokenExpired)

// ErrInvalidCode activation code and credential id do not match a record
var ErrInvalidCode = errors.New("invalid activation code", errors.CategoryBadInput).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeInvalidActivationCode)

// ErrDeliveryFailed the activation message could not be delivered
var ErrDeliveryFailed = errors.New("unable to deliver activation message", errors.CategoryExternal).
	WithCode(502).
	WithTextCode(TextCodeDeliveryFailed)

// ErrNotImplemented is returned by store operations that are declared but not built
var ErrNotImplemented = errors.New("operation not implemented", errors.CategoryInternal).
	WithCode(501).
	WithTextCode(TextCodeNotImplemented)

// ErrEmptyPassword we do not hash empty strings
var ErrEmptyPassword = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(errors.TextCodeEmptyPassword)

// hasTextCode matches on the text code so that annotated clones of a
// sentinel (WithMetadata on a Clone) still match.
func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var e *errors.Error
	for current := err; current != nil; current = errors.Unwrap(current) {
		if errors.As(current, &e) && e.TextCode == code {
			return true
		}
	}
	return false
}

func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, errors.TextCodeInvalidCredentials)
}

func IsAccountNotActivated(err error) bool {
	return hasTextCode(err, errors.TextCodeAccountPending)
}

func IsDuplicateEmail(err error) bool {
	return hasTextCode(err, TextCodeDuplicateEmail)
}

func IsCredentialNotFound(err error) bool {
	return hasTextCode(err, TextCodeCredentialNotFound)
}

func IsInvalidCode(err error) bool {
	return hasTextCode(err, TextCodeInvalidActivationCode)
}

func IsDeliveryFailed(err error) bool {
	return hasTextCode(err, TextCodeDeliveryFailed)
}

func IsNotImplemented(err error) bool {
	return hasTextCode(err, TextCodeNotImplemented)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return hasTextCode(err, errors.TextCodeTokenExpired)
}

// IsMalformedError reports tokens that failed to parse or verify
func IsMalformedError(err error) bool {
	return hasTextCode(err, errors.TextCodeTokenMalformed)
}

// annotate returns a copy of the sentinel carrying metadata. Sentinels are
// shared, never mutate them in place.
func annotate(sentinel *errors.Error, meta map[string]any) *errors.Error {
	return sentinel.Clone().WithMetadata(meta)
}
