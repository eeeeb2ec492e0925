// Package common defines shared constants and sentinel errors used across
// the portal server. Callers should match errors with errors.Is; detail is
// attached by wrapping, e.g. fmt.Errorf("%w: file too large", ErrorValidation).
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Generic/internal flow control.
	ErrorInternal = errors.New("internal error")

	// Authentication: bad credentials, missing or rejected challenge token,
	// expired or unknown session.
	ErrorAuth = errors.New("authentication failed")

	// Authorization: role or ownership check failed.
	ErrorForbidden = errors.New("access denied")

	// Input validation: oversize file, disallowed extension, missing field,
	// unknown owner, taken username.
	ErrorValidation = errors.New("validation error")

	// Storage collaborator read/write failures.
	ErrorStorage = errors.New("storage error")

	// Verification errors. Timeout and in-progress wrap ErrorVerification so
	// callers can match either the family or the specific condition.
	ErrorVerification           = errors.New("verification error")
	ErrorVerificationTimeout    = &kindError{msg: "verification timed out", parent: ErrorVerification}
	ErrorVerificationInProgress = &kindError{msg: "verification in progress", parent: ErrorVerification}

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// kindError is a sentinel that also matches its parent family.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.parent }
