// Package common defines shared constants and sentinel errors used across
// pricewatch components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorInvalidInput = errors.New("invalid input")
	ErrorNotVerified  = errors.New("email not verified")
	ErrorInvalidCode  = errors.New("invalid verification code")

	// Authentication errors. ErrUnauthenticated means no usable credential was
	// offered at all; ErrInvalidCredential means the credential actually offered
	// failed signature or expiry checks.
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// Alerting errors.
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrTransitionFailed = errors.New("subscription transition failed")
	ErrUnknownCheckKind = errors.New("unknown check kind")

	// Mail queue errors.
	ErrQueueClosed = errors.New("queue closed")
)
