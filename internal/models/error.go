package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource state has changed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrUserNotFound is an ErrNotFound for a missing user profile, as
	// opposed to a missing request
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// Request lifecycle errors
	ErrPreconditionFailed     = errors.New("precondition failed")
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidFulfillmentMode = errors.New("invalid fulfillment mode")

	// Credential vault errors
	ErrCipherNotConfigured    = errors.New("credentials encryption key is not configured")
	ErrMalformedEnvelope      = errors.New("invalid encrypted payload format")
	ErrEnvelopeAuthentication = errors.New("encrypted payload failed authentication")
	ErrInvalidValidatedURL    = errors.New("could not parse validated GET session token from URL")
	ErrCredentialNotLinked    = errors.New("GET account is not connected")
)
