package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidState       = errors.New("operation is not in a valid state for this action")
	ErrClaimConflict      = errors.New("operation already claimed or finished")
	ErrRateLimited        = errors.New("too many requests")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNoCredential       = errors.New("ai credential not configured")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
