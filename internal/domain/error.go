package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Pipeline errors
	ErrUnregisteredTemplate  = errors.New("no canonical template registered for tier")
	ErrMissingPriorTier      = errors.New("prior tier result missing for job")
	ErrInvalidResponseFormat = errors.New("model response does not match the tier schema")
	ErrSecurityTokenMismatch = errors.New("security token missing or altered in response")
	ErrTransientProvider     = errors.New("transient provider failure")
)
