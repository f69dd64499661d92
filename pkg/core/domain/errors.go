package domain

import "errors"

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrHandleTaken        = errors.New("handle not available")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrVisitConflict is returned by stores when a visit for the same
	// (profile, visitor) or (profile, ip) already exists.
	ErrVisitConflict = errors.New("visit already recorded")
)
