package service

import "errors"

var (
	// ErrAuthenticationFailed is returned for an unknown login or a wrong password alike.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrConflict is returned when registering a login that is already taken.
	ErrConflict = errors.New("login already registered")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)
