package types

import "errors"

// Pipeline errors
var (
	// Configuration is missing or inconsistent; detected before any network call
	ErrConfigInvalid = errors.New("invalid configuration")

	// Login handshake failed (network error, missing CSRF or session cookie)
	ErrLoginFailed = errors.New("login failed")

	// The add endpoint rejected the session credential
	ErrSessionExpired = errors.New("session expired")

	// The add endpoint failed for a reason other than a timeout
	ErrSubmissionFailed = errors.New("submission failed")

	// Batch submission requires at least one URL
	ErrEmptyBatch = errors.New("batch is empty")
)
