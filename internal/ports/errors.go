package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Core Errors
	ErrInvalidIntent   = errors.New("trade intent levels are inconsistent with direction")
	ErrUnknownPosition = errors.New("position is not open in the ledger")

	// Feed Specific Errors
	ErrFeedUnavailable  = errors.New("price feed is unavailable")
	ErrConnectionFailed = errors.New("failed to connect to the price feed")
	ErrRateLimited      = errors.New("API rate limit exceeded")

	// Notification Specific Errors
	ErrNotificationFailed = errors.New("failed to deliver notification")
)
