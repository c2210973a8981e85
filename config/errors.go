package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	ErrInvalidTimeout     = errors.New("invalid timeout: must be positive")
	ErrTimeoutAboveMax    = errors.New("invalid timeout: default exceeds maximum")
	ErrInvalidConcurrency = errors.New("invalid max concurrent scans: must be positive")
	ErrInvalidEventBuffer = errors.New("invalid event buffer: must be positive")
	ErrInvalidViewport    = errors.New("invalid viewport: width and height must be positive")
	ErrUnknownStoreDriver = errors.New("unknown store driver: use memory or sqlite")

	// ErrProfileNotFound is returned when a site profile file does not exist.
	ErrProfileNotFound = errors.New("profile file not found")
)
