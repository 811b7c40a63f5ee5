package ragquota

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrServiceClosed is returned when a closed Service is used.
	ErrServiceClosed = errors.New("service closed")
)
