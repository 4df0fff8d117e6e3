package common

import "errors"

// Dependency validation errors.
var (
	// ErrLoggerRequired is returned when a command is built without a logger.
	ErrLoggerRequired = errors.New("logger is required")
	// ErrConfigRequired is returned when a command is built without config.
	ErrConfigRequired = errors.New("config is required")
)
