package config

import "errors"

var (
	// ErrConfigNotFound is returned when a configuration, template, or
	// encoding file does not exist.
	ErrConfigNotFound = errors.New("config not found")

	// ErrMalformedConfig is returned when a document is not valid JSON or a
	// field has an unexpected shape or type.
	ErrMalformedConfig = errors.New("malformed config")
)
