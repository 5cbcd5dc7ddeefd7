package config

import "errors"

var (
	// ErrFailedToLoadConfig wraps any error encountered while reading or
	// unmarshaling a TOML document.
	ErrFailedToLoadConfig = errors.New("failed to load config")
	// ErrFailedToValidateConfig wraps the joined set of validation errors
	// Config.Validate collects.
	ErrFailedToValidateConfig = errors.New("failed to validate config")

	ErrUnknownPolicyName = errors.New("unknown policy name")
	ErrInvalidValue      = errors.New("invalid config value")
)
