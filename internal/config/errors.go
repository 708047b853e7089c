package config

import (
	"errors"
)

var (
	ErrInvalidEntry     = errors.New("config entry invalid")
	ErrConfigLoadFailed = errors.New("failed to load configuration")
	ErrConfigSaveFailed = errors.New("failed to save configuration")
)
