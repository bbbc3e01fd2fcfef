package config

import (
	"errors"
)

// Error kinds for this package. Load failures (missing SYNHEART_CONFIG
// file, bad YAML, provider errors) wrap ErrLoadConfig; post-load
// validation failures wrap ErrInvalidConfig and name the offending key.
var (
	ErrInvalidConfig = errors.New("invalid runtime configuration")
	ErrLoadConfig    = errors.New("runtime configuration load failed")
)
