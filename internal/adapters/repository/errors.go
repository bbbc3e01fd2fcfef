package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUnknownConsentType = errors.New("unknown consent type")
)
