package access

import "errors"

// Sentinel kinds for access errors.
var (
	ErrTokenInvalid = errors.New("capability token invalid")
	ErrTokenExpired = errors.New("capability token expired")
)
