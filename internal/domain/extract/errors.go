package extract

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrMalformedBatch = errors.New("malformed feature batch")
)
