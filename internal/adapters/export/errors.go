package export

import "errors"

// Sentinel kinds for export errors. The string values of the invalid_*
// kinds match the wire error codes surfaced by the ingest side.
var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidNonce     = errors.New("invalid_nonce")
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrRateLimited      = errors.New("rate_limit_exceeded")
	ErrSchemaValidation = errors.New("schema_validation_failed")

	ErrQueueClosed     = errors.New("upload queue closed")
	ErrUploadExhausted = errors.New("upload retries exhausted")
	ErrExportDisabled  = errors.New("cloud upload consent revoked")
)
