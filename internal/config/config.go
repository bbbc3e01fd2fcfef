// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file/env.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// TenantID identifies the tenant in upload envelopes.
	TenantID string `koanf:"tenant_id"`

	// SubjectID identifies whose state this runtime fuses.
	SubjectID string `koanf:"subject_id"`

	// CapabilitySecret verifies capability token signatures.
	CapabilitySecret string `koanf:"capability_secret"`

	// ExportSecret signs upload envelopes.
	ExportSecret string `koanf:"export_secret"`

	// ExportURL is the ingest base URL; empty means loopback mode.
	ExportURL string `koanf:"export_url"`

	// ExportQueueCapacity bounds the pending upload list.
	ExportQueueCapacity int `koanf:"export_queue_capacity"`

	// ExportDiscardOnRevoke drops queued snapshots when cloud upload
	// consent is revoked instead of holding them for a later flush.
	ExportDiscardOnRevoke bool `koanf:"export_discard_on_revoke"`

	// RequiredPolicyVersion is the consent policy version grants must
	// reference to count.
	RequiredPolicyVersion int `koanf:"required_policy_version"`

	// SmoothingAlpha weights the current window during temporal smoothing.
	SmoothingAlpha float64 `koanf:"smoothing_alpha"`

	// ProjectionSeed fixes the embedding projection matrix.
	ProjectionSeed int64 `koanf:"projection_seed"`

	// StreamBuffer sets the per-subscriber state backlog.
	StreamBuffer int `koanf:"stream_buffer"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		TenantID:              "local",
		SubjectID:             "local-user",
		ExportQueueCapacity:   100,
		RequiredPolicyVersion: 1,
		SmoothingAlpha:        0.7,
		ProjectionSeed:        42,
		StreamBuffer:          16,
	}
}
