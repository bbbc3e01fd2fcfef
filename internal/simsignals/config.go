package simsignals

import "time"

// Config holds configuration for the signal simulation run.
type Config struct {
	BaseURL          string        // Base URL of the service
	Duration         time.Duration // How long to stream synthetic batches
	Interval         time.Duration // Delay between batch rounds
	Workers          int           // Number of concurrent submitters
	Timeout          time.Duration // HTTP request timeout
	Tier             string        // Capability tier to mint (core, extended, research)
	CapabilitySecret string        // Secret for minting the capability token
	TenantID         string        // Tenant id embedded in the token
	PolicyVersion    int           // Consent policy version to grant against
	SkipConsent      bool          // Leave consents ungranted to exercise denial paths
	LogFile          string        // Log file for run output
	Verbose          bool          // Enable verbose logging
}

// FrameRequest mirrors the wire schema for POST /v1/frames.
type FrameRequest struct {
	Modality   string    `json:"modality"`
	TS         time.Time `json:"ts"`
	Vector     []float64 `json:"vector"`
	Confidence float64   `json:"confidence"`
}

// ConsentRequest mirrors the wire schema for PUT /v1/consent.
type ConsentRequest struct {
	Type               string    `json:"type"`
	Granted            bool      `json:"granted"`
	TS                 time.Time `json:"ts"`
	PolicyVersion      int       `json:"policy_version"`
	ConsentTextVersion int       `json:"consent_text_version"`
}

// CapabilityRequest mirrors the wire schema for PUT /v1/capability.
type CapabilityRequest struct {
	Token string `json:"token"`
}

// AckResponse mirrors the acknowledgement returned by write endpoints.
type AckResponse struct {
	Status string `json:"status"`
}

// Stats holds simulation statistics.
type Stats struct {
	BatchesGenerated int
	BatchesSubmitted int
	BatchesAccepted  int
	BatchesRejected  int
	StatesObserved   int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
