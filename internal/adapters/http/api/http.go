// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/synheart-ai/synheart-core/internal/adapters/repository"
	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// AddBatch pushes a feature batch into the fusion pipeline.
	AddBatch(ctx context.Context, b extract.Batch) error

	// ApplyConsent installs a consent grant or revocation.
	ApplyConsent(ctx context.Context, u repository.ConsentUpdate) error

	// RefreshCapability verifies and installs a capability token blob.
	RefreshCapability(ctx context.Context, blob string) error

	// Latest returns the most recent assembled state for a window class.
	Latest(class model.WindowClass) (model.InternalState, bool)

	// VerifyIngest applies the envelope checks for loopback ingest.
	VerifyIngest(method, path, tenant, timestamp, nonce, signature string, body []byte) error

	// GetStats reports pipeline counters for the stats endpoint.
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the fusion runtime API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	framesHandler     *FramesHandler
	consentHandler    *ConsentHandler
	capabilityHandler *CapabilityHandler
	stateHandler      *StateHandler
	ingestHandler     *IngestHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		framesHandler:     NewFramesHandler(deps),
		consentHandler:    NewConsentHandler(deps),
		capabilityHandler: NewCapabilityHandler(deps),
		stateHandler:      NewStateHandler(deps),
		ingestHandler:     NewIngestHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/frames", MetricsMiddleware(s.framesHandler.HandlePostFrames, "frames"))
	mux.HandleFunc("/v1/consent", MetricsMiddleware(s.consentHandler.HandlePutConsent, "consent"))
	mux.HandleFunc("/v1/capability", MetricsMiddleware(s.capabilityHandler.HandlePutCapability, "capability"))
	mux.HandleFunc("/v1/state/latest", MetricsMiddleware(s.stateHandler.HandleGetLatest, "state_latest"))
	mux.HandleFunc("/v1/ingest/hsi", MetricsMiddleware(s.ingestHandler.HandleIngest, "ingest"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
