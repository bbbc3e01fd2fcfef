// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/synheart-ai/synheart-core/internal/adapters/export"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// ingestRateLimit bounds accepted ingest requests per fixed one-minute
// window. Local loopback traffic never comes close.
const ingestRateLimit = 120

// maxIngestBody caps the request body read for an ingest envelope.
const maxIngestBody = 1 << 20

// IngestHandler implements the server side of the upload handshake:
// tenant check, signature verification, nonce freshness, replay
// rejection, and schema validation, in that order.
type IngestHandler struct {
	deps Dependencies

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Dependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// ingestBody is the minimal shape an upload body must carry: the keys
// the wire snapshot actually emits, so the runtime's own uploader output
// always passes.
type ingestBody struct {
	Subject struct {
		SubjectType string `json:"subject_type"`
		SubjectID   string `json:"subject_id"`
	} `json:"subject"`
	Snapshot struct {
		HSIVersion string          `json:"hsi_version"`
		WindowIDs  []string        `json:"window_ids"`
		Windows    json.RawMessage `json:"windows"`
	} `json:"snapshot"`
}

// HandleIngest handles POST /v1/ingest/hsi requests.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.allow(time.Now()) {
		h.reject(w, http.StatusTooManyRequests, export.ErrRateLimited)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	tenant := r.Header.Get("X-Tenant-Id")
	signature := r.Header.Get("X-Signature")
	nonce := r.Header.Get("X-Nonce")
	timestamp := r.Header.Get("X-Timestamp")

	if err := h.deps.VerifyIngest(r.Method, r.URL.Path, tenant, timestamp, nonce, signature, body); err != nil {
		switch {
		case errors.Is(err, export.ErrInvalidTenant):
			h.reject(w, http.StatusForbidden, export.ErrInvalidTenant)
		case errors.Is(err, export.ErrInvalidNonce):
			h.reject(w, http.StatusUnauthorized, export.ErrInvalidNonce)
		case errors.Is(err, export.ErrInvalidSignature):
			h.reject(w, http.StatusUnauthorized, export.ErrInvalidSignature)
		default:
			h.reject(w, http.StatusUnauthorized, export.ErrInvalidSignature)
		}
		return
	}

	var parsed ingestBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		h.reject(w, http.StatusUnprocessableEntity, export.ErrSchemaValidation)
		return
	}
	if parsed.Subject.SubjectID == "" || len(parsed.Snapshot.WindowIDs) == 0 || len(parsed.Snapshot.Windows) == 0 {
		h.reject(w, http.StatusUnprocessableEntity, export.ErrSchemaValidation)
		return
	}
	if parsed.Snapshot.HSIVersion != export.HSIVersion {
		h.reject(w, http.StatusUnprocessableEntity, export.ErrSchemaValidation)
		return
	}

	writeJSON(w, http.StatusOK, ackResponse{Status: "ingested"})
}

// reject writes the wire error code and records the rejection metric.
func (h *IngestHandler) reject(w http.ResponseWriter, status int, kind error) {
	metrics.RecordIngestRejected(kind.Error())
	writeError(w, status, kind.Error(), kind)
}

// allow applies a fixed-window rate limit.
func (h *IngestHandler) allow(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if now.Sub(h.windowStart) >= time.Minute {
		h.windowStart = now
		h.count = 0
	}
	if h.count >= ingestRateLimit {
		return false
	}
	h.count++
	return true
}
