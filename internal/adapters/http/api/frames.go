// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// FramesHandler accepts feature batches from external collectors.
type FramesHandler struct {
	deps Dependencies
}

// NewFramesHandler creates a new frames handler.
func NewFramesHandler(deps Dependencies) *FramesHandler {
	return &FramesHandler{deps: deps}
}

// frameRequest mirrors the wire schema for POST /v1/frames.
type frameRequest struct {
	Modality   string    `json:"modality"`
	TS         time.Time `json:"ts"`
	Vector     []float64 `json:"vector"`
	Confidence float64   `json:"confidence"`
}

// HandlePostFrames handles POST /v1/frames requests.
func (h *FramesHandler) HandlePostFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	batch := extract.Batch{
		Modality:   model.Modality(req.Modality),
		Hint:       req.TS,
		Vector:     req.Vector,
		Confidence: req.Confidence,
	}
	if err := h.deps.AddBatch(r.Context(), batch); err != nil {
		if errors.Is(err, extract.ErrMalformedBatch) {
			writeError(w, http.StatusBadRequest, "malformed_batch", err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
