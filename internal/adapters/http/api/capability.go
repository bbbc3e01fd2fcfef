// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
)

// CapabilityHandler handles capability token refresh requests.
type CapabilityHandler struct {
	deps Dependencies
}

// NewCapabilityHandler creates a new capability handler.
func NewCapabilityHandler(deps Dependencies) *CapabilityHandler {
	return &CapabilityHandler{deps: deps}
}

// capabilityRequest mirrors the wire schema for PUT /v1/capability.
type capabilityRequest struct {
	Token string `json:"token"`
}

// HandlePutCapability handles PUT /v1/capability requests. The token is
// replaced wholesale; partial merges of grant sets are not a thing.
func (h *CapabilityHandler) HandlePutCapability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	var req capabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing token"))
		return
	}

	if err := h.deps.RefreshCapability(r.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, access.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "token_expired", err)
		case errors.Is(err, access.ErrTokenInvalid):
			writeError(w, http.StatusUnauthorized, "token_invalid", err)
		default:
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "refreshed"})
}
