// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/synheart-ai/synheart-core/internal/adapters/repository"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// ConsentHandler handles consent grant/revoke requests.
type ConsentHandler struct {
	deps Dependencies
}

// NewConsentHandler creates a new consent handler.
func NewConsentHandler(deps Dependencies) *ConsentHandler {
	return &ConsentHandler{deps: deps}
}

// consentRequest mirrors the wire schema for PUT /v1/consent.
type consentRequest struct {
	Type               string    `json:"type"`
	Granted            bool      `json:"granted"`
	TS                 time.Time `json:"ts"`
	PolicyVersion      int       `json:"policy_version"`
	ConsentTextVersion int       `json:"consent_text_version"`
}

func (c consentRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Type) == "":
		return errors.New("missing type")
	case c.TS.IsZero():
		return errors.New("missing ts")
	case c.PolicyVersion <= 0:
		return errors.New("policy_version must be positive")
	}
	return nil
}

// HandlePutConsent handles PUT /v1/consent requests.
func (h *ConsentHandler) HandlePutConsent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	update := repository.ConsentUpdate{
		Type:               model.ConsentType(req.Type),
		Granted:            req.Granted,
		Timestamp:          req.TS,
		PolicyVersion:      req.PolicyVersion,
		ConsentTextVersion: req.ConsentTextVersion,
	}
	if err := h.deps.ApplyConsent(r.Context(), update); err != nil {
		if errors.Is(err, repository.ErrUnknownConsentType) {
			writeError(w, http.StatusBadRequest, "unknown_consent_type", err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "applied"})
}
