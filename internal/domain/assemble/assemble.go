// Package assemble applies access decisions to fused output, producing
// the immutable per-window internal state. Assembly is total: every axis
// in the catalog appears in the result, either with a value or with an
// explicit null plus reason. Partial assembly is a defect.
package assemble

import (
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/fusion"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Assembler gates fused results with access outcomes.
type Assembler struct{}

// New creates an assembler.
func New() *Assembler {
	return &Assembler{}
}

// Requests returns the access checks one window's assembly needs, derived
// from the axis catalog. Evaluating them against a single snapshot pair
// keeps every axis in one state consistent.
func (a *Assembler) Requests() []access.Request {
	var reqs []access.Request
	seen := make(map[access.Request]bool)
	for _, spec := range fusion.Catalog() {
		for _, c := range spec.Consents {
			r := access.Request{Module: spec.Module, Verb: model.VerbCompute, Consent: c}
			if !seen[r] {
				seen[r] = true
				reqs = append(reqs, r)
			}
		}
	}
	return reqs
}

// Assemble builds the internal state for one window from the raw fusion
// result and the access outcomes computed against one snapshot pair.
//
// Denied axes become null with the outcome's reason, never zero or a
// substitute value. The embedding is carried whenever anything at all was
// allowed; tier controls its exported resolution, not its presence.
func (a *Assembler) Assemble(raw fusion.Result, outcomes map[access.Request]model.AccessOutcome, now time.Time) model.InternalState {
	state := model.InternalState{
		Window:      raw.Window,
		ComputedAt:  now,
		Axes:        make(map[string][]model.StateAxisValue),
		ModalitySet: raw.Present,
	}

	anyAllowed := false
	maxTier := model.Tier("")
	for _, ra := range raw.Axes {
		val := a.gateAxis(ra, outcomes)
		if val.Score != nil {
			anyAllowed = true
		}
		state.Axes[ra.Spec.Group] = append(state.Axes[ra.Spec.Group], val)
	}
	for _, out := range outcomes {
		if out.Allowed() {
			anyAllowed = true
			if out.Tier.AtLeast(maxTier) {
				maxTier = out.Tier
			}
		}
	}
	state.Tier = maxTier

	if anyAllowed {
		state.Embedding = model.StateEmbedding{
			Vector:     raw.Vector,
			Degraded:   raw.Degraded,
			Confidence: raw.Confidence,
			WindowID:   raw.Window.ID(),
			Model:      fusion.EmbeddingModel,
		}
		if maxTier == model.TierResearch {
			// Fusion-internal vector is research-only material.
			state.RawVector = append([]float64(nil), raw.RawVector...)
		}
	}

	return state
}

// gateAxis resolves one axis against its dependency outcomes.
func (a *Assembler) gateAxis(ra fusion.RawAxis, outcomes map[access.Request]model.AccessOutcome) model.StateAxisValue {
	val := model.StateAxisValue{
		Axis:       ra.Spec.Name,
		Group:      ra.Spec.Group,
		Direction:  ra.Direction,
		Modalities: ra.Spec.Modalities(),
		Consents:   ra.Spec.Consents,
	}

	// Dependencies are checked in the axis catalog's declared order so
	// the surfaced reason is deterministic.
	for _, c := range ra.Spec.Consents {
		req := access.Request{Module: ra.Spec.Module, Verb: model.VerbCompute, Consent: c}
		out, ok := outcomes[req]
		if !ok {
			val.Reason = model.ReasonDependencyMissing
			return val
		}
		if !out.Allowed() {
			val.Reason = out.Reason
			return val
		}
	}

	if ra.Score == nil {
		// Allowed, but every contributing modality was unavailable.
		val.Reason = model.ReasonDependencyMissing
		return val
	}

	val.Score = ra.Score
	val.Confidence = ra.Confidence
	return val
}
