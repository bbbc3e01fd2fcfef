// Package export converts internal state into the canonical wire
// snapshot, signs it, and manages delivery through a bounded queue with
// retry. The snapshot transform is pure, lossy, and one-directional: a
// snapshot never round-trips back into internal state.
package export

import (
	"sort"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// HSIVersion is the wire schema version emitted in every snapshot.
const HSIVersion = "1.0"

// Capability provenance limitation markers.
const (
	LimitationAggregatedOnly  = "aggregated_only"
	LimitationNoRawBiosignals = "no_raw_biosignals"
	LimitationNoInference     = "no_inference"
)

// coarseSteps is the quantization grid applied to core-tier embeddings.
const coarseSteps = 16

// Producer identifies the emitting runtime instance.
type Producer struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	InstanceID string `json:"instance_id"`
}

// WindowInfo is the wire description of one window.
type WindowInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// Reading is one axis observation on the wire.
type Reading struct {
	Axis       string   `json:"axis"`
	Score      *float64 `json:"score"`
	Confidence float64  `json:"confidence"`
	WindowID   string   `json:"window_id"`
	Direction  string   `json:"direction"`
	Reason     string   `json:"reason,omitempty"` // set only when score is null
}

// AxisGroup groups readings on the wire.
type AxisGroup struct {
	Readings []Reading `json:"readings"`
}

// Embedding is the wire form of a state embedding.
type Embedding struct {
	Vector     []float64 `json:"vector"`
	Dimension  int       `json:"dimension"`
	Encoding   string    `json:"encoding"`
	Confidence float64   `json:"confidence"`
	WindowID   string    `json:"window_id"`
	Model      string    `json:"model"`
	Degraded   bool      `json:"degraded,omitempty"`
}

// CapabilityProvenance records the authorization context a snapshot was
// produced under. Mandatory on every snapshot.
type CapabilityProvenance struct {
	Tier        string   `json:"tier"`
	Modules     []string `json:"modules"`
	Limitations []string `json:"limitations"`
}

// Privacy declares the data classes a snapshot can contain.
type Privacy struct {
	ContainsPII           bool `json:"contains_pii"`
	RawBiosignalsAllowed  bool `json:"raw_biosignals_allowed"`
	DerivedMetricsAllowed bool `json:"derived_metrics_allowed"`
}

// Snapshot is the versioned external wire object.
type Snapshot struct {
	HSIVersion    string                `json:"hsi_version"`
	ObservedAtUTC string                `json:"observed_at_utc"`
	ComputedAtUTC string                `json:"computed_at_utc"`
	Producer      Producer              `json:"producer"`
	WindowIDs     []string              `json:"window_ids"`
	Windows       map[string]WindowInfo `json:"windows"`
	Axes          map[string]AxisGroup  `json:"axes"`
	Embeddings    []Embedding           `json:"embeddings"`
	FusionVectors [][]float64           `json:"fusion_vectors,omitempty"` // research tier only
	Capability    CapabilityProvenance  `json:"capability"`
	Privacy       Privacy               `json:"privacy"`
}

// Build derives the wire snapshot from one internal state. The transform
// is deterministic for the same state and producer, and intentionally has
// no inverse.
//
// Tier shapes the projection, never the schema: core receives a
// quantized, aggregated embedding copy; extended the full-resolution
// embedding; research additionally the fusion-internal raw vector.
func Build(state model.InternalState, producer Producer) Snapshot {
	wid := state.Window.ID()
	snap := Snapshot{
		HSIVersion:    HSIVersion,
		ObservedAtUTC: state.Window.End.UTC().Format(time.RFC3339),
		ComputedAtUTC: state.ComputedAt.UTC().Format(time.RFC3339),
		Producer:      producer,
		WindowIDs:     []string{wid},
		Windows: map[string]WindowInfo{
			wid: {
				Start: state.Window.Start.UTC().Format(time.RFC3339),
				End:   state.Window.End.UTC().Format(time.RFC3339),
				Label: string(state.Window.Class),
			},
		},
		Axes: make(map[string]AxisGroup, len(state.Axes)),
		Privacy: Privacy{
			ContainsPII:           false,
			RawBiosignalsAllowed:  false,
			DerivedMetricsAllowed: state.Tier != "",
		},
	}

	for group, values := range state.Axes {
		readings := make([]Reading, 0, len(values))
		for _, v := range values {
			r := Reading{
				Axis:       v.Axis,
				Score:      v.Score,
				Confidence: v.Confidence,
				WindowID:   wid,
				Direction:  v.Direction,
			}
			if v.Score == nil {
				r.Reason = string(v.Reason)
			}
			readings = append(readings, r)
		}
		snap.Axes[group] = AxisGroup{Readings: readings}
	}

	if state.Embedding.WindowID != "" {
		vec := state.Embedding.Vector[:]
		if state.Tier == model.TierCore {
			vec = quantize(vec, coarseSteps)
		}
		snap.Embeddings = []Embedding{{
			Vector:     append([]float64(nil), vec...),
			Dimension:  model.EmbeddingDim,
			Encoding:   "float32",
			Confidence: state.Embedding.Confidence,
			WindowID:   wid,
			Model:      state.Embedding.Model,
			Degraded:   state.Embedding.Degraded,
		}}
	}

	if state.Tier == model.TierResearch && len(state.RawVector) > 0 {
		snap.FusionVectors = [][]float64{append([]float64(nil), state.RawVector...)}
	}

	snap.Capability = provenance(state)
	return snap
}

// provenance derives the capability block from the state's tier and
// contributing modules.
func provenance(state model.InternalState) CapabilityProvenance {
	p := CapabilityProvenance{
		Tier:        string(state.Tier),
		Limitations: []string{LimitationNoRawBiosignals},
	}
	seen := make(map[string]bool)
	for group := range state.Axes {
		if !seen[group] {
			seen[group] = true
			p.Modules = append(p.Modules, group)
		}
	}
	sort.Strings(p.Modules)

	switch state.Tier {
	case model.TierCore:
		p.Limitations = append(p.Limitations, LimitationAggregatedOnly, LimitationNoInference)
	case model.TierExtended:
		p.Limitations = append(p.Limitations, LimitationNoInference)
	}
	return p
}

// quantize snaps each component to an n-step grid, discarding the fine
// structure a core-tier consumer is not entitled to.
func quantize(v []float64, steps float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(int(x*steps)) / steps
	}
	return out
}
