// Package fusion combines per-modality feature frames into normalized
// state axes and a dense embedding, one result per temporal window.
//
// Contribution weights are proportional to each modality's confidence and
// renormalized across present modalities, so an absent modality never
// biases the output and a single present modality still yields a result.
package fusion

import (
	"math"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Default fusion configuration constants.
const (
	defaultSmoothingAlpha   = 0.7  // weight of the current window in smoothing
	defaultDirectionEpsilon = 0.02 // minimum delta before direction changes
)

// EmbeddingModel identifies the embedding producer in exported snapshots.
const EmbeddingModel = "synheart-fusion-v1"

// Direction labels for axis trend relative to the previous window.
const (
	DirectionRising  = "rising"
	DirectionFalling = "falling"
	DirectionSteady  = "steady"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSmoothingAlpha sets the current-window weight for temporal
// smoothing; the previous window receives 1-alpha.
func WithSmoothingAlpha(alpha float64) Option {
	return func(e *Engine) {
		if alpha > 0 && alpha <= 1 {
			e.alpha = alpha
		}
	}
}

// WithProjectionSeed sets the embedding projection seed.
func WithProjectionSeed(seed int64) Option {
	return func(e *Engine) {
		e.proj = newProjection(seed)
	}
}

// WithDirectionEpsilon sets the minimum score delta that counts as a
// rising or falling trend.
func WithDirectionEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps >= 0 {
			e.directionEps = eps
		}
	}
}

// RawAxis is one fused axis value before access gating. A nil Score means
// every contributing modality was unavailable.
type RawAxis struct {
	Spec       AxisSpec
	Score      *float64
	Confidence float64
	Direction  string
}

// Result is the fused output for one window, prior to access gating.
type Result struct {
	Window     model.TemporalWindow
	Axes       []RawAxis
	Vector     [model.EmbeddingDim]float64
	RawVector  []float64 // pre-normalization projection output
	Degraded   bool
	Confidence float64
	Present    []model.Modality // modalities that carried weight
	Provenance []model.Modality // all non-absent modalities, incl. zero-confidence
}

// Engine fuses feature frames. It is stateless across calls: temporal
// smoothing reads the previous window's result passed in explicitly, so
// Fuse stays pure and deterministic for fixed inputs.
type Engine struct {
	catalog      []AxisSpec
	proj         *projection
	alpha        float64
	directionEps float64
}

// New creates a fusion engine with the fixed axis catalog.
func New(opts ...Option) *Engine {
	e := &Engine{
		catalog:      Catalog(),
		proj:         newProjection(defaultProjectionSeed),
		alpha:        defaultSmoothingAlpha,
		directionEps: defaultDirectionEpsilon,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse combines the window's frames into axes and an embedding. prev is
// the immediately preceding same-class result, or nil for the first
// window of a session (which is left unsmoothed).
//
// Returns ok=false when zero modalities are present: the window is
// skipped entirely rather than emitted with nulls.
func (e *Engine) Fuse(frames []model.FeatureFrame, win model.TemporalWindow, prev *Result) (Result, bool) {
	byModality := make(map[model.Modality]model.FeatureFrame, len(frames))
	for _, f := range frames {
		byModality[f.Modality] = f
	}

	res := Result{Window: win}

	// A present frame with zero confidence carries no weight but stays in
	// provenance for audit.
	var confSum float64
	for _, m := range model.Modalities {
		f, ok := byModality[m]
		if !ok || f.Absent {
			res.Degraded = true
			continue
		}
		res.Provenance = append(res.Provenance, m)
		if f.Confidence <= 0 {
			res.Degraded = true
			continue
		}
		res.Present = append(res.Present, m)
		confSum += f.Confidence
	}
	if len(res.Present) == 0 {
		return Result{}, false
	}

	weights := make(map[model.Modality]float64, len(res.Present))
	for _, m := range res.Present {
		weights[m] = byModality[m].Confidence / confSum
		res.Confidence += weights[m] * byModality[m].Confidence
	}

	prevAxes := make(map[string]RawAxis)
	if prev != nil {
		for _, a := range prev.Axes {
			prevAxes[a.Spec.Name] = a
		}
	}

	res.Axes = make([]RawAxis, 0, len(e.catalog))
	for _, spec := range e.catalog {
		res.Axes = append(res.Axes, e.fuseAxis(spec, byModality, weights, prevAxes[spec.Name]))
	}

	res.RawVector = e.proj.apply(concatWeighted(byModality, weights))
	res.Vector = l2Normalize(res.RawVector)
	return res, true
}

// fuseAxis computes one axis from its contributing modalities, with
// weights renormalized over the present subset.
func (e *Engine) fuseAxis(spec AxisSpec, frames map[model.Modality]model.FeatureFrame, weights map[model.Modality]float64, prev RawAxis) RawAxis {
	axis := RawAxis{Spec: spec, Direction: DirectionSteady}

	var weightSum float64
	for m := range spec.Sources {
		weightSum += weights[m]
	}
	if weightSum == 0 {
		// No contributing modality present; the assembler will surface
		// this as a dependency-missing null.
		return axis
	}

	var score, conf float64
	for m, idxs := range spec.Sources {
		w := weights[m] / weightSum
		if w == 0 {
			continue
		}
		f := frames[m]
		var sum float64
		for _, i := range idxs {
			// Short frames read missing positions as zero, matching
			// concatWeighted.
			if i < len(f.Values) {
				sum += f.Values[i]
			}
		}
		score += w * (sum / float64(len(idxs)))
		conf += w * f.Confidence
	}

	score = clamp01(score)
	if prev.Score != nil {
		// Bounded convolution over the current and previous same-class
		// window; the first window of a session has no predecessor.
		score = clamp01(e.alpha*score + (1-e.alpha)**prev.Score)
		switch {
		case score > *prev.Score+e.directionEps:
			axis.Direction = DirectionRising
		case score < *prev.Score-e.directionEps:
			axis.Direction = DirectionFalling
		}
	}

	axis.Score = model.Float64Ptr(score)
	axis.Confidence = conf
	return axis
}

// concatWeighted builds the weighted concatenation of modality features in
// fixed modality order. Absent or weightless modalities contribute zeros.
func concatWeighted(frames map[model.Modality]model.FeatureFrame, weights map[model.Modality]float64) []float64 {
	out := make([]float64, 0, concatDim)
	for _, m := range model.Modalities {
		dim := modalityDim(m)
		w := weights[m]
		f, ok := frames[m]
		for i := 0; i < dim; i++ {
			if ok && !f.Absent && w > 0 && i < len(f.Values) {
				out = append(out, w*f.Values[i])
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

func modalityDim(m model.Modality) int {
	switch m {
	case model.ModalityWear:
		return 8
	default:
		return 6
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
