// Package extract turns external signal batches into fixed-shape feature
// frames, one per modality per window. Malformed input degrades a modality
// to absent; it never aborts the window.
package extract

import (
	"fmt"
	"math"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Fixed feature vector widths per modality. Collectors must match these.
const (
	WearFeatureDim     = 8
	PhoneFeatureDim    = 6
	BehaviorFeatureDim = 6
)

// FeatureDim returns the expected vector width for a modality.
func FeatureDim(m model.Modality) int {
	switch m {
	case model.ModalityWear:
		return WearFeatureDim
	case model.ModalityPhone:
		return PhoneFeatureDim
	default:
		return BehaviorFeatureDim
	}
}

// Batch is one raw sample delivered by an external collector.
type Batch struct {
	Modality   model.Modality
	Hint       time.Time // collector's timestamp for window placement
	Vector     []float64
	Confidence float64
}

// Validate checks structural soundness of a batch. A failing batch is
// excluded from extraction rather than propagated.
func (b Batch) Validate() error {
	if !b.Modality.Valid() {
		return fmt.Errorf("%w: unknown modality %q", ErrMalformedBatch, b.Modality)
	}
	if want := FeatureDim(b.Modality); len(b.Vector) != want {
		return fmt.Errorf("%w: %s vector has %d values, want %d", ErrMalformedBatch, b.Modality, len(b.Vector), want)
	}
	if b.Confidence < 0 || b.Confidence > 1 || math.IsNaN(b.Confidence) {
		return fmt.Errorf("%w: confidence %v out of range", ErrMalformedBatch, b.Confidence)
	}
	for i, v := range b.Vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrMalformedBatch, i)
		}
	}
	if b.Hint.IsZero() {
		return fmt.Errorf("%w: missing window hint timestamp", ErrMalformedBatch)
	}
	return nil
}

// Extractor reduces the batches of one modality collected during one
// window into a single fixed-shape frame.
type Extractor struct {
	modality model.Modality
}

// NewExtractor creates an extractor for the given modality.
func NewExtractor(m model.Modality) *Extractor {
	return &Extractor{modality: m}
}

// Modality returns the modality this extractor serves.
func (e *Extractor) Modality() model.Modality { return e.modality }

// Frame reduces in-window batches to one frame. Invalid batches are
// skipped; if none survive, the frame is absent with a neutral placeholder
// (zero vector, zero confidence) that cannot bias fusion.
func (e *Extractor) Frame(win model.TemporalWindow, batches []Batch) model.FeatureFrame {
	dim := FeatureDim(e.modality)
	frame := model.FeatureFrame{
		Modality: e.modality,
		WindowID: win.ID(),
		Values:   make([]float64, dim),
	}

	var used int
	var confSum float64
	for _, b := range batches {
		if b.Modality != e.modality || !win.Contains(b.Hint) {
			continue
		}
		if err := b.Validate(); err != nil {
			continue
		}
		for i, v := range b.Vector {
			frame.Values[i] += v
		}
		confSum += b.Confidence
		used++
	}

	if used == 0 {
		frame.Absent = true
		return frame
	}

	for i := range frame.Values {
		frame.Values[i] /= float64(used)
	}
	frame.Confidence = confSum / float64(used)
	return frame
}
