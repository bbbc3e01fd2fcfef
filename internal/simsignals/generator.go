package simsignals

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	driftPeriod        = 5 * time.Minute
)

// Baseline and jitter per modality, tuned so axis scores drift through
// the full [0,1] range over a run instead of pinning to one regime.
const (
	wearBaseline     = 0.55
	wearJitter       = 0.25
	phoneBaseline    = 0.45
	phoneJitter      = 0.30
	behaviorBaseline = 0.50
	behaviorJitter   = 0.35

	confidenceFloor = 0.6
	confidenceRange = 0.4
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateRound produces one batch per modality, stamped with now. Values
// follow a slow sinusoidal drift plus jitter so consecutive windows show
// plausible rising/falling directions.
func generateRound(now time.Time) []FrameRequest {
	phase := float64(now.UnixNano()) / float64(driftPeriod.Nanoseconds()) * 2 * math.Pi
	drift := math.Sin(phase) * 0.2

	rounds := make([]FrameRequest, 0, len(model.Modalities))
	for _, m := range model.Modalities {
		dim := extract.FeatureDim(m)
		baseline, jitter := modalityShape(m)

		vector := make([]float64, dim)
		for i := range vector {
			v := baseline + drift + (getRandomFloat()-0.5)*jitter
			vector[i] = clamp01(v)
		}
		rounds = append(rounds, FrameRequest{
			Modality:   string(m),
			TS:         now,
			Vector:     vector,
			Confidence: confidenceFloor + getRandomFloat()*confidenceRange,
		})
	}
	return rounds
}

func modalityShape(m model.Modality) (baseline, jitter float64) {
	switch m {
	case model.ModalityWear:
		return wearBaseline, wearJitter
	case model.ModalityPhone:
		return phoneBaseline, phoneJitter
	default:
		return behaviorBaseline, behaviorJitter
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
