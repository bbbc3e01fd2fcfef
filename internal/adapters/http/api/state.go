// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// StateHandler serves the latest assembled state per window class.
type StateHandler struct {
	deps Dependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps Dependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// Wire shapes for GET /v1/state/latest.
type stateResponse struct {
	Window      windowResponse           `json:"window"`
	ComputedAt  time.Time                `json:"computed_at"`
	Tier        string                   `json:"tier,omitempty"`
	Axes        map[string][]axisReading `json:"axes"`
	Embedding   *embeddingResponse       `json:"embedding,omitempty"`
	Modalities  []string                 `json:"modalities"`
	Annotations []annotationResponse     `json:"annotations,omitempty"`
}

type windowResponse struct {
	ID    string    `json:"id"`
	Class string    `json:"class"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type axisReading struct {
	Axis       string   `json:"axis"`
	Score      *float64 `json:"score"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
	Direction  string   `json:"direction,omitempty"`
}

type embeddingResponse struct {
	Vector     []float64 `json:"vector"`
	Degraded   bool      `json:"degraded"`
	Confidence float64   `json:"confidence"`
	Model      string    `json:"model"`
}

type annotationResponse struct {
	Source     string    `json:"source"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// HandleGetLatest handles GET /v1/state/latest?class=short requests.
func (h *StateHandler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	class := model.WindowClass(r.URL.Query().Get("class"))
	if class == "" {
		class = model.WindowShort
	}
	if !class.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	state, ok := h.deps.Latest(class)
	if !ok {
		writeError(w, http.StatusNotFound, "no_state", ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, renderState(state))
}

func renderState(state model.InternalState) stateResponse {
	resp := stateResponse{
		Window: windowResponse{
			ID:    state.Window.ID(),
			Class: string(state.Window.Class),
			Start: state.Window.Start.UTC(),
			End:   state.Window.End.UTC(),
		},
		ComputedAt: state.ComputedAt.UTC(),
		Tier:       string(state.Tier),
		Axes:       make(map[string][]axisReading, len(state.Axes)),
		Modalities: make([]string, 0, len(state.ModalitySet)),
	}
	for group, values := range state.Axes {
		readings := make([]axisReading, 0, len(values))
		for _, v := range values {
			readings = append(readings, axisReading{
				Axis:       v.Axis,
				Score:      v.Score,
				Confidence: v.Confidence,
				Reason:     string(v.Reason),
				Direction:  v.Direction,
			})
		}
		resp.Axes[group] = readings
	}
	if state.Embedding.Model != "" {
		resp.Embedding = &embeddingResponse{
			Vector:     state.Embedding.Vector[:],
			Degraded:   state.Embedding.Degraded,
			Confidence: state.Embedding.Confidence,
			Model:      state.Embedding.Model,
		}
	}
	for _, m := range state.ModalitySet {
		resp.Modalities = append(resp.Modalities, string(m))
	}
	for _, a := range state.Annotations {
		resp.Annotations = append(resp.Annotations, annotationResponse{
			Source:     a.Source,
			Kind:       a.Kind,
			Label:      a.Label,
			Confidence: a.Confidence,
			CreatedAt:  a.CreatedAt.UTC(),
		})
	}
	return resp
}
