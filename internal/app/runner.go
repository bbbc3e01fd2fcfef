package app

import (
	"context"
	"sync"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/fusion"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
	"github.com/synheart-ai/synheart-core/internal/domain/window"
	"github.com/synheart-ai/synheart-core/pkg/logger"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// ModuleSignals is the access-control module name for signal collection.
const ModuleSignals = "signals"

// classRunner owns one window class end to end: buffering batches,
// closing windows on cadence, and running fuse -> assemble -> publish
// strictly in sequence. Window N+1 fusion never starts before window N's
// assembly finished, because one goroutine does both.
type classRunner struct {
	svc *Service
	gen *window.Generator

	mu      sync.Mutex
	batches []extract.Batch

	prev *fusion.Result // previous window's fusion result, nil after a skip
	log  logger.Logger

	done chan struct{}
}

func newClassRunner(svc *Service, class model.WindowClass, start time.Time) *classRunner {
	return &classRunner{
		svc:  svc,
		gen:  window.NewGenerator(class, start),
		log:  svc.log.Named(string(class)),
		done: make(chan struct{}),
	}
}

// add buffers a batch for a future window close. Batches older than the
// currently open window are dropped.
func (r *classRunner) add(b extract.Batch) {
	cur := r.gen.Current()
	if b.Hint.Before(cur.Start) {
		return
	}
	r.mu.Lock()
	r.batches = append(r.batches, b)
	r.mu.Unlock()
}

// run closes windows at class cadence until the context ends.
func (r *classRunner) run(ctx context.Context) {
	defer close(r.done)
	for {
		win := r.gen.Current()
		wait := win.End.Sub(r.svc.clk.Now())
		select {
		case <-ctx.Done():
			return
		case <-r.svc.stopCh:
			return
		case <-r.svc.clk.After(wait):
		}
		r.closeWindow(ctx, r.gen.Next())
	}
}

// takeBatches removes and returns the buffered batches belonging to the
// closed window, keeping later ones for the next window.
func (r *classRunner) takeBatches(win model.TemporalWindow) []extract.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inWindow, later []extract.Batch
	for _, b := range r.batches {
		switch {
		case win.Contains(b.Hint):
			inWindow = append(inWindow, b)
		case !b.Hint.Before(win.End):
			later = append(later, b)
		}
	}
	r.batches = later
	return inWindow
}

// closeWindow runs one full pipeline pass for a closed window against a
// single consistent pair of capability/consent snapshots.
func (r *classRunner) closeWindow(ctx context.Context, win model.TemporalWindow) {
	started := r.svc.clk.Now()
	metrics.RecordWindowClosed(string(win.Class))

	cap := r.svc.caps.Snapshot()
	consents := r.svc.consents.Snapshot()
	now := r.svc.clk.Now()

	batches := r.takeBatches(win)

	// Consent gates fusion inputs, not just outputs: a denied modality is
	// degraded to absent before fusion so it cannot influence the
	// embedding.
	frames := make([]model.FeatureFrame, 0, len(model.Modalities))
	for _, m := range model.Modalities {
		req := access.Request{Module: ModuleSignals, Verb: model.VerbCollect, Consent: model.ConsentForModality(m)}
		out := access.Decide(cap, consents, req, now)
		metrics.RecordAccessOutcome(string(out.Decision), string(out.Reason))

		ext := r.svc.extractors[m]
		if !out.Allowed() {
			frames = append(frames, model.FeatureFrame{
				Modality: m,
				WindowID: win.ID(),
				Values:   make([]float64, extract.FeatureDim(m)),
				Absent:   true,
			})
			continue
		}
		frames = append(frames, ext.Frame(win, batches))
	}

	raw, ok := r.svc.engine.Fuse(frames, win, r.prev)
	if !ok {
		// Zero modalities present: the window is skipped, not emitted
		// with nulls, and the next window fuses unsmoothed.
		r.prev = nil
		metrics.RecordWindowSkipped(string(win.Class))
		return
	}
	r.prev = &raw

	outcomes := access.DecideAll(cap, consents, r.svc.asm.Requests(), now)
	for _, out := range outcomes {
		metrics.RecordAccessOutcome(string(out.Decision), string(out.Reason))
	}
	state := r.svc.asm.Assemble(raw, outcomes, now)
	for _, values := range state.Axes {
		for _, v := range values {
			if v.Score == nil {
				metrics.RecordAxisNull(string(v.Reason))
			}
		}
	}

	state = r.svc.gateway.Annotate(ctx, state, cap, consents, now)

	r.svc.setLatest(state)
	r.svc.broadcaster.Publish(state)
	r.svc.maybeExport(ctx, state, cap, consents, now)

	metrics.RecordFusionLatency(float64(r.svc.clk.Now().Sub(started).Milliseconds()))
	r.log.Debug(ctx, "window closed",
		logger.String("window", win.ID()),
		logger.Int("batches", len(batches)),
	)
}
