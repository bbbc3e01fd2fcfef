// Package window produces the temporal windows the pipeline aggregates
// over: half-open, non-overlapping intervals generated at class-specific
// cadence with per-class monotonic sequence numbers.
package window

import (
	"sync"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Generator emits consecutive windows of one class. Windows are contiguous
// and close exactly at their declared duration regardless of data
// availability. Safe for use by a single runner goroutine plus concurrent
// Current callers.
type Generator struct {
	mu    sync.Mutex
	class model.WindowClass
	seq   uint64
	start time.Time // start of the window that Next will return
}

// NewGenerator creates a generator whose first window begins at start,
// truncated to the class duration so windows align across restarts.
func NewGenerator(class model.WindowClass, start time.Time) *Generator {
	return &Generator{
		class: class,
		start: start.Truncate(class.Duration()),
	}
}

// Next returns the next window and advances the generator. Sequence
// numbers increase by exactly one per call; the returned window's start
// equals the previous window's end.
func (g *Generator) Next() model.TemporalWindow {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := model.TemporalWindow{
		Class: g.class,
		Seq:   g.seq,
		Start: g.start,
		End:   g.start.Add(g.class.Duration()),
	}
	g.seq++
	g.start = w.End
	return w
}

// Current returns the window that would be produced by the next call to
// Next without advancing the generator.
func (g *Generator) Current() model.TemporalWindow {
	g.mu.Lock()
	defer g.mu.Unlock()

	return model.TemporalWindow{
		Class: g.class,
		Seq:   g.seq,
		Start: g.start,
		End:   g.start.Add(g.class.Duration()),
	}
}

// Class returns the window class this generator produces.
func (g *Generator) Class() model.WindowClass { return g.class }
