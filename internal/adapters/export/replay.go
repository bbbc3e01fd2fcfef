package export

import (
	"sync"
)

// defaultReplayCapacity bounds how many nonces the guard remembers.
const defaultReplayCapacity = 4096

// ReplayGuard records seen nonces so a reused nonce is rejected locally
// when running in loopback or test mode. Bounded: the oldest remembered
// nonce is evicted once capacity is reached, which is safe because the
// freshness window already rejects anything that old.
type ReplayGuard struct {
	mu       sync.Mutex
	seen     map[string]int
	order    []string
	head     int
	capacity int
}

// ReplayOption applies a configuration option to the ReplayGuard.
type ReplayOption func(*ReplayGuard)

// WithReplayCapacity sets the maximum number of remembered nonces.
func WithReplayCapacity(n int) ReplayOption {
	return func(g *ReplayGuard) {
		if n > 0 {
			g.capacity = n
		}
	}
}

// NewReplayGuard creates a bounded replay guard.
func NewReplayGuard(opts ...ReplayOption) *ReplayGuard {
	g := &ReplayGuard{capacity: defaultReplayCapacity}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]int, g.capacity)
	g.order = make([]string, 0, g.capacity)
	return g
}

// SeenAndRecord atomically checks whether the nonce was already used and
// records it if not. Returns true when the nonce is a replay.
func (g *ReplayGuard) SeenAndRecord(nonce string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[nonce]; ok {
		return true
	}

	if len(g.order) >= g.capacity {
		oldest := g.order[g.head]
		delete(g.seen, oldest)
		g.order[g.head] = nonce
		g.seen[nonce] = g.head
		g.head = (g.head + 1) % g.capacity
		return false
	}

	g.seen[nonce] = len(g.order)
	g.order = append(g.order, nonce)
	return false
}

// Size returns the number of remembered nonces.
func (g *ReplayGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
