// Package stream delivers one internal state per closed window to
// in-process subscribers. Each subscriber holds an independent buffer, so
// a slow consumer loses its own oldest states instead of blocking window
// production.
package stream

import (
	"sync"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// defaultSubscriberBuffer is the per-subscriber backlog.
const defaultSubscriberBuffer = 16

// Broadcaster fans assembled states out to subscribers.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan model.InternalState
	nextID  int
	bufSize int
	closed  bool
}

// Option applies a configuration option to the Broadcaster.
type Option func(*Broadcaster)

// WithSubscriberBuffer sets the per-subscriber backlog size.
func WithSubscriberBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

// New creates a broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:    make(map[int]chan model.InternalState),
		bufSize: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a consumer. The returned cancel function detaches
// the subscription and closes its channel; calling it twice is safe.
func (b *Broadcaster) Subscribe() (<-chan model.InternalState, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.InternalState, b.bufSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers a state to every subscriber. A subscriber whose buffer
// is full loses its oldest buffered state; the publisher never blocks.
func (b *Broadcaster) Publish(state model.InternalState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		for {
			select {
			case ch <- state:
			default:
				// Buffer full: shed the subscriber's oldest state and retry.
				select {
				case <-ch:
					metrics.RecordStreamDrop()
				default:
				}
				continue
			}
			break
		}
	}
	metrics.RecordStatePublished(string(state.Window.Class))
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches all subscribers and closes their channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
