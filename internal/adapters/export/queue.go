package export

import (
	"sync"

	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// defaultQueueCapacity bounds the pending upload list.
const defaultQueueCapacity = 100

// PendingUpload is one signed-and-queued snapshot awaiting delivery.
type PendingUpload struct {
	Snapshot Snapshot
	Body     []byte // canonical serialized form the signature covers
	Attempts int
}

// UploadQueue is the bounded FIFO of snapshots awaiting delivery. All
// enqueue/drain mutation is serialized under one mutex; overflow drops
// the oldest entry.
type UploadQueue struct {
	mu       sync.Mutex
	pending  []PendingUpload
	spill    []PendingUpload // snapshots that exhausted their retries
	capacity int
	closed   bool
	notify   chan struct{}
}

// QueueOption applies a configuration option to the UploadQueue.
type QueueOption func(*UploadQueue)

// WithQueueCapacity sets the maximum number of pending uploads.
func WithQueueCapacity(n int) QueueOption {
	return func(q *UploadQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// NewUploadQueue creates a bounded upload queue.
func NewUploadQueue(opts ...QueueOption) *UploadQueue {
	q := &UploadQueue{
		capacity: defaultQueueCapacity,
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	metrics.UpdateExportQueueCapacity(q.capacity)
	metrics.UpdateExportQueueSize(0)
	return q
}

// Enqueue appends an upload. When the queue is at capacity the oldest
// pending entry is dropped to make room.
func (q *UploadQueue) Enqueue(p PendingUpload) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.pending) >= q.capacity {
		q.pending = q.pending[1:]
		metrics.RecordExportQueueDrop()
	}
	q.pending = append(q.pending, p)
	q.updateSizeLocked()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next pops the oldest pending upload. ok is false when nothing is
// pending.
func (q *UploadQueue) Next() (PendingUpload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return PendingUpload{}, false
	}
	p := q.pending[0]
	q.pending = q.pending[1:]
	q.updateSizeLocked()
	return p, true
}

// Requeue puts a failed upload back at the head so in-order draining is
// preserved across transient failures.
func (q *UploadQueue) Requeue(p PendingUpload) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.pending = append([]PendingUpload{p}, q.pending...)
	if len(q.pending) > q.capacity {
		q.pending = q.pending[:q.capacity]
		metrics.RecordExportQueueDrop()
	}
	q.updateSizeLocked()
}

// Spill moves an upload that exhausted its retries onto the persistent
// retry list, to be re-attempted on a later flush.
func (q *UploadQueue) Spill(p PendingUpload) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.spill = append(q.spill, p)
	metrics.RecordExportSpill()
}

// RestoreSpilled moves spilled uploads back onto the pending list, oldest
// first, resetting their attempt counts.
func (q *UploadQueue) RestoreSpilled() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.spill)
	for _, p := range q.spill {
		p.Attempts = 0
		if len(q.pending) >= q.capacity {
			q.pending = q.pending[1:]
			metrics.RecordExportQueueDrop()
		}
		q.pending = append(q.pending, p)
	}
	q.spill = nil
	q.updateSizeLocked()

	if n > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return n
}

// Discard drops all pending and spilled uploads. Used when configuration
// says revocation discards rather than flushes.
func (q *UploadQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending) + len(q.spill)
	q.pending = nil
	q.spill = nil
	q.updateSizeLocked()
	return n
}

// Wait returns a channel that receives a signal when work arrives.
func (q *UploadQueue) Wait() <-chan struct{} { return q.notify }

// Kick wakes a drainer parked on Wait, e.g. after re-enablement.
func (q *UploadQueue) Kick() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of pending uploads.
func (q *UploadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// SpilledLen returns the number of uploads on the persistent retry list.
func (q *UploadQueue) SpilledLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.spill)
}

// Close stops the queue; subsequent enqueues fail.
func (q *UploadQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *UploadQueue) updateSizeLocked() {
	metrics.UpdateExportQueueSize(len(q.pending))
	metrics.UpdateExportQueueUtilization(float64(len(q.pending)) / float64(q.capacity))
}
