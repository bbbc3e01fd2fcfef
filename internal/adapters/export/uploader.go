package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/synheart-ai/synheart-core/pkg/clock"
	"github.com/synheart-ai/synheart-core/pkg/logger"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// Retry policy constants.
const (
	defaultBackoffBase   = time.Second
	defaultBackoffFactor = 2
	defaultMaxAttempts   = 3

	// IngestPath is the upload endpoint path the signature covers.
	IngestPath = "/v1/ingest/hsi"

	sdkVersion = "synheart-core/1.0"
)

// Subject identifies whose state a snapshot describes.
type Subject struct {
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
}

// uploadBody is the wire body of one upload request.
type uploadBody struct {
	Subject  Subject  `json:"subject"`
	Snapshot Snapshot `json:"snapshot"`
}

// Envelope is a fully prepared upload request: signed headers plus body.
type Envelope struct {
	Method    string
	Path      string
	TenantID  string
	Signature string
	Nonce     string
	Timestamp string
	SDK       string
	Body      []byte
}

// Transport delivers envelopes. The HTTP implementation is the default;
// tests substitute a fake.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
}

// HTTPTransport posts envelopes to a base URL.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

// Send posts the envelope with the signed headers.
func (t *HTTPTransport) Send(ctx context.Context, env Envelope) error {
	req, err := http.NewRequestWithContext(ctx, env.Method, t.BaseURL+env.Path, bytes.NewReader(env.Body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", env.TenantID)
	req.Header.Set("X-Signature", env.Signature)
	req.Header.Set("X-Nonce", env.Nonce)
	req.Header.Set("X-Timestamp", env.Timestamp)
	req.Header.Set("X-Sdk-Version", env.SDK)

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected: status %d", resp.StatusCode)
	}
	return nil
}

// Uploader drains the upload queue through a bounded retry state machine:
// Idle -> Sending -> BackoffWait(n) -> Sending -> Spilled. Backoff waits
// go through the clock abstraction, never an inline sleep, so the machine
// is testable without real delays.
type Uploader struct {
	queue     *UploadQueue
	signer    *Signer
	transport Transport
	clk       clock.Clock
	log       logger.Logger

	tenantID string
	subject  Subject
	producer Producer

	backoffBase   time.Duration
	backoffFactor int
	maxAttempts   int

	discardOnRevoke bool
	enabled         atomic.Bool

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// UploaderOption applies a configuration option to the Uploader.
type UploaderOption func(*Uploader)

// WithClock sets the clock used for backoff waits.
func WithClock(c clock.Clock) UploaderOption {
	return func(u *Uploader) {
		if c != nil {
			u.clk = c
		}
	}
}

// WithTransport sets the delivery transport.
func WithTransport(t Transport) UploaderOption {
	return func(u *Uploader) {
		if t != nil {
			u.transport = t
		}
	}
}

// WithBackoff sets the retry policy.
func WithBackoff(base time.Duration, factor, maxAttempts int) UploaderOption {
	return func(u *Uploader) {
		if base > 0 {
			u.backoffBase = base
		}
		if factor > 1 {
			u.backoffFactor = factor
		}
		if maxAttempts > 0 {
			u.maxAttempts = maxAttempts
		}
	}
}

// WithDiscardOnRevoke controls what happens to queued snapshots when
// cloud upload consent is revoked: discard them (true) or hold them for a
// later explicit flush (false, the default).
func WithDiscardOnRevoke(discard bool) UploaderOption {
	return func(u *Uploader) { u.discardOnRevoke = discard }
}

// WithUploaderLogger sets a custom logger.
func WithUploaderLogger(log logger.Logger) UploaderOption {
	return func(u *Uploader) {
		if log != nil {
			u.log = log
		}
	}
}

// NewUploader creates an uploader. It starts disabled; enablement follows
// cloud upload consent.
func NewUploader(queue *UploadQueue, signer *Signer, tenantID string, subject Subject, producer Producer, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		queue:         queue,
		signer:        signer,
		clk:           clock.New(),
		tenantID:      tenantID,
		subject:       subject,
		producer:      producer,
		backoffBase:   defaultBackoffBase,
		backoffFactor: defaultBackoffFactor,
		maxAttempts:   defaultMaxAttempts,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Enqueue serializes, records, and queues a snapshot for delivery. The
// body bytes are fixed at enqueue time; each delivery attempt signs them
// with a fresh nonce.
func (u *Uploader) Enqueue(snapshot Snapshot) error {
	body, err := json.Marshal(uploadBody{Subject: u.subject, Snapshot: snapshot})
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	return u.queue.Enqueue(PendingUpload{Snapshot: snapshot, Body: body})
}

// SetEnabled toggles draining. Disabling takes effect immediately: the
// drain loop stops before its next send. On revoke, queued snapshots are
// discarded or retained per configuration, never silently retried.
func (u *Uploader) SetEnabled(ctx context.Context, enabled bool) {
	was := u.enabled.Swap(enabled)
	if was && !enabled && u.discardOnRevoke {
		n := u.queue.Discard()
		if u.log != nil && n > 0 {
			u.log.Info(ctx, "discarded queued snapshots on revoke", logger.Int("count", n))
		}
	}
	if enabled {
		// Put spilled snapshots back in play and wake the drain loop.
		u.queue.RestoreSpilled()
		u.queue.Kick()
	}
}

// Enabled reports whether draining is currently permitted.
func (u *Uploader) Enabled() bool { return u.enabled.Load() }

// Start launches the drain loop.
func (u *Uploader) Start(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.started {
		return
	}
	u.started = true
	go u.run(ctx)
}

// Stop halts the drain loop and waits for it to exit.
func (u *Uploader) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.started {
		return
	}
	close(u.stop)
	<-u.done
	u.started = false
}

// Flush drains everything currently pending, synchronously. Used by
// explicit flush actions and tests.
func (u *Uploader) Flush(ctx context.Context) error {
	for {
		if !u.enabled.Load() {
			return ErrExportDisabled
		}
		p, ok := u.queue.Next()
		if !ok {
			return nil
		}
		if err := u.deliver(ctx, p); err != nil {
			return err
		}
	}
}

func (u *Uploader) run(ctx context.Context) {
	defer close(u.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.stop:
			return
		case <-u.queue.Wait():
			u.drain(ctx)
		}
	}
}

// drain delivers pending uploads in order until the queue is empty,
// draining is disabled, or the context ends.
func (u *Uploader) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil || !u.enabled.Load() {
			return
		}
		p, ok := u.queue.Next()
		if !ok {
			return
		}
		if err := u.deliver(ctx, p); err != nil {
			if u.log != nil {
				u.log.Warn(ctx, "snapshot delivery deferred", logger.Error(err))
			}
			return
		}
	}
}

// deliver runs the retry state machine for one upload. After maxAttempts
// failures the upload moves to the persistent retry list; it is a
// reportable error, never a silent drop.
func (u *Uploader) deliver(ctx context.Context, p PendingUpload) error {
	for {
		if !u.enabled.Load() {
			u.queue.Requeue(p)
			return ErrExportDisabled
		}

		env, err := u.envelope(p.Body)
		if err != nil {
			return err
		}

		metrics.RecordExportAttempt()
		err = u.transport.Send(ctx, env)
		if err == nil {
			metrics.RecordExportDelivered()
			return nil
		}

		p.Attempts++
		metrics.RecordExportRetry()
		if p.Attempts >= u.maxAttempts {
			u.queue.Spill(p)
			if u.log != nil {
				u.log.Warn(ctx, "upload retries exhausted; spilled for later",
					logger.Int("attempts", p.Attempts),
					logger.Error(err),
				)
			}
			return fmt.Errorf("%w: %w", ErrUploadExhausted, err)
		}

		wait := u.backoffBase
		for i := 1; i < p.Attempts; i++ {
			wait *= time.Duration(u.backoffFactor)
		}
		select {
		case <-ctx.Done():
			u.queue.Requeue(p)
			return ctx.Err()
		case <-u.stop:
			u.queue.Requeue(p)
			return ErrQueueClosed
		case <-u.clk.After(wait):
		}
	}
}

// envelope signs the body with a fresh nonce and timestamp.
func (u *Uploader) envelope(body []byte) (Envelope, error) {
	now := u.clk.Now()
	nonce, err := NewNonce(now)
	if err != nil {
		return Envelope{}, err
	}
	ts := fmt.Sprintf("%d", now.Unix())
	return Envelope{
		Method:    http.MethodPost,
		Path:      IngestPath,
		TenantID:  u.tenantID,
		Signature: u.signer.Sign(http.MethodPost, IngestPath, u.tenantID, ts, nonce, body),
		Nonce:     nonce,
		Timestamp: ts,
		SDK:       sdkVersion,
		Body:      body,
	}, nil
}
