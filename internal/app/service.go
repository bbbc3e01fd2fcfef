// Package app provides the core pipeline service that wires stores,
// fusion, assembly, streaming, and export together and implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synheart-ai/synheart-core/internal/adapters/export"
	"github.com/synheart-ai/synheart-core/internal/adapters/repository"
	"github.com/synheart-ai/synheart-core/internal/adapters/stream"
	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/assemble"
	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/fusion"
	"github.com/synheart-ai/synheart-core/internal/domain/interp"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
	"github.com/synheart-ai/synheart-core/pkg/clock"
	"github.com/synheart-ai/synheart-core/pkg/logger"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// ModuleExport is the access-control module name for snapshot export.
const ModuleExport = "export"

// producerName identifies this runtime in snapshot provenance.
const (
	producerName    = "synheart-core"
	producerVersion = "1.0.0"
)

// Service implements the state fusion pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	caps        *repository.CapabilityStore
	consents    *repository.ConsentStore
	engine      *fusion.Engine
	asm         *assemble.Assembler
	gateway     *interp.Gateway
	broadcaster *stream.Broadcaster
	queue       *export.UploadQueue
	uploader    *export.Uploader
	signer      *export.Signer
	replay      *export.ReplayGuard
	extractors  map[model.Modality]*extract.Extractor

	// Configuration
	tenantID              string
	subjectID             string
	capabilitySecret      []byte
	exportSecret          []byte
	exportURL             string
	exportQueueCapacity   int
	exportDiscardOnRevoke bool
	requiredPolicyVersion int
	smoothingAlpha        float64
	projectionSeed        int64
	streamBuffer          int
	interpreters          []interp.Interpreter

	producer export.Producer
	clk      clock.Clock
	log      logger.Logger

	// State
	runners map[model.WindowClass]*classRunner
	latest  map[model.WindowClass]model.InternalState
	started bool
	stopCh  chan struct{}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTenant sets the tenant and subject identity.
func WithTenant(tenantID, subjectID string) Option {
	return func(s *Service) {
		if tenantID != "" {
			s.tenantID = tenantID
		}
		if subjectID != "" {
			s.subjectID = subjectID
		}
	}
}

// WithCapabilitySecret sets the secret verifying capability tokens.
func WithCapabilitySecret(secret []byte) Option {
	return func(s *Service) { s.capabilitySecret = secret }
}

// WithExportSecret sets the secret signing upload envelopes.
func WithExportSecret(secret []byte) Option {
	return func(s *Service) { s.exportSecret = secret }
}

// WithExportURL sets the ingest base URL; empty keeps loopback mode.
func WithExportURL(url string) Option {
	return func(s *Service) { s.exportURL = url }
}

// WithExportQueueCapacity bounds the pending upload list.
func WithExportQueueCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.exportQueueCapacity = n
		}
	}
}

// WithExportDiscardOnRevoke controls queued snapshot fate on revocation.
func WithExportDiscardOnRevoke(discard bool) Option {
	return func(s *Service) { s.exportDiscardOnRevoke = discard }
}

// WithRequiredPolicyVersion sets the consent policy version grants must
// reference.
func WithRequiredPolicyVersion(v int) Option {
	return func(s *Service) {
		if v > 0 {
			s.requiredPolicyVersion = v
		}
	}
}

// WithSmoothingAlpha sets the temporal smoothing weight.
func WithSmoothingAlpha(alpha float64) Option {
	return func(s *Service) {
		if alpha > 0 && alpha <= 1 {
			s.smoothingAlpha = alpha
		}
	}
}

// WithProjectionSeed fixes the embedding projection matrix.
func WithProjectionSeed(seed int64) Option {
	return func(s *Service) { s.projectionSeed = seed }
}

// WithStreamBuffer sets the per-subscriber state backlog.
func WithStreamBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// WithInterpreter registers an interpretation module.
func WithInterpreter(i interp.Interpreter) Option {
	return func(s *Service) {
		if i != nil {
			s.interpreters = append(s.interpreters, i)
		}
	}
}

// WithClock sets the clock driving window cadence and retry backoff.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clk = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tenantID:              "local",
		subjectID:             "local-user",
		capabilitySecret:      []byte("dev-capability-secret"),
		exportSecret:          []byte("dev-export-secret"),
		exportQueueCapacity:   100,
		requiredPolicyVersion: 1,
		smoothingAlpha:        0.7,
		projectionSeed:        42,
		streamBuffer:          16,
		clk:                   clock.New(),
		latest:                make(map[model.WindowClass]model.InternalState),
		stopCh:                make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get()
	}

	s.log.Info(ctx, "starting state fusion pipeline...")

	s.caps = repository.NewCapabilityStore(s.capabilitySecret,
		repository.WithCapabilityLogger(s.log.Named("capability")),
	)
	s.consents = repository.NewConsentStore(
		repository.WithRequiredPolicyVersion(s.requiredPolicyVersion),
		repository.WithConsentLogger(s.log.Named("consent")),
	)
	s.engine = fusion.New(
		fusion.WithSmoothingAlpha(s.smoothingAlpha),
		fusion.WithProjectionSeed(s.projectionSeed),
	)
	s.asm = assemble.New()

	gatewayOpts := []interp.Option{interp.WithLogger(s.log.Named("interp"))}
	for _, i := range s.interpreters {
		gatewayOpts = append(gatewayOpts, interp.WithInterpreter(i))
	}
	s.gateway = interp.New(gatewayOpts...)

	s.broadcaster = stream.New(stream.WithSubscriberBuffer(s.streamBuffer))

	s.extractors = make(map[model.Modality]*extract.Extractor, len(model.Modalities))
	for _, m := range model.Modalities {
		s.extractors[m] = extract.NewExtractor(m)
	}

	s.producer = export.Producer{
		Name:       producerName,
		Version:    producerVersion,
		InstanceID: uuid.NewString(),
	}
	s.signer = export.NewSigner(s.exportSecret)
	s.replay = export.NewReplayGuard()
	s.queue = export.NewUploadQueue(export.WithQueueCapacity(s.exportQueueCapacity))

	uploaderOpts := []export.UploaderOption{
		export.WithClock(s.clk),
		export.WithUploaderLogger(s.log.Named("uploader")),
		export.WithDiscardOnRevoke(s.exportDiscardOnRevoke),
	}
	if s.exportURL != "" {
		uploaderOpts = append(uploaderOpts, export.WithTransport(&export.HTTPTransport{BaseURL: s.exportURL}))
	} else {
		uploaderOpts = append(uploaderOpts, export.WithTransport(s.loopbackTransport()))
	}
	s.uploader = export.NewUploader(s.queue, s.signer, s.tenantID,
		export.Subject{SubjectType: "user", SubjectID: s.subjectID},
		s.producer, uploaderOpts...)
	s.uploader.Start(ctx)

	// A cloudUpload revocation stops draining immediately, ahead of the
	// next window's decision pass.
	s.consents.OnRevoke(func(t model.ConsentType) {
		if t == model.ConsentCloudUpload {
			s.uploader.SetEnabled(context.Background(), false)
		}
	})

	now := s.clk.Now()
	s.runners = make(map[model.WindowClass]*classRunner, len(model.WindowClasses))
	for _, class := range model.WindowClasses {
		r := newClassRunner(s, class, now)
		s.runners[class] = r
		go r.run(ctx)
	}

	s.started = true
	s.log.Info(ctx, "state fusion pipeline started",
		logger.String("tenant", s.tenantID),
		logger.String("instance", s.producer.InstanceID),
	)
	return nil
}

// Stop gracefully shuts down the pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	ctx := context.Background()
	s.log.Info(ctx, "stopping state fusion pipeline...")

	// Runners may be mid-window and still touching the latest map, so the
	// lock must not be held while waiting them out.
	for _, r := range s.runners {
		<-r.done
	}
	s.uploader.Stop()
	_ = s.queue.Close()
	s.broadcaster.Close()

	s.log.Info(ctx, "state fusion pipeline stopped")
}

// AddBatch accepts one feature batch from an external collector and
// buffers it for every window class. Malformed batches are rejected and
// that modality simply degrades to absent for the affected windows.
func (s *Service) AddBatch(ctx context.Context, b extract.Batch) error {
	if err := b.Validate(); err != nil {
		metrics.RecordFrameRejected(string(b.Modality))
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	for _, r := range s.runners {
		r.add(b)
	}
	metrics.RecordFrameAccepted(string(b.Modality))
	return nil
}

// ApplyConsent installs a consent update.
func (s *Service) ApplyConsent(ctx context.Context, u repository.ConsentUpdate) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return s.consents.Apply(ctx, u)
}

// RefreshCapability verifies and installs a capability token blob.
func (s *Service) RefreshCapability(ctx context.Context, blob string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return s.caps.Refresh(ctx, blob, s.clk.Now())
}

// Latest returns the most recent assembled state for a window class.
func (s *Service) Latest(class model.WindowClass) (model.InternalState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.latest[class]
	return st, ok
}

// Subscribe attaches a consumer to the internal state stream.
func (s *Service) Subscribe() (<-chan model.InternalState, func()) {
	return s.broadcaster.Subscribe()
}

// FlushExports drains the upload queue synchronously.
func (s *Service) FlushExports(ctx context.Context) error {
	return s.uploader.Flush(ctx)
}

// VerifyIngest applies the server-analogous envelope checks for the
// loopback ingest endpoint: tenant, signature, nonce freshness, replay.
func (s *Service) VerifyIngest(method, path, tenant, timestamp, nonce, signature string, body []byte) error {
	if tenant != s.tenantID {
		return export.ErrInvalidTenant
	}
	if err := s.signer.Verify(method, path, tenant, timestamp, nonce, signature, body, s.clk.Now()); err != nil {
		return err
	}
	if s.replay.SeenAndRecord(nonce) {
		return export.ErrInvalidNonce
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"tenant":      s.tenantID,
		"subscribers": 0,
	}
	if s.started {
		stats["subscribers"] = s.broadcaster.SubscriberCount()
		stats["export_queue"] = s.queue.Len()
		stats["export_spilled"] = s.queue.SpilledLen()
		stats["export_enabled"] = s.uploader.Enabled()
		stats["capability_installed"] = s.caps.Snapshot() != nil
		windows := make(map[string]string, len(s.latest))
		for class, st := range s.latest {
			windows[string(class)] = st.Window.ID()
		}
		stats["latest_windows"] = windows
	}
	return stats
}

// setLatest records the newest state for a class.
func (s *Service) setLatest(st model.InternalState) {
	s.mu.Lock()
	s.latest[st.Window.Class] = st
	s.mu.Unlock()
}

// maybeExport gates snapshot export and enqueues when allowed. The
// uploader's enablement tracks the cloudUpload decision so queue draining
// and enqueueing stay consistent with the same snapshot pair.
func (s *Service) maybeExport(ctx context.Context, st model.InternalState, cap *access.CapabilityToken, consents access.ConsentView, now time.Time) {
	req := access.Request{Module: ModuleExport, Verb: model.VerbExport, Consent: model.ConsentCloudUpload}
	out := access.Decide(cap, consents, req, now)
	metrics.RecordAccessOutcome(string(out.Decision), string(out.Reason))

	s.uploader.SetEnabled(ctx, out.Allowed())
	if !out.Allowed() {
		return
	}

	snap := export.Build(st, s.producer)
	if err := s.uploader.Enqueue(snap); err != nil {
		s.log.Warn(ctx, "snapshot enqueue failed", logger.Error(err))
	}
}

// loopbackTransport verifies envelopes against this instance's own
// signer, exercising the full signing path without a network.
func (s *Service) loopbackTransport() export.Transport {
	return transportFunc(func(ctx context.Context, env export.Envelope) error {
		return s.VerifyIngest(http.MethodPost, env.Path, env.TenantID, env.Timestamp, env.Nonce, env.Signature, env.Body)
	})
}

// transportFunc adapts a function to the export.Transport interface.
type transportFunc func(ctx context.Context, env export.Envelope) error

func (f transportFunc) Send(ctx context.Context, env export.Envelope) error { return f(ctx, env) }
