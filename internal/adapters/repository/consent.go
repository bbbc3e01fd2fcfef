package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
	"github.com/synheart-ai/synheart-core/pkg/logger"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// ConsentUpdate is one grant or revoke delivered by the consent UI.
type ConsentUpdate struct {
	Type               model.ConsentType
	Granted            bool
	Timestamp          time.Time
	PolicyVersion      int
	ConsentTextVersion int
}

// ConsentStore holds the latest record per consent type for one
// (user, device) pair. Revocation applies immediately; there is no
// implicit re-grant.
type ConsentStore struct {
	mu             sync.RWMutex
	records        map[model.ConsentType]access.ConsentRecord
	requiredPolicy int
	revokeHooks    []func(model.ConsentType)
	log            logger.Logger
}

// ConsentOption applies a configuration option to the ConsentStore.
type ConsentOption func(*ConsentStore)

// WithRequiredPolicyVersion sets the policy version a grant must
// reference to count as valid.
func WithRequiredPolicyVersion(v int) ConsentOption {
	return func(s *ConsentStore) {
		if v > 0 {
			s.requiredPolicy = v
		}
	}
}

// WithConsentLogger sets a custom logger for the store.
func WithConsentLogger(log logger.Logger) ConsentOption {
	return func(s *ConsentStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewConsentStore creates an empty consent store.
func NewConsentStore(opts ...ConsentOption) *ConsentStore {
	s := &ConsentStore{
		records:        make(map[model.ConsentType]access.ConsentRecord),
		requiredPolicy: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnRevoke registers a hook invoked synchronously when a consent type is
// revoked. The export queue uses this to halt draining the moment
// cloud upload consent goes away.
func (s *ConsentStore) OnRevoke(hook func(model.ConsentType)) {
	s.mu.Lock()
	s.revokeHooks = append(s.revokeHooks, hook)
	s.mu.Unlock()
}

// Apply installs a consent update.
func (s *ConsentStore) Apply(ctx context.Context, u ConsentUpdate) error {
	if !u.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownConsentType, u.Type)
	}

	s.mu.Lock()
	s.records[u.Type] = access.ConsentRecord{
		Type:               u.Type,
		Granted:            u.Granted,
		GrantedAt:          u.Timestamp,
		PolicyVersion:      u.PolicyVersion,
		ConsentTextVersion: u.ConsentTextVersion,
	}
	hooks := s.revokeHooks
	s.mu.Unlock()

	metrics.RecordConsentUpdate(string(u.Type), u.Granted)
	if s.log != nil {
		s.log.Info(ctx, "consent updated",
			logger.String("type", string(u.Type)),
			logger.Any("granted", u.Granted),
		)
	}

	if !u.Granted {
		for _, hook := range hooks {
			hook(u.Type)
		}
	}
	return nil
}

// Snapshot returns an immutable view for one decision pass. A revocation
// arriving mid-computation never partially applies within one state.
func (s *ConsentStore) Snapshot() access.ConsentView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]access.ConsentRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	return access.NewConsentView(records, s.requiredPolicy)
}

// Clear tears the store down, dropping all records.
func (s *ConsentStore) Clear() {
	s.mu.Lock()
	s.records = make(map[model.ConsentType]access.ConsentRecord)
	s.mu.Unlock()
}
