// Package repository holds the process-wide capability and consent stores.
// Both are read-mostly: pipeline stages take immutable snapshots for the
// duration of one window's computation, and only the external inputs
// (token refresh, consent UI) write.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/pkg/logger"
	"github.com/synheart-ai/synheart-core/pkg/metrics"
)

// CapabilityStore holds the current verified capability token. The token
// is replaced wholesale on refresh, never patched.
type CapabilityStore struct {
	mu     sync.RWMutex
	token  *access.CapabilityToken
	secret []byte
	log    logger.Logger
}

// CapabilityOption applies a configuration option to the CapabilityStore.
type CapabilityOption func(*CapabilityStore)

// WithCapabilityLogger sets a custom logger for the store.
func WithCapabilityLogger(log logger.Logger) CapabilityOption {
	return func(s *CapabilityStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewCapabilityStore creates a store that verifies refreshes against the
// given signing secret.
func NewCapabilityStore(secret []byte, opts ...CapabilityOption) *CapabilityStore {
	s := &CapabilityStore{secret: secret}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh verifies and installs a new token blob. A blob that fails
// signature or expiry checks is rejected and the previous token, if any,
// stays in place.
func (s *CapabilityStore) Refresh(ctx context.Context, blob string, now time.Time) error {
	tok, err := access.ParseCapabilityToken(blob, s.secret, now)
	if err != nil {
		metrics.RecordCapabilityRefreshError()
		if s.log != nil {
			s.log.Warn(ctx, "capability refresh rejected", logger.Error(err))
		}
		return err
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	metrics.RecordCapabilityRefresh()
	if s.log != nil {
		s.log.Info(ctx, "capability token refreshed",
			logger.String("tenant", tok.TenantID),
			logger.String("tier", string(tok.Tier)),
		)
	}
	return nil
}

// Snapshot returns the current token, or nil when none is installed. The
// returned token is immutable; callers hold it for one window's work.
func (s *CapabilityStore) Snapshot() *access.CapabilityToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear tears the store down, dropping the installed token.
func (s *CapabilityStore) Clear() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}
