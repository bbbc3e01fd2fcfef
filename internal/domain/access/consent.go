package access

import (
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// ConsentRecord is one user grant or revocation for a consent category.
// Transitions happen only via explicit updates; revocation is immediate
// and monotonic (no implicit re-grant).
type ConsentRecord struct {
	Type               model.ConsentType
	Granted            bool
	GrantedAt          time.Time
	PolicyVersion      int
	ConsentTextVersion int
}

// ConsentView is an immutable per-window snapshot of the consent store,
// passed explicitly into Decide so one window never sees a torn update.
type ConsentView struct {
	records       map[model.ConsentType]ConsentRecord
	policyVersion int // policy version currently required for a grant to count
}

// NewConsentView builds a view from the latest record per consent type.
func NewConsentView(records []ConsentRecord, requiredPolicyVersion int) ConsentView {
	byType := make(map[model.ConsentType]ConsentRecord, len(records))
	for _, r := range records {
		byType[r.Type] = r
	}
	return ConsentView{records: byType, policyVersion: requiredPolicyVersion}
}

// Lookup returns the latest record for the consent type, if any.
func (v ConsentView) Lookup(t model.ConsentType) (ConsentRecord, bool) {
	r, ok := v.records[t]
	return r, ok
}

// RequiredPolicyVersion is the policy version a grant must reference.
func (v ConsentView) RequiredPolicyVersion() int { return v.policyVersion }
