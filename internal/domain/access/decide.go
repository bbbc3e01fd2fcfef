package access

import (
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// Request names the operation being checked.
type Request struct {
	Module  string
	Verb    model.Verb
	Consent model.ConsentType
}

// Decide combines the capability token and consent view into a single
// outcome for one (module, verb, consent type) tuple.
//
// The check order is fixed:
//  1. token absent/expired/unverified -> deny on capability
//  2. verb not granted for module -> deny on capability
//  3. consent missing or revoked -> deny on consent
//  4. grant tied to a stale consent text -> treated as missing (re-consent)
//  5. allow, carrying the token's tier for downgrade selection
//
// Decide is pure: no caching, no side effects, so it can be tested over
// the whole input lattice.
func Decide(cap *CapabilityToken, consents ConsentView, req Request, now time.Time) model.AccessOutcome {
	out := model.AccessOutcome{
		Module:    req.Module,
		Verb:      req.Verb,
		Consent:   req.Consent,
		CheckedAt: now,
	}

	if cap == nil || cap.Expired(now) {
		out.Decision = model.DecisionDenyCapability
		out.Reason = model.ReasonCapabilityInsufficient
		return out
	}
	if !cap.Permits(req.Module, req.Verb) {
		out.Decision = model.DecisionDenyCapability
		out.Reason = model.ReasonCapabilityInsufficient
		return out
	}

	if req.Consent != "" {
		rec, ok := consents.Lookup(req.Consent)
		switch {
		case !ok:
			out.Decision = model.DecisionDenyConsent
			out.Reason = model.ReasonConsentMissing
			return out
		case !rec.Granted:
			// An explicit revoke is a denial, not an absence.
			out.Decision = model.DecisionDenyConsent
			out.Reason = model.ReasonConsentDenied
			return out
		case rec.ConsentTextVersion < consents.RequiredPolicyVersion():
			// Stale consent text forces re-consent.
			out.Decision = model.DecisionDenyConsent
			out.Reason = model.ReasonConsentMissing
			return out
		}
	}

	out.Decision = model.DecisionAllow
	out.Tier = cap.Tier
	return out
}

// DecideAll evaluates a set of requests against one consistent pair of
// snapshots. Every request in the batch sees the same capability and
// consent state.
func DecideAll(cap *CapabilityToken, consents ConsentView, reqs []Request, now time.Time) map[Request]model.AccessOutcome {
	out := make(map[Request]model.AccessOutcome, len(reqs))
	for _, r := range reqs {
		out[r] = Decide(cap, consents, r, now)
	}
	return out
}
