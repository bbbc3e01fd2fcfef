// Package model contains domain models passed between pipeline stages.
package model

import "time"

// Modality identifies a signal source feeding the fusion pipeline.
type Modality string

// Supported modalities.
const (
	ModalityWear     Modality = "wear"
	ModalityPhone    Modality = "phone"
	ModalityBehavior Modality = "behavior"
)

// Modalities lists every supported modality in fusion order.
var Modalities = []Modality{ModalityWear, ModalityPhone, ModalityBehavior}

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityWear, ModalityPhone, ModalityBehavior:
		return true
	}
	return false
}

// ConsentType is a user-grantable data/processing category.
type ConsentType string

// Consent categories.
const (
	ConsentBiosignals        ConsentType = "biosignals"
	ConsentPhoneContext      ConsentType = "phone_context"
	ConsentBehavior          ConsentType = "behavior"
	ConsentCloudUpload       ConsentType = "cloud_upload"
	ConsentFocusEstimation   ConsentType = "focus_estimation"
	ConsentEmotionEstimation ConsentType = "emotion_estimation"
)

// Valid reports whether c is a known consent type.
func (c ConsentType) Valid() bool {
	switch c {
	case ConsentBiosignals, ConsentPhoneContext, ConsentBehavior,
		ConsentCloudUpload, ConsentFocusEstimation, ConsentEmotionEstimation:
		return true
	}
	return false
}

// ConsentForModality maps a modality to the consent category gating it.
func ConsentForModality(m Modality) ConsentType {
	switch m {
	case ModalityWear:
		return ConsentBiosignals
	case ModalityPhone:
		return ConsentPhoneContext
	default:
		return ConsentBehavior
	}
}

// Verb is an operation an app may be authorized for.
type Verb string

// Operation verbs.
const (
	VerbCollect Verb = "collect"
	VerbCompute Verb = "compute"
	VerbStore   Verb = "store"
	VerbExport  Verb = "export"
	VerbInfer   Verb = "infer"
)

// Tier is a capability authorization level. Ordering matters: core <
// extended < research.
type Tier string

// Capability tiers.
const (
	TierCore     Tier = "core"
	TierExtended Tier = "extended"
	TierResearch Tier = "research"
)

// rank orders tiers for comparison.
func (t Tier) rank() int {
	switch t {
	case TierResearch:
		return 3
	case TierExtended:
		return 2
	case TierCore:
		return 1
	}
	return 0
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool { return t.rank() > 0 }

// AtLeast reports whether t grants at least the access of other.
func (t Tier) AtLeast(other Tier) bool { return t.rank() >= other.rank() }

// Decision is the outcome of an access check.
type Decision string

// Access decisions.
const (
	DecisionAllow          Decision = "allow"
	DecisionDenyCapability Decision = "deny_capability"
	DecisionDenyConsent    Decision = "deny_consent"
	DecisionDenyDependency Decision = "deny_dependency"
)

// Reason is the machine-readable explanation attached to a null output.
type Reason string

// Null reasons. Exactly one accompanies every null axis value.
const (
	ReasonConsentDenied          Reason = "consent_denied"
	ReasonConsentMissing         Reason = "consent_missing"
	ReasonCapabilityInsufficient Reason = "capability_insufficient"
	ReasonDependencyMissing      Reason = "dependency_missing"
)

// AccessOutcome is the result of one (module, verb, consent type) decision.
// Computed fresh per request, never cached.
type AccessOutcome struct {
	Decision  Decision
	Tier      Tier // highest tier the token supports for the module; set on Allow
	Reason    Reason
	Module    string
	Verb      Verb
	Consent   ConsentType
	CheckedAt time.Time
}

// Allowed reports whether the outcome permits the operation.
func (o AccessOutcome) Allowed() bool { return o.Decision == DecisionAllow }

// WindowClass partitions time into fixed aggregation cadences.
type WindowClass string

// Window classes and their durations.
const (
	WindowMicro  WindowClass = "micro"  // 30s
	WindowShort  WindowClass = "short"  // 5m
	WindowMedium WindowClass = "medium" // 1h
	WindowLong   WindowClass = "long"   // 24h
)

// WindowClasses lists every class in ascending duration order.
var WindowClasses = []WindowClass{WindowMicro, WindowShort, WindowMedium, WindowLong}

// Duration returns the fixed span of the class.
func (c WindowClass) Duration() time.Duration {
	switch c {
	case WindowMicro:
		return 30 * time.Second
	case WindowShort:
		return 5 * time.Minute
	case WindowMedium:
		return time.Hour
	case WindowLong:
		return 24 * time.Hour
	}
	return 0
}

// Valid reports whether c is a known window class.
func (c WindowClass) Valid() bool { return c.Duration() > 0 }

// TemporalWindow is a half-open [Start, End) interval with a per-class
// monotonically increasing sequence number.
type TemporalWindow struct {
	Class WindowClass
	Seq   uint64
	Start time.Time
	End   time.Time
}

// ID renders the per-class unique window identifier.
func (w TemporalWindow) ID() string {
	return string(w.Class) + "-" + formatSeq(w.Seq)
}

// Contains reports whether ts falls inside the half-open interval.
func (w TemporalWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

func formatSeq(seq uint64) string {
	// Fixed-width so ids sort lexicographically in window order.
	const digits = 12
	buf := [digits]byte{}
	for i := digits - 1; i >= 0; i-- {
		buf[i] = byte('0' + seq%10)
		seq /= 10
	}
	return string(buf[:])
}

// FeatureFrame is one modality's contribution to one window. Ephemeral:
// produced and consumed within a single fusion cycle.
type FeatureFrame struct {
	Modality   Modality
	WindowID   string
	Values     []float64
	Confidence float64
	Absent     bool // modality produced no data in-window
}

// EmbeddingDim is the fixed state embedding dimensionality.
const EmbeddingDim = 64

// StateEmbedding is the dense fused representation for one window. A
// missing modality degrades the embedding, it never nulls it.
type StateEmbedding struct {
	Vector     [EmbeddingDim]float64
	Degraded   bool
	Confidence float64
	WindowID   string
	Model      string
}

// StateAxisValue is one derived axis reading. A nil Score carries exactly
// one Reason; a non-nil Score implies every dependency resolved to allow.
type StateAxisValue struct {
	Axis       string
	Group      string
	Score      *float64
	Confidence float64
	Reason     Reason // set only when Score is nil
	Direction  string // rising, falling, steady
	Modalities []Modality
	Consents   []ConsentType
}

// Annotation is an interpretation result appended by the gateway. Base
// state fields are never mutated by annotations.
type Annotation struct {
	Source     string
	Kind       string
	Label      string
	Confidence float64
	CreatedAt  time.Time
}

// InternalState is the per-window fused, access-gated state. Immutable
// after assembly; the next window supersedes it rather than mutating it.
type InternalState struct {
	Window      TemporalWindow
	ComputedAt  time.Time
	Axes        map[string][]StateAxisValue // group -> readings
	Embedding   StateEmbedding
	RawVector   []float64 // fusion-internal, pre-normalization; research tier only
	Tier        Tier
	ModalitySet []Modality // modalities that contributed data
	Annotations []Annotation
}

// Float64Ptr returns a pointer to v; helper for nullable axis scores.
func Float64Ptr(v float64) *float64 { return &v }
