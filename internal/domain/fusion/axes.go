package fusion

import "github.com/synheart-ai/synheart-core/internal/domain/model"

// Module names used for access decisions on derived state.
const (
	ModuleAffect     = "affect"
	ModuleEngagement = "engagement"
	ModuleLoad       = "load"
)

// Feature indices within each modality's fixed frame layout. Collectors
// agree on this ordering out of band.
const (
	// wear
	wearHeartRate = 0
	wearHRV       = 1
	wearEDA       = 2
	wearSkinTemp  = 3
	wearMotion    = 4
	wearRespRate  = 5
	wearSleepDebt = 6
	wearCircadian = 7

	// phone
	phoneScreenOn      = 0
	phoneUnlockRate    = 1
	phoneNotifRate     = 2
	phoneAppSwitch     = 3
	phoneTypingCadence = 4
	phoneAmbientNoise  = 5

	// behavior
	behaviorInputRate   = 0
	behaviorTaskSwitch  = 1
	behaviorIdleRatio   = 2
	behaviorSessionLen  = 3
	behaviorErrorRate   = 4
	behaviorScrollSpeed = 5
)

// AxisSpec describes one derived axis: where its signal comes from and
// which consent categories and module gate it.
type AxisSpec struct {
	Name     string
	Group    string
	Module   string
	Sources  map[model.Modality][]int // modality -> contributing feature indices
	Consents []model.ConsentType
}

// Catalog is the fixed set of axes the fusion engine produces. Order is
// stable so output is deterministic.
func Catalog() []AxisSpec {
	return []AxisSpec{
		{
			Name:   "arousal_index",
			Group:  "affect",
			Module: ModuleAffect,
			Sources: map[model.Modality][]int{
				model.ModalityWear: {wearHeartRate, wearEDA, wearRespRate},
			},
			Consents: []model.ConsentType{model.ConsentBiosignals},
		},
		{
			Name:   "valence_index",
			Group:  "affect",
			Module: ModuleAffect,
			Sources: map[model.Modality][]int{
				model.ModalityWear:     {wearHRV, wearSkinTemp},
				model.ModalityBehavior: {behaviorErrorRate},
			},
			Consents: []model.ConsentType{model.ConsentBiosignals, model.ConsentBehavior},
		},
		{
			Name:   "engagement_stability",
			Group:  "engagement",
			Module: ModuleEngagement,
			Sources: map[model.Modality][]int{
				model.ModalityBehavior: {behaviorTaskSwitch, behaviorIdleRatio, behaviorSessionLen},
			},
			Consents: []model.ConsentType{model.ConsentBehavior},
		},
		{
			Name:   "focus_continuity",
			Group:  "engagement",
			Module: ModuleEngagement,
			Sources: map[model.Modality][]int{
				model.ModalityPhone:    {phoneUnlockRate, phoneAppSwitch},
				model.ModalityBehavior: {behaviorIdleRatio, behaviorInputRate},
			},
			Consents: []model.ConsentType{model.ConsentPhoneContext, model.ConsentBehavior},
		},
		{
			Name:   "strain_index",
			Group:  "load",
			Module: ModuleLoad,
			Sources: map[model.Modality][]int{
				model.ModalityWear:  {wearHeartRate, wearSleepDebt},
				model.ModalityPhone: {phoneNotifRate, phoneScreenOn},
			},
			Consents: []model.ConsentType{model.ConsentBiosignals, model.ConsentPhoneContext},
		},
	}
}

// Modalities returns the modalities contributing to the axis.
func (s AxisSpec) Modalities() []model.Modality {
	out := make([]model.Modality, 0, len(s.Sources))
	for _, m := range model.Modalities {
		if _, ok := s.Sources[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
