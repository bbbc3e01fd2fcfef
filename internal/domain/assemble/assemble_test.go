package assemble_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/assemble"
	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/fusion"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

var (
	now     = time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)
	fullSet = []model.ConsentType{
		model.ConsentBiosignals,
		model.ConsentPhoneContext,
		model.ConsentBehavior,
	}
)

func fuseAll(t *testing.T) fusion.Result {
	t.Helper()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	win := model.TemporalWindow{Class: model.WindowMicro, Seq: 1, Start: start, End: start.Add(30 * time.Second)}

	frames := make([]model.FeatureFrame, 0, len(model.Modalities))
	for _, m := range model.Modalities {
		values := make([]float64, extract.FeatureDim(m))
		for i := range values {
			values[i] = 0.5
		}
		frames = append(frames, model.FeatureFrame{Modality: m, Values: values, Confidence: 0.9})
	}

	res, ok := fusion.New().Fuse(frames, win, nil)
	if !ok {
		t.Fatal("expected fusion to produce a result")
	}
	return res
}

func token(t *testing.T, tier model.Tier) *access.CapabilityToken {
	t.Helper()
	grants := make(map[string][]model.Verb)
	for _, spec := range fusion.Catalog() {
		grants[spec.Module] = []model.Verb{model.VerbCompute}
	}
	blob, err := access.SignCapabilityToken(access.CapabilityToken{
		TenantID:  "t1",
		AppID:     "app-1",
		Tier:      tier,
		Grants:    grants,
		IssuedAt:  now.Add(-time.Minute),
		ExpiresAt: now.Add(time.Hour),
	}, []byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tok, err := access.ParseCapabilityToken(blob, []byte("secret"), now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tok
}

func consents(types ...model.ConsentType) access.ConsentView {
	records := make([]access.ConsentRecord, 0, len(types))
	for _, c := range types {
		records = append(records, access.ConsentRecord{
			Type: c, Granted: true, GrantedAt: now, PolicyVersion: 1, ConsentTextVersion: 1,
		})
	}
	return access.NewConsentView(records, 1)
}

func findAxis(state model.InternalState, name string) (model.StateAxisValue, bool) {
	for _, values := range state.Axes {
		for _, v := range values {
			if v.Axis == name {
				return v, true
			}
		}
	}
	return model.StateAxisValue{}, false
}

func countAxes(state model.InternalState) int {
	n := 0
	for _, values := range state.Axes {
		n += len(values)
	}
	return n
}

func TestAssemble(t *testing.T) {
	asm := assemble.New()
	raw := fuseAll(t)

	Convey("Given a full capability and all consents", t, func() {
		tok := token(t, model.TierExtended)
		view := consents(fullSet...)
		outcomes := access.DecideAll(tok, view, asm.Requests(), now)

		Convey("When assembling", func() {
			state := asm.Assemble(raw, outcomes, now)

			Convey("Then assembly is total over the axis catalog", func() {
				So(countAxes(state), ShouldEqual, len(fusion.Catalog()))
			})

			Convey("Then every axis carries a score and no reason", func() {
				for _, values := range state.Axes {
					for _, v := range values {
						So(v.Score, ShouldNotBeNil)
						So(v.Reason, ShouldBeEmpty)
					}
				}
			})

			Convey("Then the embedding is present with the model id", func() {
				So(state.Embedding.Model, ShouldEqual, fusion.EmbeddingModel)
				So(state.Embedding.WindowID, ShouldEqual, raw.Window.ID())
			})

			Convey("Then the raw fusion vector is withheld below research tier", func() {
				So(state.Tier, ShouldEqual, model.TierExtended)
				So(state.RawVector, ShouldBeNil)
			})
		})
	})

	Convey("Given a research tier token", t, func() {
		tok := token(t, model.TierResearch)
		view := consents(fullSet...)
		outcomes := access.DecideAll(tok, view, asm.Requests(), now)

		Convey("When assembling", func() {
			state := asm.Assemble(raw, outcomes, now)

			Convey("Then the raw fusion vector is carried", func() {
				So(state.Tier, ShouldEqual, model.TierResearch)
				So(state.RawVector, ShouldResemble, raw.RawVector)
			})
		})
	})

	Convey("Given a revoked biosignals consent", t, func() {
		tok := token(t, model.TierExtended)
		records := []access.ConsentRecord{
			{Type: model.ConsentBiosignals, Granted: false, GrantedAt: now, PolicyVersion: 1, ConsentTextVersion: 1},
			{Type: model.ConsentPhoneContext, Granted: true, GrantedAt: now, PolicyVersion: 1, ConsentTextVersion: 1},
			{Type: model.ConsentBehavior, Granted: true, GrantedAt: now, PolicyVersion: 1, ConsentTextVersion: 1},
		}
		view := access.NewConsentView(records, 1)
		outcomes := access.DecideAll(tok, view, asm.Requests(), now)

		Convey("When assembling", func() {
			state := asm.Assemble(raw, outcomes, now)

			Convey("Then biosignal-dependent axes are null with the denied reason", func() {
				arousal, ok := findAxis(state, "arousal_index")
				So(ok, ShouldBeTrue)
				So(arousal.Score, ShouldBeNil)
				So(arousal.Reason, ShouldEqual, model.ReasonConsentDenied)

				valence, ok := findAxis(state, "valence_index")
				So(ok, ShouldBeTrue)
				So(valence.Score, ShouldBeNil)
				So(valence.Reason, ShouldEqual, model.ReasonConsentDenied)
			})

			Convey("Then independent axes keep their scores", func() {
				stability, ok := findAxis(state, "engagement_stability")
				So(ok, ShouldBeTrue)
				So(stability.Score, ShouldNotBeNil)
				So(stability.Reason, ShouldBeEmpty)
			})

			Convey("Then nulled axes never carry a substitute value", func() {
				for _, values := range state.Axes {
					for _, v := range values {
						if v.Score == nil {
							So(v.Reason, ShouldNotBeEmpty)
							So(v.Confidence, ShouldEqual, 0)
						}
					}
				}
			})
		})
	})

	Convey("Given no capability token at all", t, func() {
		view := consents(fullSet...)
		outcomes := access.DecideAll(nil, view, asm.Requests(), now)

		Convey("When assembling", func() {
			state := asm.Assemble(raw, outcomes, now)

			Convey("Then every axis is null on capability", func() {
				for _, values := range state.Axes {
					for _, v := range values {
						So(v.Score, ShouldBeNil)
						So(v.Reason, ShouldEqual, model.ReasonCapabilityInsufficient)
					}
				}
			})

			Convey("Then no embedding is produced", func() {
				So(state.Embedding.Model, ShouldBeEmpty)
				So(state.Tier, ShouldBeEmpty)
			})
		})
	})

	Convey("Given an axis whose modalities were all unavailable", t, func() {
		tok := token(t, model.TierExtended)
		view := consents(fullSet...)
		outcomes := access.DecideAll(tok, view, asm.Requests(), now)

		// Re-fuse with only behavior present so wear-only axes lose their
		// inputs while staying fully allowed.
		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		win := model.TemporalWindow{Class: model.WindowMicro, Seq: 2, Start: start, End: start.Add(30 * time.Second)}
		behaviorOnly := []model.FeatureFrame{
			{Modality: model.ModalityWear, Values: make([]float64, extract.WearFeatureDim), Absent: true},
			{Modality: model.ModalityPhone, Values: make([]float64, extract.PhoneFeatureDim), Absent: true},
			{Modality: model.ModalityBehavior, Values: []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, Confidence: 0.8},
		}
		degraded, ok := fusion.New().Fuse(behaviorOnly, win, nil)
		So(ok, ShouldBeTrue)

		Convey("When assembling", func() {
			state := asm.Assemble(degraded, outcomes, now)

			Convey("Then the axis is null with a dependency reason, not denied", func() {
				arousal, found := findAxis(state, "arousal_index")
				So(found, ShouldBeTrue)
				So(arousal.Score, ShouldBeNil)
				So(arousal.Reason, ShouldEqual, model.ReasonDependencyMissing)
			})

			Convey("Then the embedding is degraded but present", func() {
				So(state.Embedding.Model, ShouldEqual, fusion.EmbeddingModel)
				So(state.Embedding.Degraded, ShouldBeTrue)
			})
		})
	})
}

func TestAssemblerRequests(t *testing.T) {
	Convey("Given the derived request set", t, func() {
		reqs := assemble.New().Requests()

		Convey("Then requests are unique", func() {
			seen := make(map[access.Request]bool)
			for _, r := range reqs {
				So(seen[r], ShouldBeFalse)
				seen[r] = true
			}
		})

		Convey("Then every catalog dependency is covered", func() {
			covered := make(map[access.Request]bool)
			for _, r := range reqs {
				covered[r] = true
			}
			for _, spec := range fusion.Catalog() {
				for _, c := range spec.Consents {
					So(covered[access.Request{Module: spec.Module, Verb: model.VerbCompute, Consent: c}], ShouldBeTrue)
				}
			}
		})
	})
}
