package fusion_test

import (
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/fusion"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

func testWindow(seq uint64) model.TemporalWindow {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * 30 * time.Second)
	return model.TemporalWindow{
		Class: model.WindowMicro,
		Seq:   seq,
		Start: start,
		End:   start.Add(30 * time.Second),
	}
}

func frame(m model.Modality, fill, conf float64) model.FeatureFrame {
	values := make([]float64, extract.FeatureDim(m))
	for i := range values {
		values[i] = fill
	}
	return model.FeatureFrame{Modality: m, Values: values, Confidence: conf}
}

func absentFrame(m model.Modality) model.FeatureFrame {
	return model.FeatureFrame{
		Modality: m,
		Values:   make([]float64, extract.FeatureDim(m)),
		Absent:   true,
	}
}

func allFrames(fill, conf float64) []model.FeatureFrame {
	return []model.FeatureFrame{
		frame(model.ModalityWear, fill, conf),
		frame(model.ModalityPhone, fill, conf),
		frame(model.ModalityBehavior, fill, conf),
	}
}

func axisByName(res fusion.Result, name string) fusion.RawAxis {
	for _, a := range res.Axes {
		if a.Spec.Name == name {
			return a
		}
	}
	return fusion.RawAxis{}
}

func TestFuseDeterminism(t *testing.T) {
	Convey("Given identical frames and configuration", t, func() {
		win := testWindow(0)

		Convey("When fusing twice with the same engine", func() {
			e := fusion.New()
			r1, ok1 := e.Fuse(allFrames(0.5, 0.9), win, nil)
			r2, ok2 := e.Fuse(allFrames(0.5, 0.9), win, nil)

			Convey("Then outputs are byte-for-byte identical", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(r1.Vector, ShouldResemble, r2.Vector)
				So(r1.RawVector, ShouldResemble, r2.RawVector)
			})
		})

		Convey("When fusing with two engines sharing a seed", func() {
			a := fusion.New(fusion.WithProjectionSeed(7))
			b := fusion.New(fusion.WithProjectionSeed(7))
			ra, _ := a.Fuse(allFrames(0.5, 0.9), win, nil)
			rb, _ := b.Fuse(allFrames(0.5, 0.9), win, nil)

			Convey("Then the embeddings match", func() {
				So(ra.Vector, ShouldResemble, rb.Vector)
			})
		})

		Convey("When the seeds differ", func() {
			a := fusion.New(fusion.WithProjectionSeed(7))
			b := fusion.New(fusion.WithProjectionSeed(8))
			ra, _ := a.Fuse(allFrames(0.5, 0.9), win, nil)
			rb, _ := b.Fuse(allFrames(0.5, 0.9), win, nil)

			Convey("Then the embeddings differ", func() {
				So(ra.Vector, ShouldNotResemble, rb.Vector)
			})
		})
	})
}

func TestFuseEmbedding(t *testing.T) {
	Convey("Given fused output", t, func() {
		e := fusion.New()
		win := testWindow(0)
		res, ok := e.Fuse(allFrames(0.5, 0.9), win, nil)
		So(ok, ShouldBeTrue)

		Convey("Then the embedding has the fixed dimensionality", func() {
			So(len(res.Vector), ShouldEqual, model.EmbeddingDim)
			So(len(res.RawVector), ShouldEqual, model.EmbeddingDim)
		})

		Convey("Then the embedding is L2 normalized", func() {
			var norm float64
			for _, v := range res.Vector {
				norm += v * v
			}
			So(math.Sqrt(norm), ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("Then all modalities appear in present and provenance", func() {
			So(res.Present, ShouldResemble, model.Modalities)
			So(res.Provenance, ShouldResemble, model.Modalities)
			So(res.Degraded, ShouldBeFalse)
		})
	})
}

func TestFuseDegradation(t *testing.T) {
	Convey("Given partial modality availability", t, func() {
		e := fusion.New()
		win := testWindow(0)

		Convey("When one modality is absent", func() {
			frames := []model.FeatureFrame{
				frame(model.ModalityWear, 0.5, 0.9),
				absentFrame(model.ModalityPhone),
				frame(model.ModalityBehavior, 0.5, 0.9),
			}
			res, ok := e.Fuse(frames, win, nil)

			Convey("Then fusion proceeds, marked degraded", func() {
				So(ok, ShouldBeTrue)
				So(res.Degraded, ShouldBeTrue)
				So(res.Present, ShouldResemble, []model.Modality{model.ModalityWear, model.ModalityBehavior})
			})

			Convey("Then an axis fed only by the absent modality has no score", func() {
				strain := axisByName(res, "strain_index")
				// strain draws on wear and phone; wear remains, so it survives
				So(strain.Score, ShouldNotBeNil)

				focus := axisByName(res, "focus_continuity")
				// focus draws on phone and behavior; behavior remains
				So(focus.Score, ShouldNotBeNil)
			})
		})

		Convey("When only behavior is present", func() {
			frames := []model.FeatureFrame{
				absentFrame(model.ModalityWear),
				absentFrame(model.ModalityPhone),
				frame(model.ModalityBehavior, 0.5, 0.8),
			}
			res, ok := e.Fuse(frames, win, nil)

			Convey("Then wear-only axes are nil and behavior axes survive", func() {
				So(ok, ShouldBeTrue)
				So(axisByName(res, "arousal_index").Score, ShouldBeNil)
				So(axisByName(res, "strain_index").Score, ShouldBeNil)
				So(axisByName(res, "engagement_stability").Score, ShouldNotBeNil)
			})
		})

		Convey("When zero modalities are present", func() {
			frames := []model.FeatureFrame{
				absentFrame(model.ModalityWear),
				absentFrame(model.ModalityPhone),
				absentFrame(model.ModalityBehavior),
			}
			_, ok := e.Fuse(frames, win, nil)

			Convey("Then the window is skipped entirely", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a present modality has zero confidence", func() {
			frames := []model.FeatureFrame{
				frame(model.ModalityWear, 0.5, 0),
				frame(model.ModalityPhone, 0.5, 0.9),
				frame(model.ModalityBehavior, 0.5, 0.9),
			}
			res, ok := e.Fuse(frames, win, nil)

			Convey("Then it carries no weight but stays in provenance", func() {
				So(ok, ShouldBeTrue)
				So(res.Degraded, ShouldBeTrue)
				So(res.Present, ShouldResemble, []model.Modality{model.ModalityPhone, model.ModalityBehavior})
				So(res.Provenance, ShouldResemble, model.Modalities)
			})
		})
	})
}

func TestFuseShortFrame(t *testing.T) {
	Convey("Given a present frame shorter than the fixed modality shape", t, func() {
		e := fusion.New()
		win := testWindow(0)
		frames := []model.FeatureFrame{
			{Modality: model.ModalityWear, Values: []float64{0.5, 0.5}, Confidence: 0.9},
			frame(model.ModalityPhone, 0.5, 0.9),
			frame(model.ModalityBehavior, 0.5, 0.9),
		}

		Convey("When fusing", func() {
			res, ok := e.Fuse(frames, win, nil)

			Convey("Then missing positions read as zero and fusion completes", func() {
				So(ok, ShouldBeTrue)
				arousal := axisByName(res, "arousal_index")
				So(arousal.Score, ShouldNotBeNil)
				So(*arousal.Score, ShouldBeBetweenOrEqual, 0, 1)
				So(len(res.Vector), ShouldEqual, model.EmbeddingDim)
			})
		})
	})
}

func TestFuseWeighting(t *testing.T) {
	Convey("Given modalities with different confidences", t, func() {
		e := fusion.New()
		win := testWindow(0)

		Convey("When one modality dominates confidence", func() {
			// valence draws on wear and behavior; wear carries high values
			// with high confidence, behavior low values with low confidence.
			frames := []model.FeatureFrame{
				frame(model.ModalityWear, 0.9, 0.9),
				absentFrame(model.ModalityPhone),
				frame(model.ModalityBehavior, 0.1, 0.1),
			}
			res, ok := e.Fuse(frames, win, nil)
			So(ok, ShouldBeTrue)

			Convey("Then the axis leans toward the confident modality", func() {
				valence := axisByName(res, "valence_index")
				So(valence.Score, ShouldNotBeNil)
				So(*valence.Score, ShouldBeGreaterThan, 0.7)
			})
		})

		Convey("When weights renormalize over the contributing subset", func() {
			// engagement_stability is behavior-only: its score must not be
			// diluted by the other present modalities' weights.
			frames := []model.FeatureFrame{
				frame(model.ModalityWear, 0.2, 0.9),
				frame(model.ModalityPhone, 0.2, 0.9),
				frame(model.ModalityBehavior, 0.6, 0.3),
			}
			res, ok := e.Fuse(frames, win, nil)
			So(ok, ShouldBeTrue)

			Convey("Then a single-source axis reflects its source exactly", func() {
				stability := axisByName(res, "engagement_stability")
				So(stability.Score, ShouldNotBeNil)
				So(*stability.Score, ShouldAlmostEqual, 0.6, 1e-9)
			})
		})
	})
}

func TestFuseSmoothing(t *testing.T) {
	Convey("Given consecutive same-class windows", t, func() {
		e := fusion.New(fusion.WithSmoothingAlpha(0.7))

		prev, ok := e.Fuse(allFrames(0.2, 0.9), testWindow(0), nil)
		So(ok, ShouldBeTrue)

		Convey("When the next window fuses with the previous result", func() {
			cur, ok := e.Fuse(allFrames(0.8, 0.9), testWindow(1), &prev)
			So(ok, ShouldBeTrue)

			Convey("Then scores are a bounded convolution of both windows", func() {
				prevScore := *axisByName(prev, "engagement_stability").Score
				curScore := *axisByName(cur, "engagement_stability").Score
				So(prevScore, ShouldAlmostEqual, 0.2, 1e-9)
				So(curScore, ShouldAlmostEqual, 0.7*0.8+0.3*0.2, 1e-9)
			})

			Convey("Then a meaningful increase reads as rising", func() {
				So(axisByName(cur, "engagement_stability").Direction, ShouldEqual, fusion.DirectionRising)
			})
		})

		Convey("When the next window drops sharply", func() {
			cur, ok := e.Fuse(allFrames(0.05, 0.9), testWindow(1), &prev)
			So(ok, ShouldBeTrue)

			Convey("Then the direction reads as falling", func() {
				So(axisByName(cur, "engagement_stability").Direction, ShouldEqual, fusion.DirectionFalling)
			})
		})

		Convey("When the next window barely moves", func() {
			cur, ok := e.Fuse(allFrames(0.21, 0.9), testWindow(1), &prev)
			So(ok, ShouldBeTrue)

			Convey("Then the direction stays steady", func() {
				So(axisByName(cur, "engagement_stability").Direction, ShouldEqual, fusion.DirectionSteady)
			})
		})

		Convey("When there is no previous window", func() {
			cur, ok := e.Fuse(allFrames(0.8, 0.9), testWindow(1), nil)
			So(ok, ShouldBeTrue)

			Convey("Then the score is unsmoothed and direction is steady", func() {
				So(*axisByName(cur, "engagement_stability").Score, ShouldAlmostEqual, 0.8, 1e-9)
				So(axisByName(cur, "engagement_stability").Direction, ShouldEqual, fusion.DirectionSteady)
			})
		})
	})
}

func TestAxisCatalog(t *testing.T) {
	Convey("Given the fixed axis catalog", t, func() {
		catalog := fusion.Catalog()

		Convey("Then it is stable in size and order", func() {
			So(len(catalog), ShouldEqual, 5)
			So(catalog[0].Name, ShouldEqual, "arousal_index")
			So(catalog[len(catalog)-1].Name, ShouldEqual, "strain_index")
		})

		Convey("Then every axis names its consents and sources", func() {
			for _, spec := range catalog {
				So(len(spec.Consents), ShouldBeGreaterThan, 0)
				So(len(spec.Sources), ShouldBeGreaterThan, 0)
				So(spec.Module, ShouldNotBeEmpty)
				So(len(spec.Modalities()), ShouldEqual, len(spec.Sources))
			}
		})
	})
}
