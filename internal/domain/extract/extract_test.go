package extract_test

import (
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/synheart-ai/synheart-core/internal/domain/extract"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

func testWindow() model.TemporalWindow {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return model.TemporalWindow{
		Class: model.WindowMicro,
		Seq:   4,
		Start: start,
		End:   start.Add(30 * time.Second),
	}
}

func wearVector(v float64) []float64 {
	out := make([]float64, extract.WearFeatureDim)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBatchValidate(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC)

	Convey("Given candidate batches", t, func() {
		Convey("When the batch is well formed", func() {
			b := extract.Batch{Modality: model.ModalityWear, Hint: ts, Vector: wearVector(0.5), Confidence: 0.9}

			Convey("Then validation passes", func() {
				So(b.Validate(), ShouldBeNil)
			})
		})

		Convey("When the modality is unknown", func() {
			b := extract.Batch{Modality: "camera", Hint: ts, Vector: wearVector(0.5), Confidence: 0.9}

			Convey("Then validation fails with the malformed kind", func() {
				So(errors.Is(b.Validate(), extract.ErrMalformedBatch), ShouldBeTrue)
			})
		})

		Convey("When the vector has the wrong width", func() {
			b := extract.Batch{Modality: model.ModalityPhone, Hint: ts, Vector: wearVector(0.5), Confidence: 0.9}

			Convey("Then validation fails", func() {
				So(errors.Is(b.Validate(), extract.ErrMalformedBatch), ShouldBeTrue)
			})
		})

		Convey("When confidence is out of range", func() {
			b := extract.Batch{Modality: model.ModalityWear, Hint: ts, Vector: wearVector(0.5), Confidence: 1.5}

			Convey("Then validation fails", func() {
				So(errors.Is(b.Validate(), extract.ErrMalformedBatch), ShouldBeTrue)
			})
		})

		Convey("When a value is non-finite", func() {
			vec := wearVector(0.5)
			vec[3] = math.NaN()
			b := extract.Batch{Modality: model.ModalityWear, Hint: ts, Vector: vec, Confidence: 0.9}

			Convey("Then validation fails", func() {
				So(errors.Is(b.Validate(), extract.ErrMalformedBatch), ShouldBeTrue)
			})
		})

		Convey("When the hint timestamp is missing", func() {
			b := extract.Batch{Modality: model.ModalityWear, Vector: wearVector(0.5), Confidence: 0.9}

			Convey("Then validation fails", func() {
				So(errors.Is(b.Validate(), extract.ErrMalformedBatch), ShouldBeTrue)
			})
		})
	})
}

func TestExtractorFrame(t *testing.T) {
	win := testWindow()

	Convey("Given a wear extractor", t, func() {
		ext := extract.NewExtractor(model.ModalityWear)

		Convey("When reducing several in-window batches", func() {
			batches := []extract.Batch{
				{Modality: model.ModalityWear, Hint: win.Start.Add(time.Second), Vector: wearVector(0.2), Confidence: 0.8},
				{Modality: model.ModalityWear, Hint: win.Start.Add(10 * time.Second), Vector: wearVector(0.6), Confidence: 0.6},
			}
			frame := ext.Frame(win, batches)

			Convey("Then values and confidence are averaged", func() {
				So(frame.Absent, ShouldBeFalse)
				So(frame.Values[0], ShouldAlmostEqual, 0.4)
				So(frame.Confidence, ShouldAlmostEqual, 0.7)
				So(frame.WindowID, ShouldEqual, win.ID())
				So(len(frame.Values), ShouldEqual, extract.WearFeatureDim)
			})
		})

		Convey("When batches belong to other modalities or windows", func() {
			batches := []extract.Batch{
				{Modality: model.ModalityPhone, Hint: win.Start.Add(time.Second), Vector: make([]float64, extract.PhoneFeatureDim), Confidence: 0.9},
				{Modality: model.ModalityWear, Hint: win.End.Add(time.Second), Vector: wearVector(0.9), Confidence: 0.9},
			}
			frame := ext.Frame(win, batches)

			Convey("Then none contribute and the frame is absent", func() {
				So(frame.Absent, ShouldBeTrue)
				So(frame.Confidence, ShouldEqual, 0)
			})
		})

		Convey("When a malformed batch is mixed in", func() {
			bad := wearVector(0.5)
			bad[0] = math.Inf(1)
			batches := []extract.Batch{
				{Modality: model.ModalityWear, Hint: win.Start.Add(time.Second), Vector: bad, Confidence: 0.9},
				{Modality: model.ModalityWear, Hint: win.Start.Add(2 * time.Second), Vector: wearVector(0.4), Confidence: 0.5},
			}
			frame := ext.Frame(win, batches)

			Convey("Then the malformed batch is skipped, not propagated", func() {
				So(frame.Absent, ShouldBeFalse)
				So(frame.Values[0], ShouldAlmostEqual, 0.4)
				So(frame.Confidence, ShouldAlmostEqual, 0.5)
			})
		})

		Convey("When no batches arrive at all", func() {
			frame := ext.Frame(win, nil)

			Convey("Then the frame is a neutral absent placeholder", func() {
				So(frame.Absent, ShouldBeTrue)
				So(len(frame.Values), ShouldEqual, extract.WearFeatureDim)
				for _, v := range frame.Values {
					So(v, ShouldEqual, 0)
				}
			})
		})
	})
}

func TestFeatureDim(t *testing.T) {
	Convey("Given the fixed frame shapes", t, func() {
		Convey("Then each modality has its declared width", func() {
			So(extract.FeatureDim(model.ModalityWear), ShouldEqual, 8)
			So(extract.FeatureDim(model.ModalityPhone), ShouldEqual, 6)
			So(extract.FeatureDim(model.ModalityBehavior), ShouldEqual, 6)
		})
	})
}
