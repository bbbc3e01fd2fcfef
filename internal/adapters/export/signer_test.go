package export_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/synheart-ai/synheart-core/internal/adapters/export"
)

func TestSigner(t *testing.T) {
	secret := []byte("signing-secret")
	body := []byte(`{"subject":{"subject_type":"user","subject_id":"u1"}}`)

	Convey("Given a signer with a shared secret", t, func() {
		s := export.NewSigner(secret)

		Convey("When signing the same components twice", func() {
			sig1 := s.Sign("POST", export.IngestPath, "t1", "1704067200", "1704067200_abc123", body)
			sig2 := s.Sign("POST", export.IngestPath, "t1", "1704067200", "1704067200_abc123", body)

			Convey("Then the signature is deterministic hex HMAC-SHA256", func() {
				So(sig1, ShouldEqual, sig2)
				So(len(sig1), ShouldEqual, 64)
			})
		})

		Convey("When any component changes", func() {
			base := s.Sign("POST", export.IngestPath, "t1", "1704067200", "1704067200_abc123", body)

			Convey("Then the signature changes too", func() {
				So(s.Sign("PUT", export.IngestPath, "t1", "1704067200", "1704067200_abc123", body), ShouldNotEqual, base)
				So(s.Sign("POST", "/v1/other", "t1", "1704067200", "1704067200_abc123", body), ShouldNotEqual, base)
				So(s.Sign("POST", export.IngestPath, "t2", "1704067200", "1704067200_abc123", body), ShouldNotEqual, base)
				So(s.Sign("POST", export.IngestPath, "t1", "1704067201", "1704067200_abc123", body), ShouldNotEqual, base)
				So(s.Sign("POST", export.IngestPath, "t1", "1704067200", "1704067200_def456", body), ShouldNotEqual, base)
				So(s.Sign("POST", export.IngestPath, "t1", "1704067200", "1704067200_abc123", []byte("{}")), ShouldNotEqual, base)
			})
		})

		Convey("When building the canonical string", func() {
			canon := export.CanonicalString("POST", export.IngestPath, "t1", "1704067200", "1704067200_abc123", body)

			Convey("Then components are newline-joined with a body hash", func() {
				parts := strings.Split(canon, "\n")
				So(len(parts), ShouldEqual, 6)
				So(parts[0], ShouldEqual, "POST")
				So(parts[1], ShouldEqual, export.IngestPath)
				So(parts[2], ShouldEqual, "t1")
				So(parts[3], ShouldEqual, "1704067200")
				So(parts[4], ShouldEqual, "1704067200_abc123")
				So(len(parts[5]), ShouldEqual, 64) // hex sha256 of body
			})
		})
	})
}

func TestSignerVerify(t *testing.T) {
	secret := []byte("signing-secret")
	body := []byte(`{"snapshot":{}}`)
	now := time.Unix(1704067200, 0)

	Convey("Given a signed envelope", t, func() {
		s := export.NewSigner(secret)
		nonce, err := export.NewNonce(now)
		So(err, ShouldBeNil)
		ts := "1704067200"
		sig := s.Sign("POST", export.IngestPath, "t1", ts, nonce, body)

		Convey("When verifying with the right secret within the window", func() {
			err := s.Verify("POST", export.IngestPath, "t1", ts, nonce, sig, body, now.Add(time.Minute))

			Convey("Then verification succeeds", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the signature was produced with a different secret", func() {
			other := export.NewSigner([]byte("other-secret"))
			bad := other.Sign("POST", export.IngestPath, "t1", ts, nonce, body)
			err := s.Verify("POST", export.IngestPath, "t1", ts, nonce, bad, body, now)

			Convey("Then verification fails on the signature", func() {
				So(errors.Is(err, export.ErrInvalidSignature), ShouldBeTrue)
			})
		})

		Convey("When the body was tampered with", func() {
			err := s.Verify("POST", export.IngestPath, "t1", ts, nonce, sig, []byte(`{"snapshot":{"x":1}}`), now)

			Convey("Then verification fails on the signature", func() {
				So(errors.Is(err, export.ErrInvalidSignature), ShouldBeTrue)
			})
		})

		Convey("When the nonce is older than the freshness window", func() {
			err := s.Verify("POST", export.IngestPath, "t1", ts, nonce, sig, body, now.Add(export.NonceFreshnessWindow+time.Second))

			Convey("Then verification fails on the nonce", func() {
				So(errors.Is(err, export.ErrInvalidNonce), ShouldBeTrue)
			})
		})

		Convey("When the nonce has no timestamp prefix", func() {
			err := s.Verify("POST", export.IngestPath, "t1", ts, "garbage", sig, body, now)

			Convey("Then verification fails on the nonce", func() {
				So(errors.Is(err, export.ErrInvalidNonce), ShouldBeTrue)
			})
		})
	})
}

func TestNonce(t *testing.T) {
	now := time.Unix(1704067200, 0)

	Convey("Given generated nonces", t, func() {
		n1, err1 := export.NewNonce(now)
		n2, err2 := export.NewNonce(now)

		Convey("Then nonces carry the unix prefix and differ", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(n1, ShouldStartWith, "1704067200_")
			So(n2, ShouldStartWith, "1704067200_")
			So(n1, ShouldNotEqual, n2)
		})

		Convey("Then the timestamp prefix parses back", func() {
			ts, err := export.NonceTimestamp(n1)
			So(err, ShouldBeNil)
			So(ts.Unix(), ShouldEqual, now.Unix())
		})
	})
}

func TestReplayGuard(t *testing.T) {
	Convey("Given a replay guard", t, func() {
		g := export.NewReplayGuard()

		Convey("When a nonce arrives for the first time", func() {
			seen := g.SeenAndRecord("1704067200_aaaa")

			Convey("Then it is recorded, not seen", func() {
				So(seen, ShouldBeFalse)
				So(g.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same nonce arrives again", func() {
			g.SeenAndRecord("1704067200_aaaa")
			seen := g.SeenAndRecord("1704067200_aaaa")

			Convey("Then the replay is detected", func() {
				So(seen, ShouldBeTrue)
				So(g.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the guard overflows its capacity", func() {
			small := export.NewReplayGuard(export.WithReplayCapacity(2))
			small.SeenAndRecord("n1")
			small.SeenAndRecord("n2")
			small.SeenAndRecord("n3")

			Convey("Then the oldest nonce is evicted", func() {
				So(small.Size(), ShouldEqual, 2)
				So(small.SeenAndRecord("n1"), ShouldBeFalse)
				So(small.SeenAndRecord("n3"), ShouldBeTrue)
			})
		})
	})
}
