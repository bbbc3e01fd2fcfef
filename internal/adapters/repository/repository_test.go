package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/synheart-ai/synheart-core/internal/adapters/repository"
	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

var (
	secret = []byte("store-secret")
	now    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func mintBlob(t *testing.T, tier model.Tier, expiresAt time.Time) string {
	t.Helper()
	blob, err := access.SignCapabilityToken(access.CapabilityToken{
		TenantID:  "t1",
		AppID:     "app-1",
		Tier:      tier,
		Grants:    map[string][]model.Verb{"affect": {model.VerbCompute}},
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return blob
}

func TestCapabilityStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a capability store", t, func() {
		s := repository.NewCapabilityStore(secret)

		Convey("When refreshing with a valid blob", func() {
			err := s.Refresh(ctx, mintBlob(t, model.TierExtended, now.Add(time.Hour)), now)

			Convey("Then the token installs wholesale", func() {
				So(err, ShouldBeNil)
				tok := s.Snapshot()
				So(tok, ShouldNotBeNil)
				So(tok.Tier, ShouldEqual, model.TierExtended)
			})
		})

		Convey("When a later refresh fails verification", func() {
			So(s.Refresh(ctx, mintBlob(t, model.TierExtended, now.Add(time.Hour)), now), ShouldBeNil)
			err := s.Refresh(ctx, "garbage-blob", now)

			Convey("Then the previous token stays in place", func() {
				So(errors.Is(err, access.ErrTokenInvalid), ShouldBeTrue)
				tok := s.Snapshot()
				So(tok, ShouldNotBeNil)
				So(tok.Tier, ShouldEqual, model.TierExtended)
			})
		})

		Convey("When refreshing with an expired blob", func() {
			err := s.Refresh(ctx, mintBlob(t, model.TierCore, now.Add(-time.Minute)), now)

			Convey("Then the refresh is rejected", func() {
				So(err, ShouldNotBeNil)
				So(s.Snapshot(), ShouldBeNil)
			})
		})

		Convey("When nothing was ever installed", func() {
			Convey("Then the snapshot is nil", func() {
				So(s.Snapshot(), ShouldBeNil)
			})
		})

		Convey("When the store is cleared", func() {
			So(s.Refresh(ctx, mintBlob(t, model.TierCore, now.Add(time.Hour)), now), ShouldBeNil)
			s.Clear()

			Convey("Then the token is gone", func() {
				So(s.Snapshot(), ShouldBeNil)
			})
		})
	})
}

func TestConsentStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a consent store", t, func() {
		s := repository.NewConsentStore(repository.WithRequiredPolicyVersion(2))

		Convey("When applying a grant", func() {
			err := s.Apply(ctx, repository.ConsentUpdate{
				Type: model.ConsentBiosignals, Granted: true, Timestamp: now,
				PolicyVersion: 2, ConsentTextVersion: 2,
			})

			Convey("Then the snapshot reflects it", func() {
				So(err, ShouldBeNil)
				rec, ok := s.Snapshot().Lookup(model.ConsentBiosignals)
				So(ok, ShouldBeTrue)
				So(rec.Granted, ShouldBeTrue)
			})
		})

		Convey("When applying an unknown consent type", func() {
			err := s.Apply(ctx, repository.ConsentUpdate{Type: "telepathy", Granted: true, Timestamp: now, PolicyVersion: 2})

			Convey("Then the update is rejected", func() {
				So(errors.Is(err, repository.ErrUnknownConsentType), ShouldBeTrue)
			})
		})

		Convey("When a revocation arrives", func() {
			var revoked []model.ConsentType
			s.OnRevoke(func(t model.ConsentType) { revoked = append(revoked, t) })

			So(s.Apply(ctx, repository.ConsentUpdate{
				Type: model.ConsentCloudUpload, Granted: true, Timestamp: now,
				PolicyVersion: 2, ConsentTextVersion: 2,
			}), ShouldBeNil)
			So(s.Apply(ctx, repository.ConsentUpdate{
				Type: model.ConsentCloudUpload, Granted: false, Timestamp: now.Add(time.Minute),
				PolicyVersion: 2, ConsentTextVersion: 2,
			}), ShouldBeNil)

			Convey("Then revoke hooks fire synchronously, grants stay silent", func() {
				So(revoked, ShouldResemble, []model.ConsentType{model.ConsentCloudUpload})
			})

			Convey("Then the record shows the revocation immediately", func() {
				rec, ok := s.Snapshot().Lookup(model.ConsentCloudUpload)
				So(ok, ShouldBeTrue)
				So(rec.Granted, ShouldBeFalse)
			})
		})

		Convey("When snapshots are taken around an update", func() {
			So(s.Apply(ctx, repository.ConsentUpdate{
				Type: model.ConsentBehavior, Granted: true, Timestamp: now,
				PolicyVersion: 2, ConsentTextVersion: 2,
			}), ShouldBeNil)
			before := s.Snapshot()

			So(s.Apply(ctx, repository.ConsentUpdate{
				Type: model.ConsentBehavior, Granted: false, Timestamp: now.Add(time.Minute),
				PolicyVersion: 2, ConsentTextVersion: 2,
			}), ShouldBeNil)

			Convey("Then earlier snapshots are unaffected by later updates", func() {
				rec, ok := before.Lookup(model.ConsentBehavior)
				So(ok, ShouldBeTrue)
				So(rec.Granted, ShouldBeTrue)
			})
		})

		Convey("When the store carries a required policy version", func() {
			Convey("Then snapshots expose it for staleness checks", func() {
				So(s.Snapshot().RequiredPolicyVersion(), ShouldEqual, 2)
			})
		})
	})
}
