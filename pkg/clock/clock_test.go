package clock_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/synheart-ai/synheart-core/pkg/clock"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a fake clock", t, func() {
		clk := clock.NewFake(start)

		Convey("When time advances", func() {
			clk.Advance(90 * time.Second)

			Convey("Then Now reflects the advance", func() {
				So(clk.Now(), ShouldResemble, start.Add(90*time.Second))
			})
		})

		Convey("When a waiter's deadline is passed", func() {
			ch := clk.After(time.Minute)
			clk.Advance(time.Minute)

			Convey("Then the channel fires", func() {
				select {
				case <-ch:
				default:
					t.Fatal("expected waiter to fire")
				}
			})
		})

		Convey("When the advance falls short of the deadline", func() {
			ch := clk.After(time.Minute)
			clk.Advance(30 * time.Second)

			Convey("Then the channel stays silent", func() {
				select {
				case <-ch:
					t.Fatal("waiter fired early")
				default:
				}
			})
		})

		Convey("When the wait duration is zero or negative", func() {
			ch := clk.After(0)

			Convey("Then the channel fires immediately", func() {
				select {
				case <-ch:
				default:
					t.Fatal("expected immediate fire")
				}
			})
		})

		Convey("When one advance covers several waiters", func() {
			a := clk.After(time.Second)
			b := clk.After(2 * time.Second)
			c := clk.After(time.Hour)
			clk.Advance(time.Minute)

			Convey("Then exactly the elapsed waiters fire", func() {
				select {
				case <-a:
				default:
					t.Fatal("first waiter should fire")
				}
				select {
				case <-b:
				default:
					t.Fatal("second waiter should fire")
				}
				select {
				case <-c:
					t.Fatal("distant waiter fired early")
				default:
				}
			})
		})
	})
}

func TestRealClock(t *testing.T) {
	Convey("Given the wall clock", t, func() {
		clk := clock.New()

		Convey("Then Now tracks real time", func() {
			before := time.Now()
			got := clk.Now()
			So(got, ShouldHappenOnOrAfter, before)
		})

		Convey("Then After fires after the duration", func() {
			select {
			case <-clk.After(time.Millisecond):
			case <-time.After(time.Second):
				t.Fatal("timer did not fire")
			}
		})
	})
}
