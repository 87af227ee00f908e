package comms

import (
	"testing"

	deverrors "github.com/CodedInternet/rescuebot/onboard/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKinds(t *testing.T) {
	Convey("every kind round trips through its token", t, func() {
		for _, k := range Kinds {
			So(KindByName(k.String()), ShouldEqual, k)
		}
		So(KindByName("foo"), ShouldEqual, Unknown)
		So(Kind(99).String(), ShouldEqual, "unknown")
	})

	Convey("only forklift and camera actions are timed", t, func() {
		timed := 0
		for _, k := range Kinds {
			if k.Timed() {
				timed++
			}
		}
		So(timed, ShouldEqual, 4)
		So(CamB.Timed(), ShouldBeTrue)
		So(Stop.Timed(), ShouldBeFalse)
	})
}

func TestParseLine(t *testing.T) {
	Convey("parsing line protocol entries", t, func() {
		Convey("a bare token", func() {
			cmd, err := ParseLine("  left \r")
			So(err, ShouldBeNil)
			So(cmd.Kind, ShouldEqual, Left)
		})

		Convey("colon form", func() {
			cmd, err := ParseLine("set_speed:300")
			So(err, ShouldBeNil)
			So(cmd.Kind, ShouldEqual, SetSpeed)
			So(cmd.Value, ShouldEqual, 300)
		})

		Convey("equals form", func() {
			cmd, err := ParseLine("set_speed=400")
			So(err, ShouldBeNil)
			So(cmd.Value, ShouldEqual, 400)
		})

		Convey("colon is checked before equals", func() {
			cmd, err := ParseLine("set_speed:5=6")
			So(err, ShouldHaveSameTypeAs, deverrors.ArgumentError{})
			So(cmd.Kind, ShouldEqual, SetSpeed)

			cmd, err = ParseLine("set_speed=7:8")
			So(err, ShouldBeNil)
			So(cmd.Value, ShouldEqual, 7)
		})

		Convey("other commands ignore an argument", func() {
			cmd, err := ParseLine("forward:12")
			So(err, ShouldBeNil)
			So(cmd.Kind, ShouldEqual, Forward)
			So(cmd.Value, ShouldEqual, 0)
		})

		Convey("unknown tokens are rejected", func() {
			_, err := ParseLine("foo")
			So(err, ShouldResemble, deverrors.UnknownCommandError{Name: "foo"})
		})

		Convey("set_speed needs a number", func() {
			_, err := ParseLine("set_speed")
			So(err, ShouldResemble, deverrors.ArgumentError{Name: "set_speed"})

			_, err = ParseLine("set_speed:fast")
			So(err, ShouldResemble, deverrors.ArgumentError{Name: "set_speed", Arg: "fast"})
		})

		Convey("out of range speeds still parse", func() {
			cmd, err := ParseLine("set_speed:9999")
			So(err, ShouldBeNil)
			So(cmd.Value, ShouldEqual, 9999)
		})
	})
}
