package onboard

import (
	"errors"
	"testing"
	"time"

	deverrors "github.com/CodedInternet/rescuebot/onboard/errors"
	"github.com/CodedInternet/rescuebot/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

func createTestConfig() *DeviceConfig {
	config := DefaultDeviceConfig()
	config.Settle = 10 * time.Millisecond
	config.Durations.Forklift = 150 * time.Millisecond
	config.Durations.Camera = 80 * time.Millisecond
	return config
}

func createTestController() (*ActuatorController, *hardware.SimulatedDriver) {
	sim := hardware.NewSimulatedDriver()
	return NewActuatorController(sim, createTestConfig()), sim
}

// eventually polls cond until it holds or the timeout expires.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func activeLines(sim *hardware.SimulatedDriver) (on []hardware.Line) {
	for l := hardware.Line(0); l < hardware.NumLines; l++ {
		if sim.Output(l) {
			on = append(on, l)
		}
	}
	return
}

func TestChassisActions(t *testing.T) {
	Convey("chassis actions stop then set", t, func() {
		c, sim := createTestController()
		defer c.Close()

		Convey("forward drives every forward leg", func() {
			So(c.MoveForward(), ShouldBeNil)
			So(activeLines(sim), ShouldResemble, []hardware.Line{
				hardware.M1Forward, hardware.M2Forward, hardware.M3Forward, hardware.M4Forward,
			})

			history := sim.History()
			So(history, ShouldHaveLength, hardware.NumChassisLines+4)
			for i, op := range history[:hardware.NumChassisLines] {
				So(op, ShouldResemble, hardware.Op{Line: hardware.Line(i), On: false})
			}
		})

		Convey("backward drives every backward leg", func() {
			So(c.MoveBackward(), ShouldBeNil)
			So(activeLines(sim), ShouldResemble, []hardware.Line{
				hardware.M1Backward, hardware.M2Backward, hardware.M3Backward, hardware.M4Backward,
			})
		})

		Convey("left counter-rotates the sides", func() {
			So(c.TurnLeft(), ShouldBeNil)
			So(activeLines(sim), ShouldResemble, []hardware.Line{
				hardware.M1Backward, hardware.M2Forward, hardware.M3Backward, hardware.M4Forward,
			})
		})

		Convey("right is the mirror of left", func() {
			So(c.TurnRight(), ShouldBeNil)
			So(activeLines(sim), ShouldResemble, []hardware.Line{
				hardware.M1Forward, hardware.M2Backward, hardware.M3Forward, hardware.M4Backward,
			})
		})

		Convey("reversing never overlaps the legs", func() {
			c.MoveForward()
			c.MoveBackward()
			c.TurnLeft()
			c.TurnRight()
			c.MoveForward()
			So(sim.Violations(), ShouldBeEmpty)
		})

		Convey("stop chassis leaves the LED alone", func() {
			c.LEDOn()
			c.TurnLeft()
			So(c.StopChassis(), ShouldBeNil)
			So(activeLines(sim), ShouldResemble, []hardware.Line{hardware.LED})
		})

		Convey("state mirrors the outputs", func() {
			c.MoveForward()
			c.LEDOn()
			state := c.State()
			So(state.Chassis["M1_FW"], ShouldBeTrue)
			So(state.Chassis["M1_BW"], ShouldBeFalse)
			So(state.LED, ShouldBeTrue)
			So(state.Speed, ShouldEqual, 512)
			So(state.Duty, ShouldHaveLength, hardware.NumChannels)
		})
	})
}

func TestStopAll(t *testing.T) {
	Convey("stop all silences every output", t, func() {
		c, sim := createTestController()
		defer c.Close()

		c.TurnRight()
		c.LEDOn()
		So(c.StopAll(), ShouldBeNil)

		So(activeLines(sim), ShouldBeEmpty)
		for ch := hardware.Channel(0); ch < hardware.NumChannels; ch++ {
			So(sim.Duty(ch), ShouldEqual, 0)
		}
	})
}

func TestSetSpeed(t *testing.T) {
	Convey("speed updates", t, func() {
		c, _ := createTestController()
		defer c.Close()

		Convey("a value in range is stored", func() {
			So(c.SetSpeed(700), ShouldBeNil)
			So(c.Speed(), ShouldEqual, 700)

			Convey("and applying it again changes nothing", func() {
				So(c.SetSpeed(700), ShouldBeNil)
				So(c.Speed(), ShouldEqual, 700)
			})
		})

		Convey("the bounds are inclusive", func() {
			So(c.SetSpeed(0), ShouldBeNil)
			So(c.Speed(), ShouldEqual, 0)
			So(c.SetSpeed(1023), ShouldBeNil)
			So(c.Speed(), ShouldEqual, 1023)
		})

		Convey("out of range values never change the speed", func() {
			c.SetSpeed(300)
			for _, v := range []int{-1, 1024, 9999} {
				err := c.SetSpeed(v)
				So(err, ShouldHaveSameTypeAs, deverrors.SpeedRangeError{})
				So(c.Speed(), ShouldEqual, 300)
			}
		})
	})
}

func TestDriverFailure(t *testing.T) {
	Convey("a failed write is reported with its action", t, func() {
		c, sim := createTestController()
		defer c.Close()

		boom := errors.New("pin fault")
		sim.FailWith(boom)
		defer sim.FailWith(nil)

		err := c.MoveForward()
		So(err, ShouldNotBeNil)

		var driverErr *deverrors.DriverError
		So(errors.As(err, &driverErr), ShouldBeTrue)
		So(driverErr.Action, ShouldEqual, "move forward")
		So(errors.Is(err, boom), ShouldBeTrue)
	})
}
