package hardware

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

type testPins map[string]*gpiotest.Pin

func (t testPins) lookup(name string) gpio.PinIO {
	p, ok := t[name]
	if !ok {
		return nil
	}
	return p
}

func createTestPins() (PinMap, testPins) {
	var pins PinMap
	reg := make(testPins)
	for i := range pins.Lines {
		name := fmt.Sprintf("GPIO%d", i)
		pins.Lines[i] = name
		reg[name] = &gpiotest.Pin{N: name, Num: i}
	}
	for i := range pins.Channels {
		name := fmt.Sprintf("GPIO%d", 20+i)
		pins.Channels[i] = name
		reg[name] = &gpiotest.Pin{N: name, Num: 20 + i}
	}
	return pins, reg
}

func TestPeriphDriver(t *testing.T) {
	Convey("with a complete pin map", t, func() {
		pins, reg := createTestPins()
		d, err := openPeriph(pins, physic.KiloHertz, reg.lookup)
		So(err, ShouldBeNil)

		Convey("lines follow SetOutput", func() {
			So(d.SetOutput(M2Backward, true), ShouldBeNil)
			So(reg[pins.Lines[M2Backward]].L, ShouldEqual, gpio.High)

			So(d.SetOutput(M2Backward, false), ShouldBeNil)
			So(reg[pins.Lines[M2Backward]].L, ShouldEqual, gpio.Low)
		})

		Convey("duty is scaled onto the periph range", func() {
			So(d.SetDuty(M5Forward, MaxDuty), ShouldBeNil)
			p := reg[pins.Channels[M5Forward]]
			So(p.D, ShouldEqual, gpio.DutyMax)
			So(p.F, ShouldEqual, physic.KiloHertz)

			So(d.SetDuty(M5Forward, 512), ShouldBeNil)
			So(p.D, ShouldEqual, scaleDuty(512))
		})

		Convey("zero duty drives the pin low", func() {
			So(d.SetDuty(M6Backward, 0), ShouldBeNil)
			So(reg[pins.Channels[M6Backward]].L, ShouldEqual, gpio.Low)
		})

		Convey("invalid writes are rejected", func() {
			So(d.SetDuty(M6Backward, MaxDuty+1), ShouldNotBeNil)
			So(d.SetOutput(Line(NumLines), true), ShouldNotBeNil)
		})

		Convey("close leaves everything low", func() {
			d.SetOutput(LED, true)
			So(d.Close(), ShouldBeNil)
			So(reg[pins.Lines[LED]].L, ShouldEqual, gpio.Low)
		})
	})

	Convey("a missing pin fails to open", t, func() {
		pins, reg := createTestPins()
		delete(reg, pins.Lines[LED])

		_, err := openPeriph(pins, physic.KiloHertz, reg.lookup)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "LED")
	})

	Convey("a zero PWM frequency is refused", t, func() {
		pins, reg := createTestPins()
		_, err := openPeriph(pins, 0, reg.lookup)
		So(err, ShouldNotBeNil)
	})
}
