package onboard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodedInternet/rescuebot/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v2"
)

const testYaml = `
version: 1.0.2
pwm_frequency_hz: 2000
default_speed: 300
settle: 20ms
durations:
  forklift: 1500ms
  camera: 250ms
pins:
  led: GPIO4
`

func TestDeviceConfigParsing(t *testing.T) {
	Convey("parsing over the defaults is successful", t, func() {
		config := DefaultDeviceConfig()
		err := yaml.Unmarshal([]byte(testYaml), config)
		So(err, ShouldBeNil)
		So(config.Validate(), ShouldBeNil)

		Convey("scalar values are set", func() {
			So(config.PWMFrequencyHz, ShouldEqual, 2000)
			So(config.DefaultSpeed, ShouldEqual, 300)
			So(config.Settle, ShouldEqual, 20*time.Millisecond)
			So(config.Durations.Forklift, ShouldEqual, 1500*time.Millisecond)
			So(config.Durations.Camera, ShouldEqual, 250*time.Millisecond)
		})

		Convey("unset pins keep their defaults", func() {
			pins := config.Pins.PinMap()
			So(pins.Lines[hardware.LED], ShouldEqual, "GPIO4")
			So(pins.Lines[hardware.M1Forward], ShouldEqual, "GPIO13")
			So(pins.Channels[hardware.M6Backward], ShouldEqual, "GPIO25")
		})
	})
}

func TestDeviceConfigValidation(t *testing.T) {
	Convey("the defaults are valid", t, func() {
		So(DefaultDeviceConfig().Validate(), ShouldBeNil)
	})

	Convey("invalid configs are refused", t, func() {
		config := DefaultDeviceConfig()

		Convey("incompatible schema version", func() {
			config.Version = "2.0.0"
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("malformed schema version", func() {
			config.Version = "one"
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("speed outside the duty range", func() {
			config.DefaultSpeed = 1024
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("zero duration", func() {
			config.Durations.Camera = 0
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("pin shared by two outputs", func() {
			config.Pins.M6Forward = config.Pins.M1Forward
			err := config.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "M1_FW")
		})

		Convey("missing pin", func() {
			config.Pins.LED = ""
			So(config.Validate(), ShouldNotBeNil)
		})
	})
}

func TestLoadDeviceConfig(t *testing.T) {
	Convey("an empty filename yields the defaults", t, func() {
		config, err := LoadDeviceConfig("")
		So(err, ShouldBeNil)
		So(config, ShouldResemble, DefaultDeviceConfig())
	})

	Convey("a file is read over the defaults", t, func() {
		dir, err := os.MkdirTemp("", "rescuebot")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		filename := filepath.Join(dir, "device.yaml")
		So(os.WriteFile(filename, []byte(testYaml), 0644), ShouldBeNil)

		config, err := LoadDeviceConfig(filename)
		So(err, ShouldBeNil)
		So(config.DefaultSpeed, ShouldEqual, 300)

		Convey("a missing file is an error", func() {
			_, err := LoadDeviceConfig(filepath.Join(dir, "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
