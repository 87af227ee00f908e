package onboard

import (
	"fmt"
	"os"
	"time"

	"github.com/CodedInternet/rescuebot/onboard/hardware"
	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"
)

const (
	// accepted device config schema versions
	CONFIG_VERSION = "~1.0"

	MinSpeed = 0
	MaxSpeed = hardware.MaxDuty
)

type DeviceConfig struct {
	Version        string        `yaml:"version"`
	PWMFrequencyHz int           `yaml:"pwm_frequency_hz"`
	DefaultSpeed   int           `yaml:"default_speed"`
	Settle         time.Duration `yaml:"settle"`
	Pins           PinConfig     `yaml:"pins"`
	Durations      Durations     `yaml:"durations"`
}

type Durations struct {
	Forklift time.Duration `yaml:"forklift"`
	Camera   time.Duration `yaml:"camera"`
}

type PinConfig struct {
	M1Forward  string `yaml:"m1_fw"`
	M1Backward string `yaml:"m1_bw"`
	M2Forward  string `yaml:"m2_fw"`
	M2Backward string `yaml:"m2_bw"`
	M3Forward  string `yaml:"m3_fw"`
	M3Backward string `yaml:"m3_bw"`
	M4Forward  string `yaml:"m4_fw"`
	M4Backward string `yaml:"m4_bw"`
	LED        string `yaml:"led"`

	M5Forward  string `yaml:"m5_fw_pwm"`
	M5Backward string `yaml:"m5_bw_pwm"`
	M6Forward  string `yaml:"m6_fw_pwm"`
	M6Backward string `yaml:"m6_bw_pwm"`
}

// DefaultDeviceConfig matches the reference wiring of the rover board.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Version:        "1.0.0",
		PWMFrequencyHz: 1000,
		DefaultSpeed:   512,
		Settle:         50 * time.Millisecond,
		Pins: PinConfig{
			M1Forward:  "GPIO13",
			M1Backward: "GPIO12",
			M2Forward:  "GPIO27",
			M2Backward: "GPIO14",
			M3Forward:  "GPIO16",
			M3Backward: "GPIO17",
			M4Forward:  "GPIO18",
			M4Backward: "GPIO19",
			LED:        "GPIO2",
			M5Forward:  "GPIO21",
			M5Backward: "GPIO22",
			M6Forward:  "GPIO23",
			M6Backward: "GPIO25",
		},
		Durations: Durations{
			Forklift: 3 * time.Second,
			Camera:   time.Second,
		},
	}
}

// LoadDeviceConfig reads the YAML file over the defaults. An empty filename
// yields the defaults.
func LoadDeviceConfig(filename string) (*DeviceConfig, error) {
	config := DefaultDeviceConfig()

	if filename != "" {
		yamlFile, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("unable to read device config: %w", err)
		}
		if err = yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("unable to unmarshal device config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *DeviceConfig) Validate() error {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("device config version %q: %w", c.Version, err)
	}
	constraint, err := semver.NewConstraint(CONFIG_VERSION)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unable to use device config version %s - require %s", c.Version, CONFIG_VERSION)
	}

	if c.PWMFrequencyHz <= 0 {
		return fmt.Errorf("invalid PWM frequency %d", c.PWMFrequencyHz)
	}
	if c.DefaultSpeed < MinSpeed || c.DefaultSpeed > MaxSpeed {
		return fmt.Errorf("default speed %d outside [%d, %d]", c.DefaultSpeed, MinSpeed, MaxSpeed)
	}
	if c.Settle < 0 {
		return fmt.Errorf("negative settle delay %s", c.Settle)
	}
	if c.Durations.Forklift <= 0 || c.Durations.Camera <= 0 {
		return fmt.Errorf("timed action durations must be positive")
	}

	pins := c.Pins.PinMap()
	seen := make(map[string]string)
	for i, name := range pins.Lines {
		if err := claimPin(seen, name, hardware.Line(i).String()); err != nil {
			return err
		}
	}
	for i, name := range pins.Channels {
		if err := claimPin(seen, name, hardware.Channel(i).String()); err != nil {
			return err
		}
	}

	return nil
}

func claimPin(seen map[string]string, pin, output string) error {
	if pin == "" {
		return fmt.Errorf("no pin configured for %s", output)
	}
	if other, ok := seen[pin]; ok {
		return fmt.Errorf("pin %s assigned to both %s and %s", pin, other, output)
	}
	seen[pin] = output
	return nil
}

func (p PinConfig) PinMap() hardware.PinMap {
	return hardware.PinMap{
		Lines: [hardware.NumLines]string{
			hardware.M1Forward:  p.M1Forward,
			hardware.M1Backward: p.M1Backward,
			hardware.M2Forward:  p.M2Forward,
			hardware.M2Backward: p.M2Backward,
			hardware.M3Forward:  p.M3Forward,
			hardware.M3Backward: p.M3Backward,
			hardware.M4Forward:  p.M4Forward,
			hardware.M4Backward: p.M4Backward,
			hardware.LED:        p.LED,
		},
		Channels: [hardware.NumChannels]string{
			hardware.M5Forward:  p.M5Forward,
			hardware.M5Backward: p.M5Backward,
			hardware.M6Forward:  p.M6Forward,
			hardware.M6Backward: p.M6Backward,
		},
	}
}
