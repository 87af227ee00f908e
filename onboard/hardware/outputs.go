package hardware

import "fmt"

// Line is a binary output: one leg of a chassis motor or the status LED.
type Line uint8

const (
	M1Forward Line = iota
	M1Backward
	M2Forward
	M2Backward
	M3Forward
	M3Backward
	M4Forward
	M4Backward
	LED

	NumLines = 9
	// chassis legs occupy the first lines, forward/backward alternating per motor
	NumChassisLines = 8
)

// Channel is a PWM output driving one direction of an auxiliary motor.
type Channel uint8

const (
	M5Forward Channel = iota // forklift up
	M5Backward               // forklift down
	M6Forward                // camera rotate A
	M6Backward               // camera rotate B

	NumChannels = 4
)

// MaxDuty is the full-scale PWM duty value.
const MaxDuty = 1023

// Pair identifies the two channels of one PWM motor.
type Pair uint8

const (
	Forklift Pair = iota
	Camera
)

var lineNames = [NumLines]string{
	"M1_FW", "M1_BW", "M2_FW", "M2_BW", "M3_FW", "M3_BW", "M4_FW", "M4_BW", "LED",
}

var channelNames = [NumChannels]string{
	"M5_FW_PWM", "M5_BW_PWM", "M6_FW_PWM", "M6_BW_PWM",
}

func (l Line) String() string {
	if int(l) < len(lineNames) {
		return lineNames[l]
	}
	return fmt.Sprintf("Line(%d)", uint8(l))
}

// Chassis reports whether the line is a chassis motor leg.
func (l Line) Chassis() bool {
	return l < NumChassisLines
}

// Opposite returns the other leg of the same chassis motor.
func (l Line) Opposite() Line {
	return l ^ 1
}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// Pair returns the motor the channel belongs to.
func (c Channel) Pair() Pair {
	return Pair(c / 2)
}

// Opposite returns the other direction of the same motor.
func (c Channel) Opposite() Channel {
	return c ^ 1
}

func (p Pair) String() string {
	switch p {
	case Forklift:
		return "forklift"
	case Camera:
		return "camera"
	}
	return fmt.Sprintf("Pair(%d)", uint8(p))
}
