package comms

import (
	"strconv"
	"strings"

	deverrors "github.com/CodedInternet/rescuebot/onboard/errors"
)

type Kind int

const (
	Unknown Kind = iota
	Forward
	Backward
	Left
	Right
	StopChassis
	Stop
	LEDOn
	LEDOff
	SetSpeed
	ForkliftUp
	ForkliftDown
	CamA
	CamB
)

var kindNames = [...]string{
	Unknown:      "unknown",
	Forward:      "forward",
	Backward:     "backward",
	Left:         "left",
	Right:        "right",
	StopChassis:  "stop_chassis",
	Stop:         "stop",
	LEDOn:        "led_on",
	LEDOff:       "led_off",
	SetSpeed:     "set_speed",
	ForkliftUp:   "forklift_up",
	ForkliftDown: "forklift_down",
	CamA:         "cam_a",
	CamB:         "cam_b",
}

// Kinds lists every recognised command in protocol order.
var Kinds = []Kind{
	Forward, Backward, Left, Right, StopChassis, Stop, LEDOn, LEDOff,
	SetSpeed, ForkliftUp, ForkliftDown, CamA, CamB,
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Unknown]
	}
	return kindNames[k]
}

// Timed reports whether the command launches a self-terminating action.
func (k Kind) Timed() bool {
	switch k {
	case ForkliftUp, ForkliftDown, CamA, CamB:
		return true
	}
	return false
}

// KindByName maps a protocol token to its Kind, Unknown when unrecognised.
func KindByName(name string) Kind {
	for _, k := range Kinds {
		if kindNames[k] == name {
			return k
		}
	}
	return Unknown
}

// Command is a validated protocol command. Value is only meaningful for
// SetSpeed.
type Command struct {
	Kind  Kind
	Name  string
	Value int
}

func (c Command) String() string {
	if c.Kind == SetSpeed {
		return c.Name + ":" + strconv.Itoa(c.Value)
	}
	return c.Name
}

// Parse validates a command token and its optional argument. The speed range
// itself is checked by the controller.
func Parse(name, arg string, hasArg bool) (Command, error) {
	cmd := Command{Kind: KindByName(name), Name: name}

	switch cmd.Kind {
	case Unknown:
		return cmd, deverrors.UnknownCommandError{Name: name}

	case SetSpeed:
		if !hasArg {
			return cmd, deverrors.ArgumentError{Name: name}
		}
		v, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return cmd, deverrors.ArgumentError{Name: name, Arg: arg}
		}
		cmd.Value = v
	}

	return cmd, nil
}

// ParseLine splits a line protocol entry of the form cmd, cmd:value or
// cmd=value. ':' is checked before '=' and only the first occurrence splits.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)

	sep := strings.IndexByte(line, ':')
	if sep < 0 {
		sep = strings.IndexByte(line, '=')
	}
	if sep < 0 {
		return Parse(line, "", false)
	}
	return Parse(line[:sep], line[sep+1:], true)
}
