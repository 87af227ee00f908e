package comms

import (
	"errors"
	"log"

	"github.com/CodedInternet/rescuebot/onboard"
	deverrors "github.com/CodedInternet/rescuebot/onboard/errors"
)

// Origin identifies where a command came from.
type Origin struct {
	Source  string
	Session string
}

func (o Origin) String() string {
	if o.Session == "" {
		return o.Source
	}
	return o.Source + " " + o.Session
}

type handler func(cmd Command) error

// CommandInfo describes one dispatch table entry.
type CommandInfo struct {
	Name  string `json:"name"`
	Timed bool   `json:"timed"`
	Arg   bool   `json:"arg"`
}

// Conductor maps parsed commands onto the rover. Every front end shares one
// Conductor so that all of them see the same table.
type Conductor struct {
	Device  onboard.Rover
	Journal *Journal
	table   map[Kind]handler
}

func NewConductor(device onboard.Rover, journal *Journal) *Conductor {
	c := &Conductor{
		Device:  device,
		Journal: journal,
	}

	immediate := func(action func() error) handler {
		return func(Command) error { return action() }
	}

	c.table = map[Kind]handler{
		Forward:      immediate(device.MoveForward),
		Backward:     immediate(device.MoveBackward),
		Left:         immediate(device.TurnLeft),
		Right:        immediate(device.TurnRight),
		StopChassis:  immediate(device.StopChassis),
		Stop:         immediate(device.StopAll),
		LEDOn:        immediate(device.LEDOn),
		LEDOff:       immediate(device.LEDOff),
		ForkliftUp:   immediate(device.ForkliftUp),
		ForkliftDown: immediate(device.ForkliftDown),
		CamA:         immediate(device.CameraRotateA),
		CamB:         immediate(device.CameraRotateB),
		SetSpeed: func(cmd Command) error {
			return device.SetSpeed(cmd.Value)
		},
	}

	return c
}

// Dispatch runs a parsed command. The returned error is for logging only;
// no front end reports it to the client.
func (c *Conductor) Dispatch(origin Origin, cmd Command) error {
	h, ok := c.table[cmd.Kind]
	if !ok {
		err := deverrors.UnknownCommandError{Name: cmd.Name}
		c.record(origin, cmd, err)
		return err
	}

	err := h(cmd)
	if err != nil {
		log.Printf("%s: %s: %v", origin, cmd, err)
	}
	c.record(origin, cmd, err)
	return err
}

// ProcessCommand parses and dispatches a command given as token and optional
// argument.
func (c *Conductor) ProcessCommand(origin Origin, name, arg string, hasArg bool) error {
	cmd, err := Parse(name, arg, hasArg)
	if err != nil {
		log.Printf("%s: rejected: %v", origin, err)
		c.record(origin, cmd, err)
		return err
	}
	return c.Dispatch(origin, cmd)
}

// ProcessLine parses and dispatches one line protocol entry.
func (c *Conductor) ProcessLine(origin Origin, line string) error {
	cmd, err := ParseLine(line)
	if err != nil {
		log.Printf("%s: rejected %q: %v", origin, line, err)
		c.record(origin, cmd, err)
		return err
	}
	return c.Dispatch(origin, cmd)
}

// Commands lists the dispatch table in protocol order.
func (c *Conductor) Commands() []CommandInfo {
	infos := make([]CommandInfo, 0, len(c.table))
	for _, k := range Kinds {
		if _, ok := c.table[k]; !ok {
			continue
		}
		infos = append(infos, CommandInfo{
			Name:  k.String(),
			Timed: k.Timed(),
			Arg:   k == SetSpeed,
		})
	}
	return infos
}

func (c *Conductor) record(origin Origin, cmd Command, err error) {
	if c.Journal == nil {
		return
	}

	e := &Entry{
		Session: origin.Session,
		Source:  origin.Source,
		Command: cmd.Name,
		Value:   cmd.Value,
		Outcome: "ok",
	}
	if err != nil {
		e.Outcome = err.Error()
	}

	if err := c.Journal.Record(e); err != nil && !errors.Is(err, ErrJournalClosed) {
		log.Printf("unable to journal %s: %v", cmd, err)
	}
}
