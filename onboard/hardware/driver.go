package hardware

// Driver is the sink for every actuator write. Implementations carry no
// coordination logic; ordering and mutual exclusion belong to the caller.
type Driver interface {
	SetOutput(line Line, on bool) error
	SetDuty(ch Channel, duty uint16) error
	Close() error
}

// PinMap names the physical pin behind every line and channel.
type PinMap struct {
	Lines    [NumLines]string
	Channels [NumChannels]string
}
