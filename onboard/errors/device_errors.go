package errors

import "fmt"

type UnknownCommandError struct {
	Name string
}

func (err UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", err.Name)
}

type SpeedRangeError struct {
	Value, Min, Max int
}

func (err SpeedRangeError) Error() string {
	return fmt.Sprintf("speed %d outside [%d, %d]", err.Value, err.Min, err.Max)
}

// ArgumentError is returned when a command needs an argument that is missing
// or not a number.
type ArgumentError struct {
	Name string
	Arg  string
}

func (err ArgumentError) Error() string {
	if len(err.Arg) == 0 {
		return fmt.Sprintf("command %s requires an argument", err.Name)
	}
	return fmt.Sprintf("command %s: invalid argument %q", err.Name, err.Arg)
}

// DriverError wraps a failed actuator write with the action that issued it.
type DriverError struct {
	Action string
	Err    error
}

func (err *DriverError) Error() string {
	action := err.Action
	if len(action) == 0 {
		action = "UNKNOWN"
	}
	return fmt.Sprintf("actuator write failed during %s: %v", action, err.Err)
}

func (err *DriverError) Unwrap() error {
	return err.Err
}
