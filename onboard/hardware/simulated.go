package hardware

import (
	"fmt"
	"sync"
)

// Op is one recorded write against a SimulatedDriver.
type Op struct {
	PWM     bool
	Line    Line
	Channel Channel
	On      bool
	Duty    uint16
}

func (o Op) String() string {
	if o.PWM {
		return fmt.Sprintf("%s=%d", o.Channel, o.Duty)
	}
	if o.On {
		return fmt.Sprintf("%s=on", o.Line)
	}
	return fmt.Sprintf("%s=off", o.Line)
}

// SimulatedDriver keeps the outputs in memory. Every write is recorded and
// the pair invariant is sampled after it, so tests can check that no motor
// was ever driven in both directions at once.
type SimulatedDriver struct {
	lock       sync.Mutex
	lines      [NumLines]bool
	duty       [NumChannels]uint16
	history    []Op
	violations []string
	fail       error
	closed     bool
}

func NewSimulatedDriver() *SimulatedDriver {
	return new(SimulatedDriver)
}

func (s *SimulatedDriver) SetOutput(line Line, on bool) error {
	if line >= NumLines {
		return fmt.Errorf("no such line %d", line)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fail != nil {
		return s.fail
	}

	s.lines[line] = on
	s.record(Op{Line: line, On: on})
	return nil
}

func (s *SimulatedDriver) SetDuty(ch Channel, duty uint16) error {
	if ch >= NumChannels {
		return fmt.Errorf("no such channel %d", ch)
	}
	if duty > MaxDuty {
		return fmt.Errorf("duty %d above maximum %d", duty, MaxDuty)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fail != nil {
		return s.fail
	}

	s.duty[ch] = duty
	s.record(Op{PWM: true, Channel: ch, Duty: duty})
	return nil
}

func (s *SimulatedDriver) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

// FailWith makes every following write return err. Passing nil restores
// normal operation.
func (s *SimulatedDriver) FailWith(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.fail = err
}

func (s *SimulatedDriver) Output(line Line) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lines[line]
}

func (s *SimulatedDriver) Duty(ch Channel) uint16 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.duty[ch]
}

// History returns a copy of every write so far.
func (s *SimulatedDriver) History() []Op {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Op(nil), s.history...)
}

// ResetHistory drops the recorded writes and violations, keeping the outputs.
func (s *SimulatedDriver) ResetHistory() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.history = nil
	s.violations = nil
}

// Violations lists every sampled instant at which both directions of one
// motor were active.
func (s *SimulatedDriver) Violations() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.violations...)
}

func (s *SimulatedDriver) Closed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

// must hold lock
func (s *SimulatedDriver) record(op Op) {
	s.history = append(s.history, op)

	for l := Line(0); l < NumChassisLines; l += 2 {
		if s.lines[l] && s.lines[l.Opposite()] {
			s.violations = append(s.violations, fmt.Sprintf("after %s: %s and %s both on", op, l, l.Opposite()))
		}
	}
	for c := Channel(0); c < NumChannels; c += 2 {
		if s.duty[c] != 0 && s.duty[c.Opposite()] != 0 {
			s.violations = append(s.violations, fmt.Sprintf("after %s: %s and %s both driven", op, c, c.Opposite()))
		}
	}
}
