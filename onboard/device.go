package onboard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	deverrors "github.com/CodedInternet/rescuebot/onboard/errors"
	"github.com/CodedInternet/rescuebot/onboard/hardware"
)

var (
	ErrClosed = errors.New("actuator controller closed")
)

// Rover is the action set exposed to the command front ends.
type Rover interface {
	StopAll() error
	StopChassis() error
	MoveForward() error
	MoveBackward() error
	TurnLeft() error
	TurnRight() error
	LEDOn() error
	LEDOff() error
	SetSpeed(v int) error
	ForkliftUp() error
	ForkliftDown() error
	CameraRotateA() error
	CameraRotateB() error
	State() ActuatorState
}

// ActuatorState is a point in time copy of the outputs.
type ActuatorState struct {
	Chassis map[string]bool   `json:"chassis"`
	Duty    map[string]uint16 `json:"duty"`
	LED     bool              `json:"led"`
	Speed   int               `json:"speed"`
	Timed   []TimedStatus     `json:"timed"`
}

// ActuatorController owns the actuator set and the commanded speed. Every
// action holds lock across its whole stop-then-set write sequence and never
// across a sleep, which is what keeps opposing outputs from overlapping.
type ActuatorController struct {
	lock   sync.Mutex
	driver hardware.Driver
	lines  [hardware.NumLines]bool
	duty   [hardware.NumChannels]uint16
	speed  int

	settle    time.Duration
	durations Durations

	tasks  map[hardware.Pair]*timedAction
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewActuatorController(driver hardware.Driver, config *DeviceConfig) *ActuatorController {
	ctx, cancel := context.WithCancel(context.Background())

	return &ActuatorController{
		driver:    driver,
		speed:     config.DefaultSpeed,
		settle:    config.Settle,
		durations: config.Durations,
		tasks:     make(map[hardware.Pair]*timedAction),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// StopAll silences every output and supersedes any timed action in flight.
func (c *ActuatorController) StopAll() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	for pair, task := range c.tasks {
		task.cancel()
		delete(c.tasks, pair)
	}

	if err := c.stopChassis(); err != nil {
		return &deverrors.DriverError{Action: "stop all", Err: err}
	}
	if err := c.stopPWM(); err != nil {
		return &deverrors.DriverError{Action: "stop all", Err: err}
	}
	if err := c.setLine(hardware.LED, false); err != nil {
		return &deverrors.DriverError{Action: "stop all", Err: err}
	}

	log.Println("action: stop all")
	return nil
}

func (c *ActuatorController) StopChassis() error {
	return c.setChassis("stop chassis")
}

func (c *ActuatorController) MoveForward() error {
	return c.setChassis("move forward",
		hardware.M1Forward, hardware.M2Forward, hardware.M3Forward, hardware.M4Forward)
}

func (c *ActuatorController) MoveBackward() error {
	return c.setChassis("move backward",
		hardware.M1Backward, hardware.M2Backward, hardware.M3Backward, hardware.M4Backward)
}

func (c *ActuatorController) TurnLeft() error {
	return c.setChassis("turn left",
		hardware.M1Backward, hardware.M3Backward, hardware.M2Forward, hardware.M4Forward)
}

func (c *ActuatorController) TurnRight() error {
	return c.setChassis("turn right",
		hardware.M1Forward, hardware.M3Forward, hardware.M2Backward, hardware.M4Backward)
}

func (c *ActuatorController) LEDOn() error {
	return c.setLED(true)
}

func (c *ActuatorController) LEDOff() error {
	return c.setLED(false)
}

// SetSpeed stores the duty used by timed actions started from now on.
func (c *ActuatorController) SetSpeed(v int) error {
	if v < MinSpeed || v > MaxSpeed {
		return deverrors.SpeedRangeError{Value: v, Min: MinSpeed, Max: MaxSpeed}
	}

	c.lock.Lock()
	c.speed = v
	c.lock.Unlock()

	log.Printf("speed set to %d", v)
	return nil
}

func (c *ActuatorController) Speed() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.speed
}

func (c *ActuatorController) State() ActuatorState {
	c.lock.Lock()
	defer c.lock.Unlock()

	state := ActuatorState{
		Chassis: make(map[string]bool, hardware.NumChassisLines),
		Duty:    make(map[string]uint16, hardware.NumChannels),
		LED:     c.lines[hardware.LED],
		Speed:   c.speed,
		Timed:   make([]TimedStatus, 0, len(c.tasks)),
	}
	for l := hardware.Line(0); l < hardware.NumChassisLines; l++ {
		state.Chassis[l.String()] = c.lines[l]
	}
	for ch := hardware.Channel(0); ch < hardware.NumChannels; ch++ {
		state.Duty[ch.String()] = c.duty[ch]
	}
	for pair := hardware.Forklift; pair <= hardware.Camera; pair++ {
		if task, ok := c.tasks[pair]; ok {
			state.Timed = append(state.Timed, task.status())
		}
	}
	return state
}

// Close cancels every timed action, waits for them to settle their outputs
// and finishes with StopAll.
func (c *ActuatorController) Close() error {
	// runTimed checks ctx and calls wg.Add under lock, so no task can be
	// added once Wait starts
	c.lock.Lock()
	c.cancel()
	c.lock.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("timed out waiting for timed actions to finish")
	}

	return c.StopAll()
}

func (c *ActuatorController) setChassis(name string, on ...hardware.Line) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.stopChassis(); err != nil {
		return &deverrors.DriverError{Action: name, Err: err}
	}
	for _, line := range on {
		if err := c.setLine(line, true); err != nil {
			return &deverrors.DriverError{Action: name, Err: err}
		}
	}

	log.Printf("action: %s", name)
	return nil
}

func (c *ActuatorController) setLED(on bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.setLine(hardware.LED, on); err != nil {
		return &deverrors.DriverError{Action: "led", Err: err}
	}

	if on {
		log.Println("action: led on")
	} else {
		log.Println("action: led off")
	}
	return nil
}

// must hold lock
func (c *ActuatorController) stopChassis() error {
	for l := hardware.Line(0); l < hardware.NumChassisLines; l++ {
		if err := c.setLine(l, false); err != nil {
			return err
		}
	}
	return nil
}

// must hold lock
func (c *ActuatorController) stopPWM() error {
	for ch := hardware.Channel(0); ch < hardware.NumChannels; ch++ {
		if err := c.setDuty(ch, 0); err != nil {
			return err
		}
	}
	return nil
}

// must hold lock
func (c *ActuatorController) setLine(line hardware.Line, on bool) error {
	if err := c.driver.SetOutput(line, on); err != nil {
		return err
	}
	c.lines[line] = on
	return nil
}

// must hold lock
func (c *ActuatorController) setDuty(ch hardware.Channel, duty uint16) error {
	if err := c.driver.SetDuty(ch, duty); err != nil {
		return err
	}
	c.duty[ch] = duty
	return nil
}
