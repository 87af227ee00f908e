package onboard

import (
	"context"
	"log"
	"time"

	"github.com/CodedInternet/rescuebot/onboard/hardware"
)

type TimedPhase int

const (
	PhaseStarting TimedPhase = iota
	PhaseRunning
	PhaseStopping
	PhaseDone
)

func (p TimedPhase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	}
	return "done"
}

// TimedStatus describes the current timed action of one motor pair.
type TimedStatus struct {
	Name    string    `json:"name"`
	Channel string    `json:"channel"`
	Phase   string    `json:"phase"`
	Speed   uint16    `json:"speed"`
	Until   time.Time `json:"until,omitempty"`
}

type timedAction struct {
	id      uint64
	name    string
	channel hardware.Channel
	speed   uint16
	hold    time.Duration
	phase   TimedPhase
	until   time.Time
	cancel  context.CancelFunc
}

// must hold lock
func (t *timedAction) status() TimedStatus {
	return TimedStatus{
		Name:    t.name,
		Channel: t.channel.String(),
		Phase:   t.phase.String(),
		Speed:   t.speed,
		Until:   t.until,
	}
}

func (c *ActuatorController) ForkliftUp() error {
	return c.runTimed("forklift up", hardware.M5Forward, c.durations.Forklift)
}

func (c *ActuatorController) ForkliftDown() error {
	return c.runTimed("forklift down", hardware.M5Backward, c.durations.Forklift)
}

func (c *ActuatorController) CameraRotateA() error {
	return c.runTimed("camera rotate A", hardware.M6Forward, c.durations.Camera)
}

func (c *ActuatorController) CameraRotateB() error {
	return c.runTimed("camera rotate B", hardware.M6Backward, c.durations.Camera)
}

// runTimed launches a timed action on ch and returns straight away. The speed
// is captured now; the new action supersedes whatever its motor pair was doing.
func (c *ActuatorController) runTimed(name string, ch hardware.Channel, hold time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.ctx.Err() != nil {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.seq++
	task := &timedAction{
		id:      c.seq,
		name:    name,
		channel: ch,
		speed:   uint16(c.speed),
		hold:    hold,
		cancel:  cancel,
	}

	if prev, ok := c.tasks[ch.Pair()]; ok {
		prev.cancel()
	}
	c.tasks[ch.Pair()] = task

	c.wg.Add(1)
	go c.execute(ctx, task)
	return nil
}

func (c *ActuatorController) execute(ctx context.Context, task *timedAction) {
	defer c.wg.Done()
	defer task.cancel()

	// starting: silence the PWM class before touching our own channel
	ok, err := c.advance(task, PhaseStarting, func() error {
		return c.stopPWM()
	})
	if err != nil {
		log.Printf("timed action %s: %v", task.name, err)
	}
	if !ok || err != nil {
		c.finish(task)
		return
	}

	if !sleepContext(ctx, c.settle) {
		c.finish(task)
		return
	}

	ok, err = c.advance(task, PhaseRunning, func() error {
		task.until = time.Now().Add(task.hold)
		return c.setDuty(task.channel, task.speed)
	})
	if err != nil {
		log.Printf("timed action %s: %v", task.name, err)
	}
	if !ok || err != nil {
		c.finish(task)
		return
	}
	log.Printf("action: %s (speed %d)", task.name, task.speed)

	sleepContext(ctx, task.hold)
	c.finish(task)
}

// advance runs step under lock only while task is still the current action
// of its pair.
func (c *ActuatorController) advance(task *timedAction, phase TimedPhase, step func() error) (bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.tasks[task.channel.Pair()] != task {
		return false, nil
	}
	task.phase = phase
	return true, step()
}

// finish returns the task's channel to zero unless a newer action on the
// same pair is driving that very channel.
func (c *ActuatorController) finish(task *timedAction) {
	c.lock.Lock()
	defer c.lock.Unlock()

	pair := task.channel.Pair()
	current := c.tasks[pair]
	if current == task {
		task.phase = PhaseStopping
	}

	successor := current != nil && current != task &&
		current.channel == task.channel && current.phase == PhaseRunning
	if !successor {
		if err := c.setDuty(task.channel, 0); err != nil {
			log.Printf("timed action %s: %v", task.name, err)
		}
	}

	if current == task {
		task.phase = PhaseDone
		delete(c.tasks, pair)
		log.Printf("action: %s stopped", task.name)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
