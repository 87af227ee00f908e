package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphDriver drives real pins through periph.io.
type PeriphDriver struct {
	lock     sync.Mutex
	lines    [NumLines]gpio.PinIO
	channels [NumChannels]gpio.PinIO
	freq     physic.Frequency
}

// NewPeriphDriver initialises the host drivers and opens every pin in the map.
func NewPeriphDriver(pins PinMap, freq physic.Frequency) (d *PeriphDriver, err error) {
	if _, err = host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init periph host: %w", err)
	}

	return openPeriph(pins, freq, gpioreg.ByName)
}

func openPeriph(pins PinMap, freq physic.Frequency, lookup func(name string) gpio.PinIO) (d *PeriphDriver, err error) {
	if freq <= 0 {
		return nil, fmt.Errorf("invalid PWM frequency %s", freq)
	}

	d = &PeriphDriver{freq: freq}

	for i, name := range pins.Lines {
		p := lookup(name)
		if p == nil {
			return nil, fmt.Errorf("failed to open pin %q for %s", name, Line(i))
		}
		d.lines[i] = p
	}

	for i, name := range pins.Channels {
		p := lookup(name)
		if p == nil {
			return nil, fmt.Errorf("failed to open pin %q for %s", name, Channel(i))
		}
		d.channels[i] = p
	}

	return d, nil
}

func (d *PeriphDriver) SetOutput(line Line, on bool) error {
	if line >= NumLines {
		return fmt.Errorf("no such line %d", line)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.lines[line].Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("%s: %w", line, err)
	}
	return nil
}

func (d *PeriphDriver) SetDuty(ch Channel, duty uint16) error {
	if ch >= NumChannels {
		return fmt.Errorf("no such channel %d", ch)
	}
	if duty > MaxDuty {
		return fmt.Errorf("duty %d above maximum %d", duty, MaxDuty)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	p := d.channels[ch]
	var err error
	if duty == 0 {
		// some hosts refuse a zero duty PWM, a low output is equivalent
		err = p.Out(gpio.Low)
	} else {
		err = p.PWM(scaleDuty(duty), d.freq)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", ch, err)
	}
	return nil
}

// Close drives every output low and releases the pins.
func (d *PeriphDriver) Close() (err error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	for _, p := range d.channels {
		if e := p.Out(gpio.Low); e != nil && err == nil {
			err = e
		}
		p.Halt()
	}
	for _, p := range d.lines {
		if e := p.Out(gpio.Low); e != nil && err == nil {
			err = e
		}
		p.Halt()
	}
	return
}

func scaleDuty(duty uint16) gpio.Duty {
	return gpio.Duty(int64(duty) * int64(gpio.DutyMax) / MaxDuty)
}
