// Package timer implements blocking millisecond delays on a basic timer in
// one-pulse mode.
package timer

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

// TickHz is the counter rate after the prescaler: one tick per millisecond.
const TickHz = 1000

const owner = "timer.Delay"

var (
	// ErrClock indicates the timer clock cannot be prescaled to TickHz.
	ErrClock = errors.New("timer clock cannot be divided to 1 kHz")
	// ErrZeroTicks is returned by Start for a zero countdown, which never
	// raises the update flag.
	ErrZeroTicks = errors.New("zero ticks countdown never expires")
)

// State is the software view of the countdown.
type State int

// Delay states.
const (
	Idle State = iota
	Counting
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Counting:
		return "counting"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config configures the timer.
type Config struct {
	// ClockHz is the timer kernel clock.
	ClockHz uint32
}

// Prescaler computes PSC so the counter advances at TickHz.
func (c Config) Prescaler() (uint32, error) {
	if c.ClockHz < TickHz || c.ClockHz%TickHz != 0 || c.ClockHz/TickHz-1 > stm32f3.PSC.Max() {
		return 0, fmt.Errorf("%d Hz: %w", c.ClockHz, ErrClock)
	}
	return c.ClockHz/TickHz - 1, nil
}

// Delay drives a basic timer (TIM6/TIM7) as a one-shot countdown.
//
// The update flag must be acknowledged after every expiry: a Start after an
// unacknowledged expiry observes the stale flag and the following Poll
// returns at once. A freed Delay fails every operation with reg.ErrReleased.
type Delay struct {
	name  string
	block *reg.Block
	cr1   *reg.Register
	sr    *reg.Register
	egr   *reg.Register
	psc   *reg.Register
	arr   *reg.Register
	state State
}

// New takes ownership of a basic timer block, programs the prescaler and
// selects one-pulse mode with the counter stopped.
func New(block *reg.Block, conf Config) (*Delay, error) {
	psc, err := conf.Prescaler()
	if err != nil {
		return nil, err
	}
	regs, err := block.Lookup("CR1", "SR", "EGR", "PSC", "ARR")
	if err != nil {
		return nil, err
	}
	if err := block.Claim(owner); err != nil {
		return nil, err
	}
	d := &Delay{
		name:  block.Name(),
		block: block,
		cr1:   regs[0],
		sr:    regs[1],
		egr:   regs[2],
		psc:   regs[3],
		arr:   regs[4],
	}
	if err := d.init(psc); err != nil {
		block.Release(owner)
		return nil, err
	}
	return d, nil
}

// init loads PSC through an update event, which also raises UIF, then
// clears the flag so the first delay is not cut short.
func (d *Delay) init(psc uint32) error {
	if err := d.cr1.Write(func(w *reg.Writer) {
		w.SetBit(stm32f3.OPM).ClearBit(stm32f3.CEN)
	}); err != nil {
		return err
	}
	if err := d.psc.Write(func(w *reg.Writer) { w.Set(stm32f3.PSC, psc) }); err != nil {
		return err
	}
	if err := d.egr.Write(func(w *reg.Writer) { w.SetBit(stm32f3.UG) }); err != nil {
		return err
	}
	return d.Acknowledge()
}

// State returns the current state.
func (d *Delay) State() State {
	return d.state
}

// Start loads the reload value and enables the counter in one-pulse mode.
// ticks must not be zero.
func (d *Delay) Start(ticks uint16) error {
	if d.block == nil {
		return reg.ErrReleased
	}
	if ticks == 0 {
		return fmt.Errorf("%s: %w", d.name, ErrZeroTicks)
	}
	if err := d.arr.Write(func(w *reg.Writer) { w.Set(stm32f3.ARR, uint32(ticks)) }); err != nil {
		return err
	}
	if err := d.cr1.Write(func(w *reg.Writer) {
		w.SetBit(stm32f3.OPM).SetBit(stm32f3.CEN)
	}); err != nil {
		return err
	}
	d.state = Counting
	glog.V(4).Infof("%s: counting %d ticks", d.name, ticks)
	return nil
}

// Poll busy-waits until the update flag is set. There is no timeout: it
// blocks forever if the counter never expires.
func (d *Delay) Poll() error {
	if d.block == nil {
		return reg.ErrReleased
	}
	for {
		v, err := d.sr.Read()
		if err != nil {
			return err
		}
		set, err := v.IsSet(stm32f3.UIF)
		if err != nil {
			return err
		}
		if set {
			break
		}
	}
	d.state = Expired
	return nil
}

// Acknowledge clears the update flag.
func (d *Delay) Acknowledge() error {
	if d.block == nil {
		return reg.ErrReleased
	}
	if err := d.sr.Write(func(w *reg.Writer) { w.ClearBit(stm32f3.UIF) }); err != nil {
		return err
	}
	d.state = Idle
	return nil
}

// DelayMs blocks for ms milliseconds. Zero returns at once without touching
// the timer.
func (d *Delay) DelayMs(ms uint16) error {
	if ms == 0 {
		return nil
	}
	if err := d.Start(ms); err != nil {
		return err
	}
	if err := d.Poll(); err != nil {
		return err
	}
	return d.Acknowledge()
}

// Block returns the owned timer block, nil once freed.
func (d *Delay) Block() *reg.Block { return d.block }

// Free releases the timer block and returns it. Freeing twice returns nil.
func (d *Delay) Free() *reg.Block {
	block := d.block
	if block != nil {
		block.Release(owner)
		d.block = nil
		d.state = Idle
	}
	return block
}
