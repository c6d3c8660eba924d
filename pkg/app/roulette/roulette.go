// Package roulette spins a light around the compass LEDs.
package roulette

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/board"
)

// DefaultPeriod is the delay between two LED transitions, in milliseconds.
const DefaultPeriod = 50

// Delayer blocks for a number of milliseconds.
type Delayer interface {
	DelayMs(ms uint16) error
}

// Pattern selects the timing of a step.
type Pattern int

// Patterns.
const (
	// Chase turns the next LED on, waits, turns the current one off and
	// waits, so two LEDs overlap for one period.
	Chase Pattern = iota
	// Trail keeps the current LED on for two periods before the next one
	// joins it for a third, then turns the current one off.
	Trail
)

func (p Pattern) String() string {
	switch p {
	case Chase:
		return "chase"
	case Trail:
		return "trail"
	}
	return fmt.Sprintf("Pattern(%d)", int(p))
}

// ParsePattern parses the name of a pattern.
func ParsePattern(s string) (Pattern, error) {
	switch s {
	case "chase":
		return Chase, nil
	case "trail":
		return Trail, nil
	}
	return Chase, fmt.Errorf("unknown pattern %q", s)
}

// Roulette drives the LEDs in turn.
type Roulette struct {
	Leds    []board.Switch
	Delay   Delayer
	Period  uint16
	Pattern Pattern
	// OnStep, when set, is called after each step with the index of the
	// LED the light moved to.
	OnStep func(next int)

	curr int
}

// New creates a roulette over the compass LEDs of b.
func New(b *board.Board) *Roulette {
	return &Roulette{Leds: b.Switches(), Delay: b.Delay, Period: DefaultPeriod}
}

// Current returns the index of the LED the light is on.
func (r *Roulette) Current() int {
	return r.curr
}

func (r *Roulette) period() uint16 {
	if r.Period == 0 {
		return DefaultPeriod
	}
	return r.Period
}

// Step moves the light to the next LED.
func (r *Roulette) Step() error {
	next := (r.curr + 1) % len(r.Leds)
	switch r.Pattern {
	case Trail:
		if err := r.Leds[r.curr].On(); err != nil {
			return err
		}
		if err := r.Delay.DelayMs(2 * r.period()); err != nil {
			return err
		}
		if err := r.Leds[next].On(); err != nil {
			return err
		}
		if err := r.Delay.DelayMs(r.period()); err != nil {
			return err
		}
		if err := r.Leds[r.curr].Off(); err != nil {
			return err
		}
	default:
		if err := r.Leds[next].On(); err != nil {
			return err
		}
		if err := r.Delay.DelayMs(r.period()); err != nil {
			return err
		}
		if err := r.Leds[r.curr].Off(); err != nil {
			return err
		}
		if err := r.Delay.DelayMs(r.period()); err != nil {
			return err
		}
	}
	glog.V(3).Infof("roulette: %d -> %d", r.curr, next)
	r.curr = next
	if r.OnStep != nil {
		r.OnStep(next)
	}
	return nil
}

// Spin runs cycles full turns around the LEDs.
func (r *Roulette) Spin(cycles int) error {
	for i := 0; i < cycles*len(r.Leds); i++ {
		if err := r.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run implements framework.Runnable, stepping until ctx is done.
func (r *Roulette) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.Step(); err != nil {
			return err
		}
	}
}
