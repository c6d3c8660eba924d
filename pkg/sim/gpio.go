package sim

import (
	"sync"

	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

// GPIO models a 16-pin port with an atomic set/reset register.
type GPIO struct {
	lock    sync.Mutex
	moder   uint32
	otyper  uint32
	odr     uint32
	input   uint32
	history []uint32
}

// NewGPIO creates a port with every pin low.
func NewGPIO() *GPIO {
	return &GPIO{}
}

// Load implements Device. BSRR is write-only and reads as zero.
func (g *GPIO) Load(off uintptr) uint32 {
	g.lock.Lock()
	defer g.lock.Unlock()
	switch off {
	case stm32f3.GPIOMODER:
		return g.moder
	case stm32f3.GPIOOTYPER:
		return g.otyper
	case stm32f3.GPIOIDR:
		outputs := g.outputMask()
		return g.odr&outputs | g.input&^outputs
	case stm32f3.GPIOODR:
		return g.odr
	}
	return 0
}

// Store implements Device. When BSRR sets and resets the same pin, set
// wins.
func (g *GPIO) Store(off uintptr, val uint32) {
	g.lock.Lock()
	defer g.lock.Unlock()
	switch off {
	case stm32f3.GPIOMODER:
		g.moder = val
	case stm32f3.GPIOOTYPER:
		g.otyper = val & 0xffff
	case stm32f3.GPIOODR:
		g.setODR(val & 0xffff)
	case stm32f3.GPIOBSRR:
		g.setODR(g.odr&^(val>>16) | val&0xffff)
	}
}

func (g *GPIO) setODR(val uint32) {
	if val != g.odr {
		g.history = append(g.history, val)
	}
	g.odr = val
}

func (g *GPIO) outputMask() (mask uint32) {
	for n := uint(0); n < stm32f3.PinsPerPort; n++ {
		if (g.moder>>(2*n))&3 == stm32f3.ModeOutput {
			mask |= 1 << n
		}
	}
	return
}

// Pin reports the output level of pin n.
func (g *GPIO) Pin(n int) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.odr&(1<<uint(n)) != 0
}

// IsOutput reports whether pin n is configured as output.
func (g *GPIO) IsOutput(n int) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.outputMask()&(1<<uint(n)) != 0
}

// ODR returns the output data register.
func (g *GPIO) ODR() uint32 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.odr
}

// SetInput drives the external level of pin n.
func (g *GPIO) SetInput(n int, high bool) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if high {
		g.input |= 1 << uint(n)
	} else {
		g.input &^= 1 << uint(n)
	}
}

// History returns every distinct ODR value in order of change.
func (g *GPIO) History() []uint32 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]uint32(nil), g.history...)
}
