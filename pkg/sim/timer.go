package sim

import (
	"sync"

	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

const (
	timCEN = 1 << 0
	timURS = 1 << 2
	timOPM = 1 << 3
	timUIF = 1 << 0
	timUG  = 1 << 0

	timCR1Mask = 0x8f
)

// BasicTimer models TIM6/TIM7. One tick of simulated time is one counter
// increment after the prescaler. PSC is honoured only for the Prescaler
// readback; the counter always advances one step per tick.
type BasicTimer struct {
	lock    sync.Mutex
	cr1     uint32
	dier    uint32
	sr      uint32
	cnt     uint32
	psc     uint32
	arr     uint32
	elapsed uint64
	updates int
}

// NewBasicTimer creates a timer in its reset state.
func NewBasicTimer() *BasicTimer {
	return &BasicTimer{arr: 0xffff}
}

// Load implements Device.
func (t *BasicTimer) Load(off uintptr) uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	switch off {
	case stm32f3.TIMCR1:
		return t.cr1
	case stm32f3.TIMDIER:
		return t.dier
	case stm32f3.TIMSR:
		return t.sr
	case stm32f3.TIMCNT:
		return t.cnt
	case stm32f3.TIMPSC:
		return t.psc
	case stm32f3.TIMARR:
		return t.arr
	}
	return 0
}

// Store implements Device. SR is rc_w0: writing 0 clears, 1 has no effect.
func (t *BasicTimer) Store(off uintptr, val uint32) {
	t.lock.Lock()
	defer t.lock.Unlock()
	switch off {
	case stm32f3.TIMCR1:
		t.cr1 = val & timCR1Mask
	case stm32f3.TIMDIER:
		t.dier = val & 0x101
	case stm32f3.TIMSR:
		t.sr &= val | ^uint32(timUIF)
	case stm32f3.TIMEGR:
		if val&timUG != 0 {
			t.cnt = 0
			if t.cr1&timURS == 0 {
				t.sr |= timUIF
			}
		}
	case stm32f3.TIMCNT:
		t.cnt = val & 0xffff
	case stm32f3.TIMPSC:
		t.psc = val & 0xffff
	case stm32f3.TIMARR:
		t.arr = val & 0xffff
	}
}

// Tick implements Ticker. The counter is blocked while ARR is zero.
func (t *BasicTimer) Tick() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.cr1&timCEN == 0 || t.arr == 0 {
		return
	}
	t.elapsed++
	t.cnt++
	if t.cnt < t.arr {
		return
	}
	t.cnt = 0
	t.sr |= timUIF
	t.updates++
	if t.cr1&timOPM != 0 {
		t.cr1 &^= timCEN
	}
}

// Elapsed returns the number of ticks counted while enabled.
func (t *BasicTimer) Elapsed() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.elapsed
}

// Updates returns the number of update events from counter overflow.
func (t *BasicTimer) Updates() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.updates
}

// Running reports whether the counter is enabled.
func (t *BasicTimer) Running() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.cr1&timCEN != 0
}

// Prescaler returns PSC.
func (t *BasicTimer) Prescaler() uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.psc
}

// Pending reports whether UIF is set.
func (t *BasicTimer) Pending() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.sr&timUIF != 0
}
