package sim

import (
	"bytes"
	"sync"

	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

const (
	usartUE = 1 << 0
	usartRE = 1 << 2
	usartTE = 1 << 3

	usartRXNE = 1 << 5
	usartTC   = 1 << 6
	usartTXE  = 1 << 7

	// DefaultTxLatency is the number of ticks a byte spends in the shift
	// register.
	DefaultTxLatency = 2
)

// USART models a transceiver with a host-fed receive queue and a capture of
// every transmitted byte. Received bytes wait in the queue until software
// reads RDR, so the model never overruns.
type USART struct {
	// TxLatency is the number of ticks TXE stays clear after a TDR write,
	// at least one.
	TxLatency int

	lock    sync.Mutex
	cr1     uint32
	brr     uint32
	rxQueue []byte
	rdr     uint32
	rxne    bool
	tdr     uint32
	txBusy  int
	tx      []byte
	sinks   []func(byte)
}

// NewUSART creates a disabled transceiver.
func NewUSART() *USART {
	return &USART{TxLatency: DefaultTxLatency}
}

// Load implements Device. Reading RDR clears RXNE.
func (u *USART) Load(off uintptr) uint32 {
	u.lock.Lock()
	defer u.lock.Unlock()
	switch off {
	case stm32f3.USARTCR1:
		return u.cr1
	case stm32f3.USARTBRR:
		return u.brr
	case stm32f3.USARTISR:
		return u.isr()
	case stm32f3.USARTRDR:
		u.rxne = false
		return u.rdr
	case stm32f3.USARTTDR:
		return u.tdr
	}
	return 0
}

// Store implements Device. TDR writes are ignored unless UE and TE are set
// and dropped while the previous byte is still shifting out.
func (u *USART) Store(off uintptr, val uint32) {
	u.lock.Lock()
	defer u.lock.Unlock()
	switch off {
	case stm32f3.USARTCR1:
		u.cr1 = val
	case stm32f3.USARTBRR:
		u.brr = val & 0xffff
	case stm32f3.USARTTDR:
		if u.cr1&(usartUE|usartTE) != usartUE|usartTE || u.txBusy > 0 {
			return
		}
		u.tdr = val & 0x1ff
		if u.txBusy = u.TxLatency; u.txBusy < 1 {
			u.txBusy = 1
		}
	}
}

// Tick implements Ticker.
func (u *USART) Tick() {
	var sent []byte
	u.lock.Lock()
	if u.txBusy > 0 {
		if u.txBusy--; u.txBusy == 0 {
			sent = append(sent, u.shiftOut())
		}
	}
	if !u.rxne && len(u.rxQueue) > 0 && u.cr1&(usartUE|usartRE) == usartUE|usartRE {
		u.rdr, u.rxQueue, u.rxne = uint32(u.rxQueue[0]), u.rxQueue[1:], true
	}
	sinks := u.sinks
	u.lock.Unlock()
	for _, b := range sent {
		for _, sink := range sinks {
			sink(b)
		}
	}
}

func (u *USART) shiftOut() byte {
	b := byte(u.tdr)
	u.tx = append(u.tx, b)
	return b
}

func (u *USART) isr() (val uint32) {
	if u.rxne {
		val |= usartRXNE
	}
	if u.txBusy == 0 {
		val |= usartTXE | usartTC
	}
	return
}

// Feed queues bytes on the receive line.
func (u *USART) Feed(data []byte) {
	u.lock.Lock()
	u.rxQueue = append(u.rxQueue, data...)
	u.lock.Unlock()
}

// OnTransmit registers fn to receive every transmitted byte. fn runs while
// the bus is busy and must not access the bus.
func (u *USART) OnTransmit(fn func(byte)) {
	u.lock.Lock()
	u.sinks = append(u.sinks, fn)
	u.lock.Unlock()
}

// Output returns everything transmitted so far.
func (u *USART) Output() []byte {
	u.lock.Lock()
	defer u.lock.Unlock()
	return append([]byte(nil), u.tx...)
}

// TakeOutput returns and clears the transmitted bytes.
func (u *USART) TakeOutput() []byte {
	u.lock.Lock()
	defer u.lock.Unlock()
	out := u.tx
	u.tx = nil
	return out
}

// Pending returns the number of received bytes not yet read by software.
func (u *USART) Pending() int {
	u.lock.Lock()
	defer u.lock.Unlock()
	n := len(u.rxQueue)
	if u.rxne {
		n++
	}
	return n
}

// PendingLine reports whether a complete line waits to be read.
func (u *USART) PendingLine() bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	return (u.rxne && byte(u.rdr) == '\n') || bytes.IndexByte(u.rxQueue, '\n') >= 0
}

// Enabled reports whether UE, RE and TE are set.
func (u *USART) Enabled() bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.cr1&(usartUE|usartRE|usartTE) == usartUE|usartRE|usartTE
}

// BaudDivisor returns BRR.
func (u *USART) BaudDivisor() uint32 {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.brr
}
