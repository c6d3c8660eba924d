// Package serial implements a polling USART driver and the line framing
// protocol layered on it.
package serial

import (
	"errors"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

const owner = "serial.Port"

// ErrClosed is returned by waits on a closed Port.
var ErrClosed = errors.New("serial port closed")

// Port sends and receives bytes by polling the USART status flags. Every
// wait is unbounded: a transceiver that never becomes ready blocks the
// caller forever. A freed Port fails every operation with reg.ErrReleased.
type Port struct {
	name  string
	block atomic.Pointer[reg.Block]
	isr   *reg.Register
	rdr   *reg.Register
	tdr   *reg.Register

	closed atomic.Bool
}

// New takes ownership of a USART block. The transceiver is expected to be
// configured and enabled already.
func New(block *reg.Block) (*Port, error) {
	regs, err := block.Lookup("ISR", "RDR", "TDR")
	if err != nil {
		return nil, err
	}
	if err := block.Claim(owner); err != nil {
		return nil, err
	}
	p := &Port{name: block.Name(), isr: regs[0], rdr: regs[1], tdr: regs[2]}
	p.block.Store(block)
	return p, nil
}

func (p *Port) waitFor(flag reg.Field) error {
	for {
		if p.block.Load() == nil {
			return reg.ErrReleased
		}
		if p.closed.Load() {
			return ErrClosed
		}
		v, err := p.isr.Read()
		if err != nil {
			return err
		}
		set, err := v.IsSet(flag)
		if err != nil || set {
			return err
		}
	}
}

// SendByte waits for TXE and writes b to TDR.
func (p *Port) SendByte(b byte) error {
	if err := p.waitFor(stm32f3.TXE); err != nil {
		return err
	}
	return p.tdr.Write(func(w *reg.Writer) { w.Set(stm32f3.TDR, uint32(b)) })
}

// Send transmits data in order.
func (p *Port) Send(data []byte) error {
	_, err := p.Write(data)
	return err
}

// Write implements io.Writer.
func (p *Port) Write(data []byte) (int, error) {
	for n, b := range data {
		if err := p.SendByte(b); err != nil {
			return n, err
		}
	}
	if glog.V(4) {
		glog.Infof("%s: sent %d bytes", p.name, len(data))
	}
	return len(data), nil
}

// WriteString implements io.StringWriter.
func (p *Port) WriteString(s string) (int, error) {
	for n := 0; n < len(s); n++ {
		if err := p.SendByte(s[n]); err != nil {
			return n, err
		}
	}
	return len(s), nil
}

// Flush waits until the last byte has left the shift register.
func (p *Port) Flush() error {
	return p.waitFor(stm32f3.TC)
}

// ReceiveByte waits for RXNE and reads RDR, which clears the flag.
func (p *Port) ReceiveByte() (byte, error) {
	if err := p.waitFor(stm32f3.RXNE); err != nil {
		return 0, err
	}
	v, err := p.rdr.Read()
	if err != nil {
		return 0, err
	}
	b, err := v.Get(stm32f3.RDR)
	return byte(b), err
}

// ReadByte implements io.ByteReader.
func (p *Port) ReadByte() (byte, error) {
	return p.ReceiveByte()
}

// Name returns the name of the transceiver.
func (p *Port) Name() string {
	return p.name
}

// Close aborts pending waits and fails later ones with ErrClosed. The
// block stays claimed until Free.
func (p *Port) Close() error {
	p.closed.Store(true)
	return nil
}

// Block returns the owned USART block, nil once freed.
func (p *Port) Block() *reg.Block {
	return p.block.Load()
}

// Free releases the USART block and returns it. Pending waits return
// reg.ErrReleased. Freeing twice returns nil.
func (p *Port) Free() *reg.Block {
	block := p.block.Swap(nil)
	if block != nil {
		block.Release(owner)
	}
	return block
}
