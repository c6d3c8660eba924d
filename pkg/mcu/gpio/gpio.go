// Package gpio drives output pins through the atomic bit set/reset register.
package gpio

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

const owner = "gpio.Port"

// ErrPinRange indicates a pin index outside the port.
var ErrPinRange = errors.New("pin out of range")

// Pin is a pin index within a port.
type Pin uint8

// PinOperationError is returned when a pin operation fails.
type PinOperationError struct {
	Port string
	Pin  Pin
	Op   string
	Err  error
}

// Error implements error.
func (e *PinOperationError) Error() string {
	return fmt.Sprintf("%s: %s pin %d: %v", e.Port, e.Op, e.Pin, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PinOperationError) Unwrap() error {
	return e.Err
}

// Port drives the pins of one GPIO port. It never reads ODR: every change
// is a single BSRR store, so updates to other pins of the port cannot be
// lost. A freed port fails every operation with reg.ErrReleased.
type Port struct {
	name  string
	block *reg.Block
	bsrr  *reg.Register
}

// New takes ownership of a GPIO block.
func New(block *reg.Block) (*Port, error) {
	bsrr, err := block.Register("BSRR")
	if err != nil {
		return nil, err
	}
	if err := block.Claim(owner); err != nil {
		return nil, err
	}
	return &Port{name: block.Name(), block: block, bsrr: bsrr}, nil
}

// TurnOn drives pin high.
func (p *Port) TurnOn(pin Pin) error {
	return p.drive("turn on", pin, stm32f3.BS[:])
}

// TurnOff drives pin low.
func (p *Port) TurnOff(pin Pin) error {
	return p.drive("turn off", pin, stm32f3.BR[:])
}

func (p *Port) drive(op string, pin Pin, fields []reg.Field) error {
	if p.block == nil {
		return &PinOperationError{Port: p.name, Pin: pin, Op: op, Err: reg.ErrReleased}
	}
	if int(pin) >= len(fields) {
		return &PinOperationError{Port: p.name, Pin: pin, Op: op, Err: ErrPinRange}
	}
	if err := p.bsrr.Write(func(w *reg.Writer) { w.SetBit(fields[pin]) }); err != nil {
		return &PinOperationError{Port: p.name, Pin: pin, Op: op, Err: err}
	}
	if glog.V(4) {
		glog.Infof("%s: %s pin %d", p.name, op, pin)
	}
	return nil
}

// Output returns a switch bound to pin.
func (p *Port) Output(pin Pin) (*Output, error) {
	if pin >= stm32f3.PinsPerPort {
		return nil, &PinOperationError{Port: p.name, Pin: pin, Op: "bind", Err: ErrPinRange}
	}
	return &Output{port: p, pin: pin}, nil
}

// Name returns the port name.
func (p *Port) Name() string { return p.name }

// Block returns the owned GPIO block, nil once freed.
func (p *Port) Block() *reg.Block { return p.block }

// Free releases the GPIO block and returns it. Freeing twice returns nil.
func (p *Port) Free() *reg.Block {
	block := p.block
	if block != nil {
		block.Release(owner)
		p.block, p.bsrr = nil, nil
	}
	return block
}

// Output is one pin of a port.
type Output struct {
	port *Port
	pin  Pin
}

// On drives the pin high.
func (o *Output) On() error { return o.port.TurnOn(o.pin) }

// Off drives the pin low.
func (o *Output) Off() error { return o.port.TurnOff(o.pin) }

// Pin returns the pin index.
func (o *Output) Pin() Pin { return o.pin }

func (o *Output) String() string {
	return fmt.Sprintf("%s%d", o.port.name, o.pin)
}
