// Package board brings up the STM32F3DISCOVERY peripherals and hands out
// drivers owning them.
package board

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/mcu/gpio"
	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
	"github.com/robotalks/mcu.go/pkg/mcu/timer"
	"github.com/robotalks/mcu.go/pkg/mcu/volatile"
)

// ErrBaudRate indicates the baud rate cannot be derived from the clock.
var ErrBaudRate = errors.New("unsupported baud rate")

// CompassPins are the LEDs on port E, clockwise from north.
var CompassPins = [...]gpio.Pin{9, 10, 11, 12, 13, 14, 15, 8}

// CompassNames labels CompassPins.
var CompassNames = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Config is the clock tree as left by reset plus the serial line settings.
type Config struct {
	// ClockHz is the TIM6 kernel clock (APB1).
	ClockHz uint32
	// UARTClockHz is the USART1 kernel clock (APB2).
	UARTClockHz uint32
	// BaudRate of USART1.
	BaudRate uint32
}

// DefaultConfig matches the board after reset, with the serial line at
// 115200 baud.
var DefaultConfig = Config{
	ClockHz:     stm32f3.APB1Hz,
	UARTClockHz: stm32f3.APB2Hz,
	BaudRate:    115200,
}

// Board holds the drivers of the initialized peripherals.
type Board struct {
	GPIO   *gpio.Port
	Delay  *timer.Delay
	Serial *serial.Port
	// Leds are the compass LEDs in CompassPins order.
	Leds [len(CompassPins)]*gpio.Output
}

// Init declares the register blocks on bus, builds the drivers owning them
// and configures the peripherals. It fails with reg.ErrBlockOwned, leaving
// the hardware untouched, while another Board holds the same bus.
func Init(bus volatile.Bus, conf Config) (*Board, error) {
	if conf.BaudRate == 0 || conf.UARTClockHz < conf.BaudRate {
		return nil, fmt.Errorf("%d baud from %d Hz: %w", conf.BaudRate, conf.UARTClockHz, ErrBaudRate)
	}
	gpioe, err := stm32f3.NewGPIOE(bus)
	if err != nil {
		return nil, err
	}
	tim6, err := stm32f3.NewTIM6(bus)
	if err != nil {
		return nil, err
	}
	usart1, err := stm32f3.NewUSART1(bus)
	if err != nil {
		return nil, err
	}

	b := &Board{}
	if b.GPIO, err = gpio.New(gpioe); err != nil {
		return nil, err
	}
	for n, pin := range CompassPins {
		if b.Leds[n], err = b.GPIO.Output(pin); err != nil {
			b.Free()
			return nil, err
		}
	}
	if b.Delay, err = timer.New(tim6, timer.Config{ClockHz: conf.ClockHz}); err != nil {
		b.Free()
		return nil, err
	}
	if b.Serial, err = serial.New(usart1); err != nil {
		b.Free()
		return nil, err
	}

	// Configure only once every block is owned.
	if err := initLeds(gpioe); err != nil {
		b.Free()
		return nil, fmt.Errorf("init %s: %w", gpioe.Name(), err)
	}
	if err := initSerial(usart1, conf); err != nil {
		b.Free()
		return nil, fmt.Errorf("init %s: %w", usart1.Name(), err)
	}
	glog.Infof("board ready: timer %d Hz, %s %d baud", conf.ClockHz, usart1.Name(), conf.BaudRate)
	return b, nil
}

// initLeds switches the compass pins to push-pull outputs, leaving the
// other pins of the port untouched.
func initLeds(block *reg.Block) error {
	moder, err := block.Register("MODER")
	if err != nil {
		return err
	}
	return moder.Modify(func(_ reg.Value, w *reg.Writer) {
		for _, pin := range CompassPins {
			w.Set(stm32f3.MODER[pin], stm32f3.ModeOutput)
		}
	})
}

// initSerial disables the transceiver while programming the baud rate.
func initSerial(block *reg.Block, conf Config) error {
	regs, err := block.Lookup("CR1", "BRR")
	if err != nil {
		return err
	}
	cr1, brr := regs[0], regs[1]
	if err := cr1.Write(func(w *reg.Writer) { w.ClearBit(stm32f3.UE) }); err != nil {
		return err
	}
	div := stm32f3.BaudDivisor(conf.UARTClockHz, conf.BaudRate)
	if err := brr.Write(func(w *reg.Writer) { w.Set(stm32f3.BRR, div) }); err != nil {
		return fmt.Errorf("%d baud from %d Hz: %w", conf.BaudRate, conf.UARTClockHz, ErrBaudRate)
	}
	return cr1.Write(func(w *reg.Writer) {
		w.SetBit(stm32f3.UE).SetBit(stm32f3.RE).SetBit(stm32f3.TE)
	})
}

// Free releases every block owned by the drivers.
func (b *Board) Free() {
	if b.GPIO != nil {
		b.GPIO.Free()
	}
	if b.Delay != nil {
		b.Delay.Free()
	}
	if b.Serial != nil {
		b.Serial.Close()
		b.Serial.Free()
	}
}

// Switches returns the compass LEDs as switches.
func (b *Board) Switches() []Switch {
	switches := make([]Switch, len(b.Leds))
	for n, led := range b.Leds {
		switches[n] = led
	}
	return switches
}

// Switch is an on/off output.
type Switch interface {
	On() error
	Off() error
}

// Blink turns every LED on then off, waiting ms between the two. Errors of
// individual LEDs are aggregated.
func (b *Board) Blink(ms uint16) error {
	var errs framework.AggregatedError
	for _, led := range b.Leds {
		errs.Add(led.On())
	}
	errs.Add(b.Delay.DelayMs(ms))
	for _, led := range b.Leds {
		errs.Add(led.Off())
	}
	return errs.Aggregate()
}
