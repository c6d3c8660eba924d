// Package stm32f3 declares the register blocks of the STM32F303 peripherals
// used by the drivers, bit-exact to the reference manual (RM0316).
package stm32f3

import (
	"fmt"

	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/volatile"
)

// GPIO port E.
const (
	GPIOEBase uintptr = 0x4800_1000

	GPIOMODER  uintptr = 0x00
	GPIOOTYPER uintptr = 0x04
	GPIOIDR    uintptr = 0x10
	GPIOODR    uintptr = 0x14
	GPIOBSRR   uintptr = 0x18

	// PinsPerPort is the number of pins of a GPIO port.
	PinsPerPort = 16
)

// Pin modes of the MODER fields.
const (
	ModeInput  uint32 = 0
	ModeOutput uint32 = 1
	ModeAlt    uint32 = 2
	ModeAnalog uint32 = 3
)

var (
	// MODER holds the 2-bit mode field of every pin.
	MODER [PinsPerPort]reg.Field
	// OT holds the output type bits.
	OT [PinsPerPort]reg.Field
	// IDR holds the input data bits.
	IDR [PinsPerPort]reg.Field
	// ODR holds the output data bits.
	ODR [PinsPerPort]reg.Field
	// BS are the BSRR bits driving pins high.
	BS [PinsPerPort]reg.Field
	// BR are the BSRR bits driving pins low.
	BR [PinsPerPort]reg.Field
)

func init() {
	for n := uint8(0); n < PinsPerPort; n++ {
		MODER[n] = reg.Bits(fmt.Sprintf("MODER%d", n), 2*n, 2*n+1, reg.ReadWrite)
		OT[n] = reg.Bit(fmt.Sprintf("OT%d", n), n, reg.ReadWrite)
		IDR[n] = reg.Bit(fmt.Sprintf("IDR%d", n), n, reg.ReadOnly)
		ODR[n] = reg.Bit(fmt.Sprintf("ODR%d", n), n, reg.ReadWrite)
		BS[n] = reg.Bit(fmt.Sprintf("BS%d", n), n, reg.WriteOnly)
		BR[n] = reg.Bit(fmt.Sprintf("BR%d", n), n+PinsPerPort, reg.WriteOnly)
	}
}

// NewGPIO declares a GPIO port block at base.
func NewGPIO(bus volatile.Bus, name string, base uintptr) (*reg.Block, error) {
	return reg.NewBlock(bus, name, base,
		reg.Spec{Name: "MODER", Offset: GPIOMODER, Access: reg.ReadWrite, Fields: MODER[:]},
		reg.Spec{Name: "OTYPER", Offset: GPIOOTYPER, Access: reg.ReadWrite, Fields: OT[:]},
		reg.Spec{Name: "IDR", Offset: GPIOIDR, Access: reg.ReadOnly, Fields: IDR[:]},
		reg.Spec{Name: "ODR", Offset: GPIOODR, Access: reg.ReadWrite, Fields: ODR[:]},
		reg.Spec{Name: "BSRR", Offset: GPIOBSRR, Access: reg.WriteOnly, Fields: append(BS[:], BR[:]...)},
	)
}

// NewGPIOE declares GPIO port E.
func NewGPIOE(bus volatile.Bus) (*reg.Block, error) {
	return NewGPIO(bus, "GPIOE", GPIOEBase)
}
