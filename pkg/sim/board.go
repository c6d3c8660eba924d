package sim

import (
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
)

// peripheralSize is the address window of every peripheral.
const peripheralSize uintptr = 0x400

// Board is a simulated STM32F3 with GPIOE, TIM6 and USART1 at their
// hardware addresses.
type Board struct {
	Bus    *Bus
	GPIOE  *GPIO
	TIM6   *BasicTimer
	USART1 *USART
}

// NewBoard creates a board in reset state.
func NewBoard() *Board {
	b := &Board{
		Bus:    NewBus(),
		GPIOE:  NewGPIO(),
		TIM6:   NewBasicTimer(),
		USART1: NewUSART(),
	}
	b.mustMap("GPIOE", stm32f3.GPIOEBase, b.GPIOE)
	b.mustMap("TIM6", stm32f3.TIM6Base, b.TIM6)
	b.mustMap("USART1", stm32f3.USART1Base, b.USART1)
	return b
}

func (b *Board) mustMap(name string, base uintptr, dev Device) {
	if err := b.Bus.Map(name, base, peripheralSize, dev); err != nil {
		panic(err)
	}
}
