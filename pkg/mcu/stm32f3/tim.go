package stm32f3

import (
	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/volatile"
)

// Basic timer TIM6.
const (
	TIM6Base uintptr = 0x4000_1000

	TIMCR1  uintptr = 0x00
	TIMDIER uintptr = 0x0C
	TIMSR   uintptr = 0x10
	TIMEGR  uintptr = 0x14
	TIMCNT  uintptr = 0x24
	TIMPSC  uintptr = 0x28
	TIMARR  uintptr = 0x2C

	// APB1Hz is the APB1 timer clock after reset (HSI, no PLL).
	APB1Hz uint32 = 8_000_000
)

// Basic timer fields.
var (
	CEN  = reg.Bit("CEN", 0, reg.ReadWrite)
	UDIS = reg.Bit("UDIS", 1, reg.ReadWrite)
	URS  = reg.Bit("URS", 2, reg.ReadWrite)
	OPM  = reg.Bit("OPM", 3, reg.ReadWrite)
	ARPE = reg.Bit("ARPE", 7, reg.ReadWrite)

	UIE = reg.Bit("UIE", 0, reg.ReadWrite)
	UDE = reg.Bit("UDE", 8, reg.ReadWrite)

	// UIF is set by hardware on update and cleared by writing 0.
	UIF = reg.Bit("UIF", 0, reg.ReadWrite)

	UG = reg.Bit("UG", 0, reg.WriteOnly)

	CNT    = reg.Bits("CNT", 0, 15, reg.ReadWrite)
	UIFCPY = reg.Bit("UIFCPY", 31, reg.ReadOnly)
	PSC    = reg.Bits("PSC", 0, 15, reg.ReadWrite)
	ARR    = reg.Bits("ARR", 0, 15, reg.ReadWrite)
)

// NewBasicTimer declares a basic timer block (TIM6/TIM7) at base.
func NewBasicTimer(bus volatile.Bus, name string, base uintptr) (*reg.Block, error) {
	return reg.NewBlock(bus, name, base,
		reg.Spec{Name: "CR1", Offset: TIMCR1, Access: reg.ReadWrite, Fields: []reg.Field{CEN, UDIS, URS, OPM, ARPE}},
		reg.Spec{Name: "DIER", Offset: TIMDIER, Access: reg.ReadWrite, Fields: []reg.Field{UIE, UDE}},
		reg.Spec{Name: "SR", Offset: TIMSR, Access: reg.ReadWrite, Fields: []reg.Field{UIF}},
		reg.Spec{Name: "EGR", Offset: TIMEGR, Access: reg.WriteOnly, Fields: []reg.Field{UG}},
		reg.Spec{Name: "CNT", Offset: TIMCNT, Access: reg.ReadWrite, Fields: []reg.Field{CNT, UIFCPY}},
		reg.Spec{Name: "PSC", Offset: TIMPSC, Access: reg.ReadWrite, Fields: []reg.Field{PSC}},
		reg.Spec{Name: "ARR", Offset: TIMARR, Access: reg.ReadWrite, Reset: 0xffff, Fields: []reg.Field{ARR}},
	)
}

// NewTIM6 declares TIM6.
func NewTIM6(bus volatile.Bus) (*reg.Block, error) {
	return NewBasicTimer(bus, "TIM6", TIM6Base)
}
