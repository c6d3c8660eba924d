package stm32f3

import (
	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/volatile"
)

// USART1.
const (
	USART1Base uintptr = 0x4001_3800

	USARTCR1 uintptr = 0x00
	USARTBRR uintptr = 0x0C
	USARTISR uintptr = 0x1C
	USARTICR uintptr = 0x20
	USARTRDR uintptr = 0x24
	USARTTDR uintptr = 0x28

	// APB2Hz is the USART1 kernel clock after reset.
	APB2Hz uint32 = 8_000_000
)

// USART fields.
var (
	UE    = reg.Bit("UE", 0, reg.ReadWrite)
	RE    = reg.Bit("RE", 2, reg.ReadWrite)
	TE    = reg.Bit("TE", 3, reg.ReadWrite)
	M0    = reg.Bit("M0", 12, reg.ReadWrite)
	OVER8 = reg.Bit("OVER8", 15, reg.ReadWrite)

	BRR = reg.Bits("BRR", 0, 15, reg.ReadWrite)

	PE   = reg.Bit("PE", 0, reg.ReadOnly)
	FE   = reg.Bit("FE", 1, reg.ReadOnly)
	NF   = reg.Bit("NF", 2, reg.ReadOnly)
	ORE  = reg.Bit("ORE", 3, reg.ReadOnly)
	IDLE = reg.Bit("IDLE", 4, reg.ReadOnly)
	RXNE = reg.Bit("RXNE", 5, reg.ReadOnly)
	TC   = reg.Bit("TC", 6, reg.ReadOnly)
	TXE  = reg.Bit("TXE", 7, reg.ReadOnly)
	BUSY = reg.Bit("BUSY", 16, reg.ReadOnly)

	PECF   = reg.Bit("PECF", 0, reg.WriteOnly)
	FECF   = reg.Bit("FECF", 1, reg.WriteOnly)
	NCF    = reg.Bit("NCF", 2, reg.WriteOnly)
	ORECF  = reg.Bit("ORECF", 3, reg.WriteOnly)
	IDLECF = reg.Bit("IDLECF", 4, reg.WriteOnly)
	TCCF   = reg.Bit("TCCF", 6, reg.WriteOnly)

	RDR = reg.Bits("RDR", 0, 8, reg.ReadOnly)
	TDR = reg.Bits("TDR", 0, 8, reg.ReadWrite)
)

// NewUSART declares a USART block at base.
func NewUSART(bus volatile.Bus, name string, base uintptr) (*reg.Block, error) {
	return reg.NewBlock(bus, name, base,
		reg.Spec{Name: "CR1", Offset: USARTCR1, Access: reg.ReadWrite, Fields: []reg.Field{UE, RE, TE, M0, OVER8}},
		reg.Spec{Name: "BRR", Offset: USARTBRR, Access: reg.ReadWrite, Fields: []reg.Field{BRR}},
		reg.Spec{Name: "ISR", Offset: USARTISR, Access: reg.ReadOnly, Fields: []reg.Field{PE, FE, NF, ORE, IDLE, RXNE, TC, TXE, BUSY}},
		reg.Spec{Name: "ICR", Offset: USARTICR, Access: reg.WriteOnly, Fields: []reg.Field{PECF, FECF, NCF, ORECF, IDLECF, TCCF}},
		reg.Spec{Name: "RDR", Offset: USARTRDR, Access: reg.ReadOnly, Fields: []reg.Field{RDR}},
		reg.Spec{Name: "TDR", Offset: USARTTDR, Access: reg.ReadWrite, Fields: []reg.Field{TDR}},
	)
}

// NewUSART1 declares USART1.
func NewUSART1(bus volatile.Bus) (*reg.Block, error) {
	return NewUSART(bus, "USART1", USART1Base)
}

// BaudDivisor computes BRR for 16x oversampling, rounded to nearest.
func BaudDivisor(clockHz, baud uint32) uint32 {
	return (clockHz + baud/2) / baud
}
