// Package volatile provides the single trusted boundary to memory-mapped
// hardware.
package volatile

// Every Load32/Store32 is exactly one bus transaction. Implementations must
// never merge, elide or reorder transactions against each other, even when
// a compiler could prove the observable Go result unchanged: busy-wait
// polling on a status flag and repeated writes to a set/reset register are
// only correct under this contract.
//
// Access to an address with no backing register is a hardware fault. It is
// not reported through this interface; control passes to the fault routine
// of the platform (a HardFault handler on silicon, the Bus fault routine in
// package sim).

// Bus performs 32-bit register transactions.
type Bus interface {
	Load32(addr uintptr) uint32
	Store32(addr uintptr, val uint32)
}

// MMIO is the Bus backed by the physical address space.
// It must only be used on the target where the addresses are real
// peripheral registers.
type MMIO struct{}

// Load32 implements Bus.
func (MMIO) Load32(addr uintptr) uint32 {
	return load32(addr)
}

// Store32 implements Bus.
func (MMIO) Store32(addr uintptr, val uint32) {
	store32(addr, val)
}
