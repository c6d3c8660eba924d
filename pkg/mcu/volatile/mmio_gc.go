//go:build !tinygo

package volatile

import (
	"sync/atomic"
	"unsafe"
)

// The gc toolchain has no volatile qualifier. Atomic loads and stores are
// never removed, combined or moved across each other by the compiler, which
// gives the same guarantee for 32-bit aligned registers.

// Register addresses are not Go allocations, so -race pointer checks are
// disabled on the accessors.

//go:nocheckptr
func load32(addr uintptr) uint32 {
	return atomic.LoadUint32(word(addr))
}

//go:nocheckptr
func store32(addr uintptr, val uint32) {
	atomic.StoreUint32(word(addr), val)
}

// word reinterprets the bits of addr as a pointer.

//go:nocheckptr
func word(addr uintptr) *uint32 {
	return *(**uint32)(unsafe.Pointer(&addr))
}
