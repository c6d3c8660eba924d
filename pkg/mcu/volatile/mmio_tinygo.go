//go:build tinygo

package volatile

import (
	"runtime/volatile"
	"unsafe"
)

func load32(addr uintptr) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(addr)))
}

func store32(addr uintptr, val uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(addr)), val)
}
