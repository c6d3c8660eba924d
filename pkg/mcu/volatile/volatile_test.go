package volatile

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMMIO(t *testing.T) {
	words := make([]uint32, 4)
	addr := uintptr(unsafe.Pointer(&words[0]))
	var bus Bus = MMIO{}

	bus.Store32(addr, 0xdeadbeef)
	bus.Store32(addr+4, 1<<9)
	require.Equal(t, uint32(0xdeadbeef), bus.Load32(addr))
	require.Equal(t, uint32(1<<9), bus.Load32(addr+4))
	require.Equal(t, uint32(0), bus.Load32(addr+8))
	require.Equal(t, []uint32{0xdeadbeef, 1 << 9, 0, 0}, words)
	runtime.KeepAlive(words)
}
