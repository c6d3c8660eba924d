package reg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSpecs() []Spec {
	return []Spec{
		{Name: "DATA", Offset: 0x14, Access: ReadWrite, Fields: []Field{Bits("DATA", 0, 15, ReadWrite)}},
		{Name: "CTRL", Offset: 0x00, Access: ReadWrite, Fields: []Field{Bit("EN", 0, ReadWrite)}},
		{Name: "SET", Offset: 0x18, Access: WriteOnly, Fields: []Field{Bits("SET", 0, 15, WriteOnly)}},
	}
}

func TestNewBlock(t *testing.T) {
	b, err := NewBlock(newTestBus(), "PORT", 0x4800_1000, testSpecs()...)
	require.NoError(t, err)
	require.Equal(t, "PORT", b.Name())
	require.Equal(t, uintptr(0x4800_1000), b.Base())

	var addrs []uintptr
	for _, r := range b.Registers() {
		addrs = append(addrs, r.Addr())
	}
	require.Equal(t, []uintptr{0x4800_1000, 0x4800_1014, 0x4800_1018}, addrs)

	r, err := b.Register("SET")
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4800_1018), r.Addr())
	require.Equal(t, WriteOnly, r.Access())

	_, err = b.Register("NOPE")
	require.True(t, errors.Is(err, ErrInvalidField))

	regs, err := b.Lookup("CTRL", "DATA")
	require.NoError(t, err)
	require.Equal(t, "CTRL", regs[0].Name())
	require.Equal(t, "DATA", regs[1].Name())
	_, err = b.Lookup("CTRL", "NOPE")
	require.Error(t, err)
}

func TestNewBlockRejectsCollisions(t *testing.T) {
	testCases := []struct {
		name  string
		specs []Spec
	}{
		{"same offset", append(testSpecs(), Spec{Name: "ALIAS", Offset: 0x14, Access: ReadOnly})},
		{"same name", append(testSpecs(), Spec{Name: "DATA", Offset: 0x20, Access: ReadOnly})},
		{"bad register", append(testSpecs(), Spec{Name: "ODD", Offset: 0x21, Access: ReadOnly})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBlock(newTestBus(), "PORT", 0x4800_1000, tc.specs...)
			var layoutErr *LayoutError
			require.True(t, errors.As(err, &layoutErr), "got %v", err)
		})
	}
}

func TestBlockOwnership(t *testing.T) {
	b, err := NewBlock(newTestBus(), "PORT", 0x4800_1000, testSpecs()...)
	require.NoError(t, err)
	require.Empty(t, b.Owner())
	require.NoError(t, b.Claim("leds"))
	require.Equal(t, "leds", b.Owner())
	require.True(t, errors.Is(b.Claim("other"), ErrBlockOwned))
	b.Release("other")
	require.Equal(t, "leds", b.Owner())
	b.Release("leds")
	require.NoError(t, b.Claim("other"))
}

func TestBlockOwnershipFollowsAddress(t *testing.T) {
	bus := newTestBus()
	first, err := NewBlock(bus, "PORT", 0x4800_1000, testSpecs()...)
	require.NoError(t, err)
	second, err := NewBlock(bus, "PORT", 0x4800_1000, testSpecs()...)
	require.NoError(t, err)
	elsewhere, err := NewBlock(bus, "PORT2", 0x4800_2000, testSpecs()...)
	require.NoError(t, err)
	otherBus, err := NewBlock(newTestBus(), "PORT", 0x4800_1000, testSpecs()...)
	require.NoError(t, err)

	require.NoError(t, first.Claim("leds"))
	require.Equal(t, "leds", second.Owner())
	require.True(t, errors.Is(second.Claim("leds"), ErrBlockOwned))
	second.Release("leds")
	require.Equal(t, "leds", first.Owner())
	require.NoError(t, elsewhere.Claim("other"))
	require.NoError(t, otherBus.Claim("other"))

	first.Release("leds")
	require.NoError(t, second.Claim("other"))
	second.Release("other")
	elsewhere.Release("other")
	otherBus.Release("other")
}
