package reg

import "fmt"

// Width is the width in bits of every register.
const Width = 32

// Access is the permission of a register or a field.
type Access uint8

// Access permissions.
const (
	ReadOnly  Access = 1 << iota
	WriteOnly
	ReadWrite = ReadOnly | WriteOnly
)

// CanRead reports whether reads are permitted.
func (a Access) CanRead() bool {
	return a&ReadOnly != 0
}

// CanWrite reports whether writes are permitted.
func (a Access) CanWrite() bool {
	return a&WriteOnly != 0
}

// String implements fmt.Stringer.
func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "r"
	case WriteOnly:
		return "w"
	case ReadWrite:
		return "rw"
	}
	return fmt.Sprintf("Access(%d)", uint8(a))
}

// Field is a named contiguous bit range [Lo, Hi] of a register.
type Field struct {
	Name   string
	Lo     uint8
	Hi     uint8
	Access Access
}

// Bit declares a single-bit field.
func Bit(name string, n uint8, access Access) Field {
	return Field{Name: name, Lo: n, Hi: n, Access: access}
}

// Bits declares a multi-bit field.
func Bits(name string, lo, hi uint8, access Access) Field {
	return Field{Name: name, Lo: lo, Hi: hi, Access: access}
}

// Width returns the number of bits covered by the field.
func (f Field) Width() uint {
	return uint(f.Hi) - uint(f.Lo) + 1
}

// Mask returns the field bits in register position.
func (f Field) Mask() uint32 {
	return f.Max() << f.Lo
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 {
	if f.Width() >= Width {
		return ^uint32(0)
	}
	return 1<<f.Width() - 1
}

func (f Field) String() string {
	if f.Lo == f.Hi {
		return fmt.Sprintf("%s[%d]", f.Name, f.Lo)
	}
	return fmt.Sprintf("%s[%d:%d]", f.Name, f.Hi, f.Lo)
}

func (f Field) validate() error {
	switch {
	case f.Name == "":
		return fmt.Errorf("unnamed field at bit %d", f.Lo)
	case f.Hi < f.Lo:
		return fmt.Errorf("field %s: hi bit %d below lo bit %d", f.Name, f.Hi, f.Lo)
	case f.Hi >= Width:
		return fmt.Errorf("field %s: bit %d out of range", f.Name, f.Hi)
	case f.Access&^ReadWrite != 0 || f.Access == 0:
		return fmt.Errorf("field %s: invalid access %v", f.Name, f.Access)
	}
	return nil
}
