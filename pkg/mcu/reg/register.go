// Package reg models memory-mapped registers as named, permission checked
// bit fields.
//
// All hardware access goes through a volatile.Bus. A register never lets a
// reserved bit (one not covered by a declared field) or a read-only field
// reach the bus: such writes fail with *InvalidFieldError before any
// transaction happens.
package reg

import (
	"fmt"

	"github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/mcu/volatile"
)

// Register is a 32-bit register at a fixed address.
type Register struct {
	name   string
	addr   uintptr
	access Access
	reset  uint32
	fields []Field

	readable uint32
	writable uint32
	bus      volatile.Bus
}

// NewRegister declares a register. reset is the value written to writable
// fields a Write leaves unassigned.
func NewRegister(bus volatile.Bus, name string, addr uintptr, access Access, reset uint32, fields ...Field) (*Register, error) {
	r := &Register{
		name:   name,
		addr:   addr,
		access: access,
		bus:    bus,
		fields: make([]Field, 0, len(fields)),
	}
	var errs framework.AggregatedError
	if addr%4 != 0 {
		errs.Add(fmt.Errorf("address %#x not word aligned", addr))
	}
	if access&^ReadWrite != 0 || access == 0 {
		errs.Add(fmt.Errorf("invalid access %v", access))
	}
	var used uint32
	names := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := f.validate(); err != nil {
			errs.Add(err)
			continue
		}
		if names[f.Name] {
			errs.Add(fmt.Errorf("duplicated field %s", f.Name))
			continue
		}
		if used&f.Mask() != 0 {
			errs.Add(fmt.Errorf("field %v overlaps another field", f))
			continue
		}
		if f.Access&^access != 0 {
			errs.Add(fmt.Errorf("field %v access %v exceeds register access %v", f, f.Access, access))
			continue
		}
		names[f.Name] = true
		used |= f.Mask()
		r.fields = append(r.fields, f)
		if f.Access.CanRead() {
			r.readable |= f.Mask()
		}
		if f.Access.CanWrite() {
			r.writable |= f.Mask()
		}
	}
	if reset&^r.writable&^r.readable != 0 {
		errs.Add(fmt.Errorf("reset value %#08x sets reserved bits", reset))
	}
	r.reset = reset & r.writable
	if err := errs.Aggregate(); err != nil {
		return nil, &LayoutError{Name: name, Reason: err.Error()}
	}
	return r, nil
}

// Name returns the register name.
func (r *Register) Name() string { return r.name }

// Addr returns the absolute address.
func (r *Register) Addr() uintptr { return r.addr }

// Access returns the register permission.
func (r *Register) Access() Access { return r.access }

// Fields returns the declared fields in declaration order.
func (r *Register) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Field looks up a declared field by name.
func (r *Register) Field(name string) (Field, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ReservedMask returns the bits not covered by any field.
func (r *Register) ReservedMask() uint32 {
	return ^(r.readable | r.writable)
}

// WritableMask returns the bits of writable fields.
func (r *Register) WritableMask() uint32 {
	return r.writable
}

// Read performs one load.
func (r *Register) Read() (Value, error) {
	if !r.access.CanRead() {
		return Value{}, r.invalid("", "register is write-only")
	}
	return Value{reg: r, raw: r.bus.Load32(r.addr)}, nil
}

// Write stages field assignments in a Writer and applies them as one
// store. Writable fields not assigned take the reset value. The Writer
// must not be retained after fn returns.
func (r *Register) Write(fn func(w *Writer)) error {
	if !r.access.CanWrite() {
		return r.invalid("", "register is read-only")
	}
	w := &Writer{reg: r, val: r.reset}
	fn(w)
	return w.apply()
}

// Modify performs one load, lets fn stage changes on top of the read-write
// bits read back, and one store. Read-only and reserved bits are never
// written back, and write-only fields start from their reset value since
// what the bus returns for them is meaningless.
func (r *Register) Modify(fn func(v Value, w *Writer)) error {
	if r.access != ReadWrite {
		return r.invalid("", "modify requires a read-write register")
	}
	v := Value{reg: r, raw: r.bus.Load32(r.addr)}
	w := &Writer{reg: r, val: v.raw&r.readable&r.writable | r.reset&^r.readable}
	fn(v, w)
	return w.apply()
}

// WriteRaw stores val as is, after checking it only covers writable fields.
func (r *Register) WriteRaw(val uint32) error {
	if !r.access.CanWrite() {
		return r.invalid("", "register is read-only")
	}
	if bad := val &^ r.writable; bad != 0 {
		return r.invalid("", fmt.Sprintf("value %#08x sets reserved or read-only bits %#08x", val, bad))
	}
	r.bus.Store32(r.addr, val)
	return nil
}

// String implements fmt.Stringer.
func (r *Register) String() string {
	return fmt.Sprintf("%s@%#08x(%v)", r.name, r.addr, r.access)
}

func (r *Register) lookup(f Field) error {
	declared, ok := r.Field(f.Name)
	if !ok || declared != f {
		return r.invalid(f.Name, "field not declared on register")
	}
	return nil
}

func (r *Register) invalid(field, reason string) *InvalidFieldError {
	return &InvalidFieldError{Register: r.name, Field: field, Reason: reason}
}

// Value is a snapshot of a register read.
type Value struct {
	reg *Register
	raw uint32
}

// Raw returns the full register value.
func (v Value) Raw() uint32 { return v.raw }

// Get extracts a field.
func (v Value) Get(f Field) (uint32, error) {
	if err := v.reg.lookup(f); err != nil {
		return 0, err
	}
	if !f.Access.CanRead() {
		return 0, v.reg.invalid(f.Name, "field is write-only")
	}
	return (v.raw & f.Mask()) >> f.Lo, nil
}

// IsSet reports whether any bit of the field is set.
func (v Value) IsSet(f Field) (bool, error) {
	val, err := v.Get(f)
	return val != 0, err
}

// Writer is a staged, in-memory set of field assignments for one register.
// The first invalid assignment is remembered and aborts the store.
type Writer struct {
	reg *Register
	val uint32
	err error
}

// Set assigns a field. val must fit the field width.
func (w *Writer) Set(f Field, val uint32) *Writer {
	if w.err != nil {
		return w
	}
	if err := w.reg.lookup(f); err != nil {
		w.err = err
		return w
	}
	if !f.Access.CanWrite() {
		w.err = w.reg.invalid(f.Name, "field is read-only")
		return w
	}
	if val > f.Max() {
		w.err = w.reg.invalid(f.Name, fmt.Sprintf("value %#x exceeds %d-bit field", val, f.Width()))
		return w
	}
	w.val = w.val&^f.Mask() | val<<f.Lo
	return w
}

// SetBit assigns all ones to the field.
func (w *Writer) SetBit(f Field) *Writer {
	return w.Set(f, f.Max())
}

// ClearBit assigns zero to the field.
func (w *Writer) ClearBit(f Field) *Writer {
	return w.Set(f, 0)
}

// Err returns the first invalid assignment.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) apply() error {
	if w.err != nil {
		return w.err
	}
	w.reg.bus.Store32(w.reg.addr, w.val)
	return nil
}
