package reg

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/mcu/volatile"
)

// Spec declares one register of a block.
type Spec struct {
	Name   string
	Offset uintptr
	Access Access
	Reset  uint32
	Fields []Field
}

// Block is the register set of one peripheral, at fixed offsets from a base
// address. The peripheral has at most one owner: drivers Claim it when they
// are built and Release it when they hand it back. Ownership belongs to the
// bus address, so blocks declared twice over the same peripheral share it.
type Block struct {
	bus    volatile.Bus
	name   string
	base   uintptr
	regs   []*Register
	byName map[string]*Register
}

type claimKey struct {
	bus  interface{}
	base uintptr
}

type claim struct {
	owner string
	block *Block
}

var claims = struct {
	sync.Mutex
	held map[claimKey]claim
}{held: make(map[claimKey]claim)}

// NewBlock declares a register block.
func NewBlock(bus volatile.Bus, name string, base uintptr, specs ...Spec) (*Block, error) {
	b := &Block{
		bus:    bus,
		name:   name,
		base:   base,
		byName: make(map[string]*Register, len(specs)),
	}
	var errs framework.AggregatedError
	offsets := make(map[uintptr]string, len(specs))
	for _, spec := range specs {
		if other, exists := offsets[spec.Offset]; exists {
			errs.Add(fmt.Errorf("%s at offset %#x collides with %s", spec.Name, spec.Offset, other))
			continue
		}
		if _, exists := b.byName[spec.Name]; exists {
			errs.Add(fmt.Errorf("duplicated register %s", spec.Name))
			continue
		}
		r, err := NewRegister(bus, spec.Name, base+spec.Offset, spec.Access, spec.Reset, spec.Fields...)
		if err != nil {
			errs.Add(err)
			continue
		}
		offsets[spec.Offset] = spec.Name
		b.byName[spec.Name] = r
		b.regs = append(b.regs, r)
	}
	if err := errs.Aggregate(); err != nil {
		return nil, &LayoutError{Name: name, Reason: err.Error()}
	}
	sort.Slice(b.regs, func(i, j int) bool { return b.regs[i].addr < b.regs[j].addr })
	return b, nil
}

// Name returns the peripheral name.
func (b *Block) Name() string { return b.name }

// Base returns the base address.
func (b *Block) Base() uintptr { return b.base }

// Registers returns the registers ordered by address.
func (b *Block) Registers() []*Register {
	return append([]*Register(nil), b.regs...)
}

// Register looks up a register by name.
func (b *Block) Register(name string) (*Register, error) {
	if r, ok := b.byName[name]; ok {
		return r, nil
	}
	return nil, &InvalidFieldError{Register: b.name + "." + name, Reason: "register not declared on block"}
}

func (b *Block) key() claimKey {
	// Buses that can't be map keys only share claims through the same block.
	if t := reflect.TypeOf(b.bus); t == nil || !t.Comparable() {
		return claimKey{bus: b, base: b.base}
	}
	return claimKey{bus: b.bus, base: b.base}
}

// Claim takes ownership of the peripheral behind the block.
func (b *Block) Claim(owner string) error {
	claims.Lock()
	defer claims.Unlock()
	k := b.key()
	if c, ok := claims.held[k]; ok {
		return fmt.Errorf("%s claimed by %s: %w", b.name, c.owner, ErrBlockOwned)
	}
	claims.held[k] = claim{owner: owner, block: b}
	return nil
}

// Release gives up ownership. Releasing a peripheral held by someone else,
// or claimed through another block, is a no-op.
func (b *Block) Release(owner string) {
	claims.Lock()
	k := b.key()
	if c, ok := claims.held[k]; ok && c.owner == owner && c.block == b {
		delete(claims.held, k)
	}
	claims.Unlock()
}

// Owner returns the current owner of the peripheral, empty when unclaimed.
func (b *Block) Owner() string {
	claims.Lock()
	defer claims.Unlock()
	return claims.held[b.key()].owner
}

// Lookup resolves registers by name in one call, as drivers need during
// construction.
func (b *Block) Lookup(names ...string) ([]*Register, error) {
	regs := make([]*Register, len(names))
	var errs framework.AggregatedError
	for n, name := range names {
		r, err := b.Register(name)
		errs.Add(err)
		regs[n] = r
	}
	if err := errs.Aggregate(); err != nil {
		return nil, err
	}
	return regs, nil
}
