// Package sim models the STM32F3 peripherals behind a volatile.Bus so the
// drivers run unmodified on a host.
//
// Simulated time advances by one tick after every bus transaction. With the
// timer prescaled to 1 kHz, one tick is one millisecond.
package sim

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// Op is the kind of a bus transaction.
type Op int

// Transaction kinds.
const (
	OpLoad Op = iota
	OpStore
)

func (o Op) String() string {
	if o == OpStore {
		return "store"
	}
	return "load"
}

// Transaction is one observed bus access.
type Transaction struct {
	Seq    uint64
	Op     Op
	Addr   uintptr
	Value  uint32
	Device string
}

func (t Transaction) String() string {
	return fmt.Sprintf("#%d %s %s@%#08x=%#08x", t.Seq, t.Op, t.Device, t.Addr, t.Value)
}

// Fault is raised on access to an address no device backs.
type Fault struct {
	Op   Op
	Addr uintptr
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("hard fault: %s at unmapped address %#08x", f.Op, f.Addr)
}

// Device is a memory-mapped peripheral. Offsets are relative to the
// mapped base.
type Device interface {
	Load(off uintptr) uint32
	Store(off uintptr, val uint32)
}

// Ticker is implemented by devices that advance with simulated time.
type Ticker interface {
	Tick()
}

type region struct {
	name string
	base uintptr
	size uintptr
	dev  Device
}

// Bus dispatches transactions to mapped devices. It is safe for
// concurrent use; transactions are serialized in one total order.
type Bus struct {
	// FaultHandler is the fault routine. It does not return on silicon;
	// the default panics with the *Fault.
	FaultHandler func(*Fault)
	// Yield, when set, is called after every transaction outside the lock.
	Yield func()

	lock      sync.Mutex
	regions   []region
	tickers   []Ticker
	seq       uint64
	traceCap  int
	trace     []Transaction
	observers []func(Transaction)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Map attaches dev to [base, base+size).
func (b *Bus) Map(name string, base, size uintptr, dev Device) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, r := range b.regions {
		if base < r.base+r.size && r.base < base+size {
			return fmt.Errorf("%s at %#08x overlaps %s", name, base, r.name)
		}
	}
	b.regions = append(b.regions, region{name: name, base: base, size: size, dev: dev})
	if t, ok := dev.(Ticker); ok {
		b.tickers = append(b.tickers, t)
	}
	return nil
}

// Observe registers fn to be called with every transaction, in order.
func (b *Bus) Observe(fn func(Transaction)) {
	b.lock.Lock()
	b.observers = append(b.observers, fn)
	b.lock.Unlock()
}

// EnableTrace keeps the last limit transactions.
func (b *Bus) EnableTrace(limit int) {
	b.lock.Lock()
	b.traceCap, b.trace = limit, nil
	b.lock.Unlock()
}

// Trace returns the recorded transactions.
func (b *Bus) Trace() []Transaction {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Transaction(nil), b.trace...)
}

// ResetTrace drops the recorded transactions.
func (b *Bus) ResetTrace() {
	b.lock.Lock()
	b.trace = nil
	b.lock.Unlock()
}

// Transactions returns the number of transactions so far.
func (b *Bus) Transactions() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.seq
}

// Load32 implements volatile.Bus.
func (b *Bus) Load32(addr uintptr) uint32 {
	b.lock.Lock()
	r := b.find(addr)
	if r == nil {
		b.lock.Unlock()
		b.fault(&Fault{Op: OpLoad, Addr: addr})
		return 0
	}
	val := r.dev.Load(addr - r.base)
	b.complete(Transaction{Op: OpLoad, Addr: addr, Value: val, Device: r.name})
	return val
}

// Store32 implements volatile.Bus.
func (b *Bus) Store32(addr uintptr, val uint32) {
	b.lock.Lock()
	r := b.find(addr)
	if r == nil {
		b.lock.Unlock()
		b.fault(&Fault{Op: OpStore, Addr: addr})
		return
	}
	r.dev.Store(addr-r.base, val)
	b.complete(Transaction{Op: OpStore, Addr: addr, Value: val, Device: r.name})
}

func (b *Bus) find(addr uintptr) *region {
	for n := range b.regions {
		r := &b.regions[n]
		if addr >= r.base && addr < r.base+r.size {
			return r
		}
	}
	return nil
}

// complete is called with the lock held and releases it.
func (b *Bus) complete(t Transaction) {
	b.seq++
	t.Seq = b.seq
	if b.traceCap > 0 {
		if len(b.trace) >= b.traceCap {
			b.trace = b.trace[1:]
		}
		b.trace = append(b.trace, t)
	}
	for _, ticker := range b.tickers {
		ticker.Tick()
	}
	observers := b.observers
	b.lock.Unlock()

	if glog.V(5) {
		glog.Info(t.String())
	}
	for _, fn := range observers {
		fn(t)
	}
	if b.Yield != nil {
		b.Yield()
	}
}

func (b *Bus) fault(f *Fault) {
	glog.Errorf("%v", f)
	if b.FaultHandler != nil {
		b.FaultHandler(f)
		return
	}
	panic(f)
}
