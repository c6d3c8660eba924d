package telemetry

import (
	"sync"

	"github.com/robotalks/mcu.go/pkg/sim"
)

// DefaultBatchSize is the number of transactions per TraceBatch.
const DefaultBatchSize = 64

// Recorder collects bus transactions into TraceBatch messages.
type Recorder struct {
	BoardID   string
	BatchSize int
	// StoresOnly skips loads, which are dominated by status polling.
	StoresOnly bool
	// Devices, when not empty, limits recording to the named devices.
	Devices []string
	// OnBatch receives every full batch. It runs on the goroutine
	// performing the bus access and must not access the bus.
	OnBatch func(*TraceBatch)

	lock    sync.Mutex
	pending []*BusTransaction
	skipped uint64
}

// NewRecorder creates a Recorder.
func NewRecorder(boardID string) *Recorder {
	return &Recorder{BoardID: boardID, BatchSize: DefaultBatchSize}
}

// Attach observes every transaction on bus.
func (r *Recorder) Attach(bus *sim.Bus) {
	bus.Observe(r.Record)
}

func (r *Recorder) accepts(t sim.Transaction) bool {
	if r.StoresOnly && t.Op != sim.OpStore {
		return false
	}
	if len(r.Devices) == 0 {
		return true
	}
	for _, name := range r.Devices {
		if name == t.Device {
			return true
		}
	}
	return false
}

// Record adds one transaction.
func (r *Recorder) Record(t sim.Transaction) {
	var full *TraceBatch
	r.lock.Lock()
	if !r.accepts(t) {
		r.skipped++
		r.lock.Unlock()
		return
	}
	op := OpLoad
	if t.Op == sim.OpStore {
		op = OpStore
	}
	r.pending = append(r.pending, &BusTransaction{
		Seq:    t.Seq,
		Op:     op,
		Addr:   uint32(t.Addr),
		Value:  t.Value,
		Device: t.Device,
	})
	size := r.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(r.pending) >= size {
		full = r.takeLocked()
	}
	onBatch := r.OnBatch
	r.lock.Unlock()
	if full != nil && onBatch != nil {
		onBatch(full)
	}
}

// Flush returns the pending transactions as a batch, nil when there are
// none.
func (r *Recorder) Flush() *TraceBatch {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	return r.takeLocked()
}

func (r *Recorder) takeLocked() *TraceBatch {
	batch := &TraceBatch{BoardID: r.BoardID, Skipped: r.skipped, Transactions: r.pending}
	r.pending, r.skipped = nil, 0
	return batch
}
