// Package bridge connects the serial line of a simulated board to packet
// transports such as MQTT and websocket.
package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/mcu/serial"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Feeder accepts bytes arriving on the receive line.
type Feeder interface {
	Feed([]byte)
}

// Transmitter reports every byte sent on the transmit line.
type Transmitter interface {
	OnTransmit(func(byte))
}

// DefaultTapDepth is the number of lines buffered per subscriber.
const DefaultTapDepth = 16

// LineTap splits transmitted bytes into lines and fans them out.
type LineTap struct {
	Depth int

	lock sync.Mutex
	line []byte
	subs map[int]chan []byte
	next int
}

// NewLineTap creates a LineTap fed by tx.
func NewLineTap(tx Transmitter) *LineTap {
	t := &LineTap{Depth: DefaultTapDepth, subs: make(map[int]chan []byte)}
	tx.OnTransmit(t.Byte)
	return t
}

// Byte consumes one transmitted byte. A subscriber that is not keeping up
// loses the line.
func (t *LineTap) Byte(b byte) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.line = append(t.line, b)
	if b != serial.Terminator {
		return
	}
	line := t.line
	t.line = nil
	for id, ch := range t.subs {
		select {
		case ch <- line:
		default:
			glog.Warningf("line tap: subscriber %d is full, line dropped", id)
		}
	}
}

// Subscribe returns a channel receiving every completed line, terminator
// included, and the func to unsubscribe.
func (t *LineTap) Subscribe() (<-chan []byte, func()) {
	depth := t.Depth
	if depth <= 0 {
		depth = DefaultTapDepth
	}
	ch := make(chan []byte, depth)
	t.lock.Lock()
	if t.subs == nil {
		t.subs = make(map[int]chan []byte)
	}
	id := t.next
	t.next++
	t.subs[id] = ch
	t.lock.Unlock()
	return ch, func() {
		t.lock.Lock()
		delete(t.subs, id)
		t.lock.Unlock()
	}
}

// Subscribers returns the number of subscribed channels.
func (t *LineTap) Subscribers() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.subs)
}

// SerialBridge feeds received packets into the serial line and sends every
// transmitted line back as a packet.
type SerialBridge struct {
	ReadWriter PacketReadWriter
	Feeder     Feeder
	Tap        *LineTap
	// Terminate appends the line terminator to packets missing one.
	Terminate bool
}

// Run implements framework.Runnable. The ReadWriter is closed on return
// when it implements io.Closer.
func (b *SerialBridge) Run(ctx context.Context) error {
	lines, unsub := b.Tap.Subscribe()
	defer unsub()
	defer b.close()

	errCh := make(chan error, 1)
	go func() {
		for {
			pkt, err := b.ReadWriter.ReadPacket()
			if err != nil {
				errCh <- err
				return
			}
			if b.Terminate && (len(pkt) == 0 || pkt[len(pkt)-1] != serial.Terminator) {
				pkt = append(pkt, serial.Terminator)
			}
			glog.V(3).Infof("bridge: rx %q", pkt)
			b.Feeder.Feed(pkt)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return err
		case line := <-lines:
			if err := b.ReadWriter.WritePacket(line); err != nil {
				return err
			}
		}
	}
}

func (b *SerialBridge) close() {
	if closer, ok := b.ReadWriter.(io.Closer); ok {
		closer.Close()
	}
}
