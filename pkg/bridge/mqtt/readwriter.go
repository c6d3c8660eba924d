package mqtt

import (
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/telemetry"
)

// Serial line topics, relative to the board.
const (
	TopicSerialRx = "serial/rx"
	TopicSerialTx = "serial/tx"
	TopicTrace    = "trace"
	TopicEvents   = "events"
)

// ReadWriter implements bridge.PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	PubTopic string

	sub      *Subscription
	packetCh chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewReadWriter subscribes sub and publishes to pub.
func NewReadWriter(q *Queue, sub, pub string) *ReadWriter {
	p := &ReadWriter{
		Queue:    q,
		PubTopic: pub,
		packetCh: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	p.sub = q.Sub(sub, p.handleMsg)
	return p
}

// ForBoard uses the serial topics of a board: received lines come from
// <board>/serial/rx, transmitted lines go to <board>/serial/tx.
func ForBoard(q *Queue, boardID string) *ReadWriter {
	return NewReadWriter(q, boardID+"/"+TopicSerialRx, boardID+"/"+TopicSerialTx)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() (err error) {
	p.once.Do(func() {
		close(p.done)
		err = p.sub.Close()
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}

// Publisher publishes telemetry messages to a topic.
type Publisher struct {
	Queue *Queue
	Topic string
}

// Publish encodes and publishes msg without waiting for delivery.
func (p *Publisher) Publish(msg fx.Message) error {
	data, err := telemetry.Encode(msg)
	if err != nil {
		return err
	}
	p.Queue.Pub(p.Topic, data)
	return nil
}

// PublishBatch is a telemetry.Recorder OnBatch callback.
func (p *Publisher) PublishBatch(batch *telemetry.TraceBatch) {
	if err := p.Publish(batch); err != nil {
		glog.Errorf("publish trace: %v", err)
	}
}
