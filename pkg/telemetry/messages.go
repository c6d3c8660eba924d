package telemetry

import (
	"errors"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
)

// Operations of a BusTransaction.
const (
	OpLoad  uint32 = 0
	OpStore uint32 = 1
)

// Directions of a SerialData.
const (
	DirectionRx uint32 = 0
	DirectionTx uint32 = 1
)

// BusTransaction is one access on the peripheral bus.
type BusTransaction struct {
	Seq    uint64 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Op     uint32 `protobuf:"varint,2,opt,name=op,proto3" json:"op,omitempty"`
	Addr   uint32 `protobuf:"varint,3,opt,name=addr,proto3" json:"addr,omitempty"`
	Value  uint32 `protobuf:"varint,4,opt,name=value,proto3" json:"value,omitempty"`
	Device string `protobuf:"bytes,5,opt,name=device,proto3" json:"device,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *BusTransaction) ProtoMessage() {}

// Reset implements proto.Message.
func (m *BusTransaction) Reset() { *m = BusTransaction{} }

// String implements proto.Message.
func (m *BusTransaction) String() string { return proto.CompactTextString(m) }

// TraceBatch is a batch of consecutive transactions of one board.
type TraceBatch struct {
	BoardID      string            `protobuf:"bytes,1,opt,name=board_id,proto3" json:"board_id,omitempty"`
	Skipped      uint64            `protobuf:"varint,2,opt,name=skipped,proto3" json:"skipped,omitempty"`
	Transactions []*BusTransaction `protobuf:"bytes,3,rep,name=transactions,proto3" json:"transactions,omitempty"`
}

// NewMessage implements Message.
func (m *TraceBatch) NewMessage() fx.Message { return &TraceBatch{} }

// TypeID implements SerializableMessage.
func (m *TraceBatch) TypeID() uint32 { return TraceBatchTypeID }

// Serializable implements SerializableMessage.
func (m *TraceBatch) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *TraceBatch) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TraceBatch) Reset() { *m = TraceBatch{} }

// String implements proto.Message.
func (m *TraceBatch) String() string { return proto.CompactTextString(m) }

// SerialData carries bytes received or transmitted on a serial line.
type SerialData struct {
	BoardID   string `protobuf:"bytes,1,opt,name=board_id,proto3" json:"board_id,omitempty"`
	Device    string `protobuf:"bytes,2,opt,name=device,proto3" json:"device,omitempty"`
	Direction uint32 `protobuf:"varint,3,opt,name=direction,proto3" json:"direction,omitempty"`
	Data      []byte `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements Message.
func (m *SerialData) NewMessage() fx.Message { return &SerialData{} }

// TypeID implements SerializableMessage.
func (m *SerialData) TypeID() uint32 { return SerialDataTypeID }

// Serializable implements SerializableMessage.
func (m *SerialData) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SerialData) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SerialData) Reset() { *m = SerialData{} }

// String implements proto.Message.
func (m *SerialData) String() string { return proto.CompactTextString(m) }

// LineOverflow reports bytes dropped from a received line.
type LineOverflow struct {
	BoardID  string `protobuf:"bytes,1,opt,name=board_id,proto3" json:"board_id,omitempty"`
	Device   string `protobuf:"bytes,2,opt,name=device,proto3" json:"device,omitempty"`
	Capacity uint32 `protobuf:"varint,3,opt,name=capacity,proto3" json:"capacity,omitempty"`
	Dropped  []byte `protobuf:"bytes,4,opt,name=dropped,proto3" json:"dropped,omitempty"`
}

// NewMessage implements Message.
func (m *LineOverflow) NewMessage() fx.Message { return &LineOverflow{} }

// TypeID implements SerializableMessage.
func (m *LineOverflow) TypeID() uint32 { return LineOverflowTypeID }

// Serializable implements SerializableMessage.
func (m *LineOverflow) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *LineOverflow) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LineOverflow) Reset() { *m = LineOverflow{} }

// String implements proto.Message.
func (m *LineOverflow) String() string { return proto.CompactTextString(m) }

// TypeIDs
const (
	TraceBatchTypeID   uint32 = TypeIDKindEvent | GroupBus | 0x0001
	SerialDataTypeID   uint32 = TypeIDKindEvent | GroupSerial | 0x0001
	LineOverflowTypeID uint32 = TypeIDKindEvent | GroupSerial | 0x0002
)

func init() {
	MessageTypes[TraceBatchTypeID] = (*TraceBatch)(nil)
	MessageTypes[SerialDataTypeID] = (*SerialData)(nil)
	MessageTypes[LineOverflowTypeID] = (*LineOverflow)(nil)
}

// NewLineOverflow collects the bytes dropped in err, which aggregates
// serial.BufferOverflowError values. It returns nil when err holds none.
func NewLineOverflow(boardID, device string, err error) *LineOverflow {
	var errs []error
	if agg, ok := err.(*fx.AggregatedError); ok {
		errs = agg.Errors
	} else if err != nil {
		errs = []error{err}
	}
	m := &LineOverflow{BoardID: boardID, Device: device}
	for _, e := range errs {
		var overflow *serial.BufferOverflowError
		if errors.As(e, &overflow) {
			m.Capacity = uint32(overflow.Capacity)
			m.Dropped = append(m.Dropped, overflow.Byte)
		}
	}
	if len(m.Dropped) == 0 {
		return nil
	}
	return m
}
