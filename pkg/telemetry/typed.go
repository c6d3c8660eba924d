// Package telemetry defines the protobuf messages the host tools exchange
// about a simulated board, and records bus traffic into them.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/mcu.go/pkg/framework"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
)

// Message kinds and groups.
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000

	GroupBus    uint32 = 0x00010000
	GroupSerial uint32 = 0x00020000
)

// ErrNotSerializable indicates the message is not serializable.
var ErrNotSerializable = errors.New("not serializable message")

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// SerializableMessage can be serialized over the wire.
type SerializableMessage interface {
	fx.Message
	TypeID() uint32
	Serializable() proto.Message
}

// MessageTypes maps type IDs to messages.
var MessageTypes = map[uint32]SerializableMessage{}

// Envelope wraps an encoded message with its type ID.
type Envelope struct {
	TypeID  uint32 `protobuf:"varint,1,opt,name=type_id,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (e *Envelope) ProtoMessage() {}

// Reset implements proto.Message.
func (e *Envelope) Reset() { *e = Envelope{} }

// String implements proto.Message.
func (e *Envelope) String() string { return proto.CompactTextString(e) }

// IsEvent determines if the message is an event.
func (e *Envelope) IsEvent() bool {
	return e.TypeID&TypeIDMaskKind == TypeIDKindEvent
}

// Encode wraps msg in an Envelope and encodes it.
func Encode(msg fx.Message) ([]byte, error) {
	s, ok := msg.(SerializableMessage)
	if !ok {
		return nil, ErrNotSerializable
	}
	data, err := proto.Marshal(s.Serializable())
	if err != nil {
		return nil, err
	}
	return proto.Marshal(&Envelope{TypeID: s.TypeID(), Message: data})
}

// Decode decodes an Envelope into the message it carries.
func Decode(data []byte) (fx.Message, error) {
	var env Envelope
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	msgType, ok := MessageTypes[env.TypeID]
	if !ok {
		return nil, &ErrUnknownType{TypeID: env.TypeID}
	}
	msg := msgType.NewMessage()
	if err := proto.Unmarshal(env.Message, msg.(SerializableMessage).Serializable()); err != nil {
		return nil, err
	}
	return msg, nil
}
