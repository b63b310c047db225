package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/cec.go/pkg/ec"
)

// HostRequest is a host command sent to a device.
type HostRequest struct {
	Seq     uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Command uint32 `protobuf:"varint,2,opt,name=command,proto3" json:"command,omitempty"`
	Params  []byte `protobuf:"bytes,3,opt,name=params,proto3" json:"params,omitempty"`
}

// Reset implements proto.Message.
func (m *HostRequest) Reset() { *m = HostRequest{} }

// String implements proto.Message.
func (m *HostRequest) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*HostRequest) ProtoMessage() {}

// HostResponse is the reply of a HostRequest with the same Seq.
type HostResponse struct {
	Seq    uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Result uint32 `protobuf:"varint,2,opt,name=result,proto3" json:"result,omitempty"`
	Data   []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
}

// Reset implements proto.Message.
func (m *HostResponse) Reset() { *m = HostResponse{} }

// String implements proto.Message.
func (m *HostResponse) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*HostResponse) ProtoMessage() {}

// HostEvent is an event reported by a device.
type HostEvent struct {
	Type uint32 `protobuf:"varint,1,opt,name=type,proto3" json:"type,omitempty"`
	Data []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
}

// Reset implements proto.Message.
func (m *HostEvent) Reset() { *m = HostEvent{} }

// String implements proto.Message.
func (m *HostEvent) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*HostEvent) ProtoMessage() {}

// NewHostRequest creates a HostRequest.
func NewHostRequest(seq uint32, cmd ec.Command, params []byte) *HostRequest {
	return &HostRequest{Seq: seq, Command: uint32(cmd), Params: params}
}

// HostCommand gets the command code.
func (m *HostRequest) HostCommand() ec.Command {
	return ec.Command(m.Command)
}

// NewHostResponse creates a HostResponse.
func NewHostResponse(seq uint32, res ec.Result, data []byte) *HostResponse {
	return &HostResponse{Seq: seq, Result: uint32(res), Data: data}
}

// HostResult gets the result code.
func (m *HostResponse) HostResult() ec.Result {
	return ec.Result(m.Result)
}

// NewHostEvent creates a HostEvent.
func NewHostEvent(typ ec.EventType, data []byte) *HostEvent {
	return &HostEvent{Type: uint32(typ), Data: data}
}

// EventType gets the event type.
func (m *HostEvent) EventType() ec.EventType {
	return ec.EventType(m.Type)
}

// Encode encodes a message to bytes.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodeRequest decodes bytes into HostRequest.
func DecodeRequest(data []byte) (*HostRequest, error) {
	var m HostRequest
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeResponse decodes bytes into HostResponse.
func DecodeResponse(data []byte) (*HostResponse, error) {
	var m HostResponse
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeEvent decodes bytes into HostEvent.
func DecodeEvent(data []byte) (*HostEvent, error) {
	var m HostEvent
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
