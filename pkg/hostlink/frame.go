package hostlink

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/robotalks/cec.go/pkg/ec"
)

// Seq is the frame sequence number, valid in [1, 0xf0).
// Values from 0xf0 are reserved for sync bytes.
type Seq byte

// NewSeq creates a random starting sequence number.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next calculates the next sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= 0xf0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks if it's a valid sequence number.
func (s Seq) IsValid() bool {
	return s > 0 && s < 0xf0
}

// Frame codes and flags.
const (
	CodeHostCmd byte = 0x02
	CodeEvent   byte = FlagEvent | 0x08

	FlagEvent byte = 0x80
	FlagError byte = 0x01

	codeMask    byte = 0x8f
	lenShift         = 4
	lenExtended byte = 7
	maxDataLen       = 0x7f
)

// Frame is a unit transferred over the link.
type Frame struct {
	Seq  Seq
	Code byte
	Data []byte
}

// IsEvent checks the event flag.
func (f *Frame) IsEvent() bool {
	return f.Code&FlagEvent != 0
}

func (f *Frame) header() []byte {
	n := byte(len(f.Data))
	if n < lenExtended {
		return []byte{byte(f.Seq), f.Code&codeMask | n<<lenShift}
	}
	return []byte{byte(f.Seq), f.Code&codeMask | lenExtended<<lenShift, n}
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	return append(f.header(), f.Data...)
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// CommandFrame builds a host command frame.
func CommandFrame(cmd ec.Command, params []byte) *Frame {
	data := make([]byte, 2, 2+len(params))
	binary.LittleEndian.PutUint16(data, uint16(cmd))
	return &Frame{Code: CodeHostCmd, Data: append(data, params...)}
}

// ParseCommand decodes the command and params from a host command frame.
func (f *Frame) ParseCommand() (ec.Command, []byte, error) {
	if len(f.Data) < 2 {
		return 0, nil, ErrShortFrame
	}
	return ec.Command(binary.LittleEndian.Uint16(f.Data)), f.Data[2:], nil
}

// ReplyFrame builds the reply to the command frame with request sequence.
func ReplyFrame(reqSeq Seq, res ec.Result, out []byte) *Frame {
	data := make([]byte, 3, 3+len(out))
	data[0] = byte(reqSeq)
	binary.LittleEndian.PutUint16(data[1:], uint16(res))
	f := &Frame{Code: CodeHostCmd, Data: append(data, out...)}
	if res != ec.ResSuccess {
		f.Code |= FlagError
	}
	return f
}

// EventFrame builds an event frame.
func EventFrame(typ ec.EventType, payload []byte) *Frame {
	return &Frame{Code: CodeEvent, Data: append([]byte{byte(typ)}, payload...)}
}
