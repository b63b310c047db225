// Package ec provides the host command table and event sources of the
// embedded controller.
package ec

import (
	"fmt"
	"strconv"
)

// Command is a host command code.
type Command uint16

// Host commands.
const (
	CmdHello       Command = 0x0001
	CmdCECWriteMsg Command = 0x00B8
)

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c {
	case CmdHello:
		return "hello"
	case CmdCECWriteMsg:
		return "cec-write-msg"
	}
	return fmt.Sprintf("command 0x%04x", uint16(c))
}

// Result is the result code of a host command.
type Result uint16

// Results.
const (
	ResSuccess        Result = 0
	ResInvalidCommand Result = 1
	ResError          Result = 2
	ResInvalidParam   Result = 3
	ResBusy           Result = 16
)

var resultNames = map[Result]string{
	ResSuccess:        "success",
	ResInvalidCommand: "invalid command",
	ResError:          "error",
	ResInvalidParam:   "invalid param",
	ResBusy:           "busy",
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "result " + strconv.Itoa(int(r))
}

// Err converts a non-success result to ResultError.
func (r Result) Err() error {
	if r == ResSuccess {
		return nil
	}
	return &ResultError{Result: r}
}

// ResultError wraps a failing result.
type ResultError struct {
	Result Result
}

// Error implements error.
func (e *ResultError) Error() string {
	return fmt.Sprintf("host command failed: %s", e.Result)
}

// EventType identifies an event source.
type EventType uint8

// Event types.
const (
	EventCEC EventType = 8

	maxEventTypes = 32
)

// Handler processes a host command.
type Handler interface {
	HandleCommand(params []byte) (Result, []byte)
}

// HandleCommandFunc is func type of Handler.
type HandleCommandFunc func(params []byte) (Result, []byte)

// HandleCommand implements Handler.
func (f HandleCommandFunc) HandleCommand(params []byte) (Result, []byte) {
	return f(params)
}

// EventSource produces the payload of a pending event.
type EventSource interface {
	NextEvent() []byte
}

// NextEventFunc is func type of EventSource.
type NextEventFunc func() []byte

// NextEvent implements EventSource.
func (f NextEventFunc) NextEvent() []byte {
	return f()
}

// EventSink delivers events to a host.
type EventSink interface {
	SendEvent(typ EventType, payload []byte) error
}

// SendEventFunc is func type of EventSink.
type SendEventFunc func(EventType, []byte) error

// SendEvent implements EventSink.
func (f SendEventFunc) SendEvent(typ EventType, payload []byte) error {
	return f(typ, payload)
}
