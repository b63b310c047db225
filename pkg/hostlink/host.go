package hostlink

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/robotalks/cec.go/pkg/ec"
)

// Result is the result of a host command.
type Result struct {
	Err  error
	Res  ec.Result
	Data []byte
}

// Event is an event received from the device.
type Event struct {
	Type    ec.EventType
	Payload []byte
}

// Call is a host command waiting for reply.
type Call struct {
	command  ec.Command
	reqSeq   Seq
	resultCh chan Result
	next     *Call
}

// RequestSeq returns the sequence of the request frame.
func (c *Call) RequestSeq() Seq {
	return c.reqSeq
}

// ResultChan returns the chan to retrieve result.
func (c *Call) ResultChan() <-chan Result {
	return c.resultCh
}

// Host is the host side of the link, issuing commands to the device.
type Host struct {
	link    *Link
	eventCh chan Event
	stateCh chan LinkState

	callsHead *Call
	callsTail *Call
	callsLock sync.Mutex
}

// NewHost creates a Host over the link.
// Both StateChan and EventChan must be consumed.
func NewHost(link *Link) *Host {
	h := &Host{
		link:    link,
		eventCh: make(chan Event, 1),
		stateCh: make(chan LinkState, 1),
	}
	link.Handler = h
	link.Notifier = StateChangedFunc(func(ctx context.Context, state LinkState) {
		h.stateCh <- state
	})
	return h
}

// Link gets the wrapped Link.
func (h *Host) Link() *Link {
	return h.link
}

// StateChan retrieves link state changes.
func (h *Host) StateChan() <-chan LinkState {
	return h.stateCh
}

// EventChan retrieves events.
func (h *Host) EventChan() <-chan Event {
	return h.eventCh
}

// Do sends a host command, the result is delivered on the Call.
func (h *Host) Do(cmd ec.Command, params []byte) *Call {
	call := &Call{command: cmd, resultCh: make(chan Result, 1)}
	f := CommandFrame(cmd, params)

	h.callsLock.Lock()
	defer h.callsLock.Unlock()
	if err := h.link.Send(f); err != nil {
		call.resultCh <- Result{Err: err}
		return call
	}
	call.reqSeq = f.Seq
	if h.callsHead == nil {
		h.callsHead = call
	} else {
		h.callsTail.next = call
	}
	h.callsTail = call
	return call
}

// HandleFrame implements FrameHandler.
func (h *Host) HandleFrame(ctx context.Context, f *Frame) {
	if f.IsEvent() {
		if f.Code == CodeEvent && len(f.Data) > 0 {
			h.eventCh <- Event{Type: ec.EventType(f.Data[0]), Payload: f.Data[1:]}
		}
		return
	}
	if f.Code&^FlagError != CodeHostCmd || len(f.Data) < 3 {
		return
	}
	seq := Seq(f.Data[0])
	if !seq.IsValid() {
		return
	}

	h.callsLock.Lock()
	head, curr := h.callsHead, h.callsHead
	for ; curr != nil; curr = curr.next {
		if curr.reqSeq == seq {
			if h.callsHead = curr.next; h.callsHead == nil {
				h.callsTail = nil
			}
			curr.next = nil
			break
		}
	}
	h.callsLock.Unlock()
	if curr == nil {
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	r := Result{Res: ec.Result(binary.LittleEndian.Uint16(f.Data[1:])), Data: f.Data[3:]}
	if f.Code&FlagError != 0 {
		r.Err = &CommandError{Command: curr.command, Result: r.Res}
	}
	curr.resultCh <- r
}

// Run implements Runnable.
func (h *Host) Run(ctx context.Context) error {
	return h.link.Run(ctx)
}
