package cec

import (
	"strings"
	"sync/atomic"
)

// Events is the bitmask of send outcomes reported to the host.
type Events uint32

// Event bits.
const (
	EventSendOK Events = 1 << iota
	EventSendFailed
)

// Has checks if all bits in ev are set.
func (e Events) Has(ev Events) bool {
	return e&ev == ev
}

// String implements fmt.Stringer.
func (e Events) String() string {
	var names []string
	if e.Has(EventSendOK) {
		names = append(names, "send-ok")
	}
	if e.Has(EventSendFailed) {
		names = append(names, "send-failed")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// EventNotifier is called after events are posted.
// It runs in the state machine context and must not block.
type EventNotifier interface {
	EventPosted(Events)
}

// EventPostedFunc is func type of EventNotifier.
type EventPostedFunc func(Events)

// EventPosted implements EventNotifier.
func (f EventPostedFunc) EventPosted(ev Events) {
	f(ev)
}

type eventSet struct {
	bits uint32
}

func (s *eventSet) set(ev Events) {
	for {
		old := atomic.LoadUint32(&s.bits)
		if atomic.CompareAndSwapUint32(&s.bits, old, old|uint32(ev)) {
			return
		}
	}
}

func (s *eventSet) take() Events {
	return Events(atomic.SwapUint32(&s.bits, 0))
}
