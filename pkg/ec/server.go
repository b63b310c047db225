package ec

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

const helloMagic = 0x01020304

// Server dispatches host commands and pumps events to sinks.
type Server struct {
	handlers map[Command]Handler
	sources  [maxEventTypes]EventSource
	sinks    []EventSink
	lock     sync.RWMutex

	pending  uint32
	notifyCh chan struct{}
}

// NewServer creates a Server with the built-in commands.
func NewServer() *Server {
	s := &Server{
		handlers: make(map[Command]Handler),
		notifyCh: make(chan struct{}, 1),
	}
	s.Register(CmdHello, HandleCommandFunc(hello))
	return s
}

func hello(params []byte) (Result, []byte) {
	if len(params) != 4 {
		return ResInvalidParam, nil
	}
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, binary.LittleEndian.Uint32(params)+helloMagic)
	return ResSuccess, out
}

// Register installs the handler of a command.
func (s *Server) Register(cmd Command, h Handler) *Server {
	s.lock.Lock()
	s.handlers[cmd] = h
	s.lock.Unlock()
	return s
}

// AddEventSource installs the source of an event type.
func (s *Server) AddEventSource(typ EventType, src EventSource) *Server {
	if typ >= maxEventTypes {
		panic("event type out of range")
	}
	s.lock.Lock()
	s.sources[typ] = src
	s.lock.Unlock()
	return s
}

// AddSink adds a receiver of events.
func (s *Server) AddSink(sinks ...EventSink) *Server {
	s.lock.Lock()
	s.sinks = append(s.sinks, sinks...)
	s.lock.Unlock()
	return s
}

// RemoveSink removes a receiver added by AddSink.
// The sink must be comparable, like a pointer.
func (s *Server) RemoveSink(sink EventSink) *Server {
	s.lock.Lock()
	defer s.lock.Unlock()
	sinks := make([]EventSink, 0, len(s.sinks))
	for _, elem := range s.sinks {
		if elem != sink {
			sinks = append(sinks, elem)
		}
	}
	s.sinks = sinks
	return s
}

// Dispatch runs a host command.
func (s *Server) Dispatch(cmd Command, params []byte) (Result, []byte) {
	s.lock.RLock()
	h := s.handlers[cmd]
	s.lock.RUnlock()
	if h == nil {
		glog.V(2).Infof("unknown host command 0x%04x", uint16(cmd))
		return ResInvalidCommand, nil
	}
	res, out := h.HandleCommand(params)
	glog.V(2).Infof("host command 0x%04x: %s", uint16(cmd), res)
	return res, out
}

// SendEvent marks an event type pending and wakes up the pump.
// It never blocks.
func (s *Server) SendEvent(typ EventType) {
	for {
		old := atomic.LoadUint32(&s.pending)
		if atomic.CompareAndSwapUint32(&s.pending, old, old|(1<<typ)) {
			break
		}
	}
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Events returns the channel notified when events become pending.
// Run consumes it, so it's only for servers pumped by NextEvent elsewhere.
func (s *Server) Events() <-chan struct{} {
	return s.notifyCh
}

// NextEvent pops the lowest pending event type and reads its source.
func (s *Server) NextEvent() (EventType, []byte, bool) {
	for {
		pending := atomic.LoadUint32(&s.pending)
		if pending == 0 {
			return 0, nil, false
		}
		var typ EventType
		for pending&(1<<typ) == 0 {
			typ++
		}
		if !atomic.CompareAndSwapUint32(&s.pending, pending, pending&^(1<<typ)) {
			continue
		}
		s.lock.RLock()
		src := s.sources[typ]
		s.lock.RUnlock()
		if src == nil {
			continue
		}
		return typ, src.NextEvent(), true
	}
}

// Run implements Runnable, delivering pending events to all sinks.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notifyCh:
			s.flush()
		}
	}
}

func (s *Server) flush() {
	for {
		typ, payload, ok := s.NextEvent()
		if !ok {
			return
		}
		s.lock.RLock()
		sinks := s.sinks
		s.lock.RUnlock()
		for _, sink := range sinks {
			if err := sink.SendEvent(typ, payload); err != nil {
				glog.Warningf("send event %d error: %v", typ, err)
			}
		}
	}
}
