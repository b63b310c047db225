package cec

import (
	"encoding/binary"

	"github.com/robotalks/cec.go/pkg/ec"
)

// RegisterHost exposes the machine on a host command server: the CEC write
// command, and the CEC event source which reads and clears pending events.
// It chains the machine's Notifier, so it must be called before Run.
func RegisterHost(srv *ec.Server, m *Machine) {
	srv.Register(ec.CmdCECWriteMsg, ec.HandleCommandFunc(func(params []byte) (ec.Result, []byte) {
		switch m.Send(params) {
		case nil:
			return ec.ResSuccess, nil
		case ErrInvalidLength:
			return ec.ResInvalidParam, nil
		case ErrBusy:
			return ec.ResBusy, nil
		}
		return ec.ResError, nil
	}))
	srv.AddEventSource(ec.EventCEC, ec.NextEventFunc(func() []byte {
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(m.TakeEvents()))
		return out
	}))
	prev := m.Notifier
	m.Notifier = EventPostedFunc(func(ev Events) {
		if prev != nil {
			prev.EventPosted(ev)
		}
		srv.SendEvent(ec.EventCEC)
	})
}

// EventsFromPayload decodes the payload of a CEC event.
func EventsFromPayload(payload []byte) Events {
	if len(payload) < 4 {
		return 0
	}
	return Events(binary.LittleEndian.Uint32(payload))
}
