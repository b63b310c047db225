package ec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	s := NewServer()
	res, out := s.Dispatch(CmdHello, []byte{1, 0, 0, 0})
	require.Equal(t, ResSuccess, res)
	require.Equal(t, []byte{5, 3, 2, 1}, out)

	res, _ = s.Dispatch(CmdHello, nil)
	require.Equal(t, ResInvalidParam, res)

	res, _ = s.Dispatch(Command(0x7777), nil)
	require.Equal(t, ResInvalidCommand, res)

	s.Register(Command(0x7777), HandleCommandFunc(func(params []byte) (Result, []byte) {
		return ResBusy, params
	}))
	res, out = s.Dispatch(Command(0x7777), []byte{9})
	require.Equal(t, ResBusy, res)
	require.Equal(t, []byte{9}, out)
}

func TestResult(t *testing.T) {
	require.NoError(t, ResSuccess.Err())
	err := ResBusy.Err()
	require.Error(t, err)
	require.Equal(t, "host command failed: busy", err.Error())
	require.Equal(t, "result 42", Result(42).String())
	require.Equal(t, "cec-write-msg", CmdCECWriteMsg.String())
	require.Equal(t, "command 0x7777", Command(0x7777).String())
}

func TestNextEvent(t *testing.T) {
	s := NewServer()
	s.AddEventSource(EventCEC, NextEventFunc(func() []byte { return []byte{8} }))
	s.AddEventSource(3, NextEventFunc(func() []byte { return []byte{3} }))

	_, _, ok := s.NextEvent()
	require.False(t, ok)

	s.SendEvent(EventCEC)
	s.SendEvent(3)
	s.SendEvent(5) // no source
	typ, payload, ok := s.NextEvent()
	require.True(t, ok)
	require.Equal(t, EventType(3), typ)
	require.Equal(t, []byte{3}, payload)
	typ, payload, ok = s.NextEvent()
	require.True(t, ok)
	require.Equal(t, EventCEC, typ)
	require.Equal(t, []byte{8}, payload)
	_, _, ok = s.NextEvent()
	require.False(t, ok)

	require.Panics(t, func() { s.AddEventSource(maxEventTypes, nil) })
}

func TestEventPump(t *testing.T) {
	type delivered struct {
		typ     EventType
		payload []byte
	}
	s := NewServer()
	s.AddEventSource(EventCEC, NextEventFunc(func() []byte { return []byte{1, 0, 0, 0} }))
	ch1, ch2 := make(chan delivered, 1), make(chan delivered, 1)
	s.AddSink(
		SendEventFunc(func(typ EventType, payload []byte) error {
			ch1 <- delivered{typ, payload}
			return nil
		}),
		SendEventFunc(func(typ EventType, payload []byte) error {
			ch2 <- delivered{typ, payload}
			return context.DeadlineExceeded
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	s.SendEvent(EventCEC)
	for _, ch := range []chan delivered{ch1, ch2} {
		select {
		case d := <-ch:
			require.Equal(t, EventCEC, d.typ)
			require.Equal(t, []byte{1, 0, 0, 0}, d.payload)
		case <-time.After(5 * time.Second):
			t.Fatal("event not delivered")
		}
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

type countingSink struct {
	count int
}

func (s *countingSink) SendEvent(EventType, []byte) error {
	s.count++
	return nil
}

func TestRemoveSink(t *testing.T) {
	s := NewServer()
	s.AddEventSource(EventCEC, NextEventFunc(func() []byte { return nil }))
	a, b := &countingSink{}, &countingSink{}
	s.AddSink(a, b)
	s.SendEvent(EventCEC)
	s.flush()
	s.RemoveSink(a)
	s.SendEvent(EventCEC)
	s.flush()
	require.Equal(t, 1, a.count)
	require.Equal(t, 2, b.count)
}

func TestEventsNotification(t *testing.T) {
	s := NewServer()
	s.AddEventSource(EventCEC, NextEventFunc(func() []byte { return []byte{1, 0, 0, 0} }))
	select {
	case <-s.Events():
		t.Fatal("unexpected notification")
	default:
	}
	s.SendEvent(EventCEC)
	s.SendEvent(EventCEC)
	select {
	case <-s.Events():
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	typ, payload, ok := s.NextEvent()
	require.True(t, ok)
	require.Equal(t, EventCEC, typ)
	require.Equal(t, []byte{1, 0, 0, 0}, payload)
	_, _, ok = s.NextEvent()
	require.False(t, ok)
	select {
	case <-s.Events():
		t.Fatal("notification not coalesced")
	default:
	}
}
