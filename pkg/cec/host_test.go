package cec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cec.go/pkg/ec"
)

func TestRegisterHost(t *testing.T) {
	h := newHarness(t).acking()
	var posted []Events
	h.m.Notifier = EventPostedFunc(func(ev Events) { posted = append(posted, ev) })
	srv := ec.NewServer()
	RegisterHost(srv, h.m)

	res, _ := srv.Dispatch(ec.CmdCECWriteMsg, nil)
	require.Equal(t, ec.ResInvalidParam, res)
	res, _ = srv.Dispatch(ec.CmdCECWriteMsg, make([]byte, MaxMessageLen+1))
	require.Equal(t, ec.ResInvalidParam, res)
	_, _, ok := srv.NextEvent()
	require.False(t, ok)

	res, _ = srv.Dispatch(ec.CmdCECWriteMsg, []byte{0x04, 0x82})
	require.Equal(t, ec.ResSuccess, res)
	res, _ = srv.Dispatch(ec.CmdCECWriteMsg, []byte{0x04, 0x82})
	require.Equal(t, ec.ResBusy, res)

	<-h.m.sendCh
	h.m.enter(StateFreeTime)
	h.runToIdle()
	require.Equal(t, []Events{EventSendOK}, posted)

	typ, payload, ok := srv.NextEvent()
	require.True(t, ok)
	require.Equal(t, ec.EventCEC, typ)
	require.Equal(t, []byte{1, 0, 0, 0}, payload)
	_, _, ok = srv.NextEvent()
	require.False(t, ok)
	require.Equal(t, Events(0), h.m.TakeEvents())
}

func TestEventsFromPayload(t *testing.T) {
	require.Equal(t, EventSendOK, EventsFromPayload([]byte{1, 0, 0, 0}))
	require.Equal(t, EventSendOK|EventSendFailed, EventsFromPayload([]byte{3, 0, 0, 0}))
	require.Equal(t, Events(0), EventsFromPayload([]byte{1}))
}
