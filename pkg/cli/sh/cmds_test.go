package sh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cec.go/pkg/cec"
	"github.com/robotalks/cec.go/pkg/ec"
	env "github.com/robotalks/cec.go/pkg/env/connector"
)

func TestParseHex(t *testing.T) {
	for _, args := range [][]string{
		{"04", "82"},
		{"04:82"},
		{"0482"},
		{"0x0482"},
		{"04-82"},
	} {
		data, err := ParseHex(args...)
		require.NoError(t, err, args)
		require.Equal(t, []byte{0x04, 0x82}, data, args)
	}
	_, err := ParseHex("4")
	require.Error(t, err)
	_, err = ParseHex("zz")
	require.Error(t, err)
	data, err := ParseHex()
	require.NoError(t, err)
	require.Empty(t, data)
}

type fakeConn struct {
	events chan env.Event
	sent   [][]byte
	err    error
	onDo   func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan env.Event, 4)}
}

func (c *fakeConn) Do(ctx context.Context, cmd ec.Command, params []byte) ([]byte, error) {
	c.sent = append(c.sent, params)
	if c.onDo != nil {
		c.onDo()
	}
	return nil, c.err
}

func (c *fakeConn) Events() <-chan env.Event { return c.events }
func (c *fakeConn) Status() string           { return "fake" }
func (c *fakeConn) Close() error             { return nil }

// completeAfter posts the CEC completion event after d.
func (c *fakeConn) completeAfter(d time.Duration, ev cec.Events) {
	c.onDo = func() {
		go func() {
			time.Sleep(d)
			c.events <- env.Event{Type: ec.EventCEC, Payload: []byte{byte(ev), 0, 0, 0}}
		}()
	}
}

func TestSendFrameWaitsCompletion(t *testing.T) {
	conn := newFakeConn()
	conn.completeAfter(50*time.Millisecond, cec.EventSendFailed)
	r, err := SendFrame(context.Background(), conn, []byte{0x04, 0x82}, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x04, 0x82}}, conn.sent)
	require.Equal(t, "0482", r.Frame)
	require.Equal(t, "send-failed", r.Events)
	require.Empty(t, r.Other)
}

func TestSendFrameKeepsLateCompletion(t *testing.T) {
	conn := newFakeConn()
	conn.completeAfter(100*time.Millisecond, cec.EventSendOK)
	r, err := SendFrame(context.Background(), conn, []byte{0x04}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, r.Events)

	deadline := time.Now().Add(2 * time.Second)
	for len(conn.events) == 0 {
		require.True(t, time.Now().Before(deadline), "late event not posted")
		time.Sleep(10 * time.Millisecond)
	}
	conn.onDo = nil
	conn.events <- env.Event{Type: 3, Payload: []byte{1}}
	r, err = SendFrame(context.Background(), conn, []byte{0x05}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, r.Events)
	require.Len(t, r.Other, 2)
	require.Equal(t, "cec: send-ok", FormatEvent(r.Other[0]))
	require.Equal(t, "event 3: 01", FormatEvent(r.Other[1]))
}

func TestSendFrameError(t *testing.T) {
	conn := newFakeConn()
	conn.err = ec.ResBusy.Err()
	conn.events <- env.Event{Type: ec.EventCEC, Payload: []byte{1, 0, 0, 0}}
	r, err := SendFrame(context.Background(), conn, []byte{0x04}, time.Second)
	require.Error(t, err)
	require.Len(t, r.Other, 1)
	require.Empty(t, r.Events)
}
