package cec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type phase struct {
	state State
	level gpio.Level
	ticks Ticks
}

type fakeLine struct {
	level    gpio.Level
	follower func() gpio.Level
	samples  int
	setErr   error
}

func (l *fakeLine) Set(level gpio.Level) error {
	l.level = level
	return l.setErr
}

func (l *fakeLine) Sample() gpio.Level {
	l.samples++
	if l.follower != nil {
		return l.follower()
	}
	return l.level
}

type fakeTimer struct {
	m      *Machine
	line   *fakeLine
	phases []phase
	fire   bool
	armCh  chan struct{}
	ch     chan time.Time
}

func (t *fakeTimer) Start(ticks Ticks) {
	t.phases = append(t.phases, phase{state: t.m.State(), level: t.line.level, ticks: ticks})
	if t.armCh != nil {
		select {
		case t.armCh <- struct{}{}:
		default:
		}
	}
	if t.fire {
		t.ch <- time.Time{}
	}
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

type harness struct {
	t      *testing.T
	timing *Timing
	line   *fakeLine
	timer  *fakeTimer
	m      *Machine
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:      t,
		timing: MustNewTiming(10 * physic.MegaHertz),
		line:   &fakeLine{level: gpio.High},
	}
	h.timer = &fakeTimer{line: h.line, ch: make(chan time.Time, 1)}
	h.m = NewMachine(h.line, h.timer, h.timing)
	h.timer.m = h.m
	return h
}

// acking makes the follower acknowledge every block.
func (h *harness) acking() *harness {
	h.line.follower = func() gpio.Level { return gpio.Low }
	return h
}

// send admits a frame and consumes the trigger the way Run does.
func (h *harness) send(frame ...byte) {
	require.NoError(h.t, h.m.Send(frame))
	<-h.m.sendCh
	h.m.enter(StateFreeTime)
}

func (h *harness) step() {
	require.NotEqual(h.t, StateIdle, h.m.State())
	h.m.timeout()
}

func (h *harness) runToIdle() {
	for n := 0; h.m.State() != StateIdle; n++ {
		require.True(h.t, n < 100000, "state machine does not terminate")
		h.m.timeout()
	}
}

// lows lists the low phases of the given states.
func (h *harness) lows(states ...State) []phase {
	var out []phase
	for _, p := range h.timer.phases {
		for _, s := range states {
			if p.state == s {
				out = append(out, p)
			}
		}
	}
	return out
}

// bits decodes the transmitted bit values from the low phases.
func (h *harness) bits(states ...State) []uint8 {
	var out []uint8
	for _, p := range h.lows(states...) {
		require.Equal(h.t, gpio.Low, p.level)
		switch p.ticks {
		case h.timing.Low[1]:
			out = append(out, 1)
		case h.timing.Low[0]:
			out = append(out, 0)
		default:
			h.t.Fatalf("unexpected low phase %d ticks in %s", p.ticks, p.state)
		}
	}
	return out
}

func (h *harness) count(s State) (n int) {
	for _, p := range h.timer.phases {
		if p.state == s {
			n++
		}
	}
	return
}

func frameOfLen(n int) []byte {
	frame := make([]byte, n)
	frame[0] = 0x04
	for i := 1; i < n; i++ {
		frame[i] = byte(i*37 + 1)
	}
	return frame
}

func TestScenarioAcked(t *testing.T) {
	h := newHarness(t).acking()
	h.send(0x04, 0x82)
	h.runToIdle()

	require.Equal(t, []phase{
		{StateFreeTime, gpio.High, h.timing.FreeTimeNew},
		{StateStartLow, gpio.Low, h.timing.StartLow},
		{StateStartHigh, gpio.High, h.timing.StartHigh},
	}, h.timer.phases[:3])
	require.Equal(t, []uint8{0, 0, 0, 0}, h.bits(StateHeaderInitLow))
	require.Equal(t, []uint8{0, 1, 0, 0}, h.bits(StateHeaderDestLow))
	require.Equal(t, []uint8{1, 0, 0, 0, 0, 0, 1, 0}, h.bits(StateDataLow))
	require.Equal(t, []uint8{0, 1}, h.bits(StateEOMLow))
	require.Equal(t, []uint8{1, 1}, h.bits(StateAckLow))
	require.Equal(t, 2, h.line.samples)

	require.Equal(t, StateIdle, h.m.State())
	require.False(t, h.m.Busy())
	require.Equal(t, EventSendOK, h.m.TakeEvents())
	require.Equal(t, Events(0), h.m.TakeEvents())
}

func TestScenarioNotAcked(t *testing.T) {
	h := newHarness(t)
	h.line.follower = func() gpio.Level { return gpio.High }
	h.send(0x04, 0x82)
	require.Equal(t, uint8(0), h.m.tx.resends)
	h.runToIdle()

	require.Equal(t, 1+MaxResends, h.count(StateStartLow))
	require.Equal(t, 1+MaxResends, h.count(StateAckVerify))
	frees := h.lows(StateFreeTime)
	require.Len(t, frees, 1+MaxResends)
	require.Equal(t, h.timing.FreeTimeNew, frees[0].ticks)
	for _, p := range frees[1:] {
		require.Equal(t, h.timing.FreeTimeResend, p.ticks)
		require.Equal(t, gpio.High, p.level)
	}
	// The data byte is never reached.
	require.Zero(t, h.count(StateDataLow))

	require.Equal(t, uint8(0), h.m.tx.resends)
	require.False(t, h.m.Busy())
	require.Equal(t, EventSendFailed, h.m.TakeEvents())
}

func TestResendThenAck(t *testing.T) {
	h := newHarness(t)
	var nacks int
	h.line.follower = func() gpio.Level {
		if nacks < 2 {
			nacks++
			return gpio.High
		}
		return gpio.Low
	}
	h.send(0x04, 0x82)
	h.runToIdle()
	require.Equal(t, 3, h.count(StateStartLow))
	require.Equal(t, EventSendOK, h.m.TakeEvents())
	require.Equal(t, uint8(0), h.m.tx.resends)
}

func TestNackMidFrameRestartsWholeFrame(t *testing.T) {
	h := newHarness(t)
	var samples int
	h.line.follower = func() gpio.Level {
		samples++
		// nack the data byte of the first attempt only.
		if samples == 2 {
			return gpio.High
		}
		return gpio.Low
	}
	h.send(0x04, 0x82)
	h.runToIdle()
	require.Equal(t, 2, h.count(StateStartLow))
	require.Equal(t, []uint8{0, 1, 0, 1}, h.bits(StateEOMLow))
	require.Equal(t, EventSendOK, h.m.TakeEvents())
}

func TestBitPhasesPerLength(t *testing.T) {
	for n := 1; n <= MaxMessageLen; n++ {
		h := newHarness(t).acking()
		frame := frameOfLen(n)
		h.send(frame...)
		h.runToIdle()

		require.Equal(t, 1, h.count(StateStartLow))
		require.Equal(t, 8, h.count(StateHeaderInitLow)+h.count(StateHeaderDestLow))
		require.Equal(t, 8*(n-1), h.count(StateDataLow))
		require.Equal(t, n, h.count(StateEOMLow))
		require.Equal(t, n, h.count(StateAckLow))
		lowCount := 0
		for _, p := range h.timer.phases {
			if p.state.IsLow() {
				lowCount++
			}
		}
		require.Equal(t, 1+10*n, lowCount)

		eom := make([]uint8, n)
		eom[n-1] = 1
		require.Equal(t, eom, h.bits(StateEOMLow), "length %d", n)

		var sent []byte
		data := h.bits(StateHeaderInitLow, StateHeaderDestLow, StateDataLow)
		for i := 0; i < len(data); i += 8 {
			var b byte
			for _, bit := range data[i : i+8] {
				b = b<<1 | bit
			}
			sent = append(sent, b)
		}
		require.Equal(t, frame, sent)

		require.Equal(t, EventSendOK, h.m.TakeEvents())
	}
}

func TestBitPeriods(t *testing.T) {
	h := newHarness(t).acking()
	h.send(0x40, 0xa5, 0x00, 0xff)
	h.runToIdle()
	phases := h.timer.phases
	for i, p := range phases {
		switch p.state {
		case StateHeaderInitLow, StateHeaderDestLow, StateDataLow, StateEOMLow:
			require.Equal(t, h.timing.BitTime, p.ticks+phases[i+1].ticks)
			require.Equal(t, gpio.High, phases[i+1].level)
		case StateAckLow:
			require.Equal(t, h.timing.BitTime, p.ticks+phases[i+1].ticks+phases[i+2].ticks)
			require.Equal(t, StateAckVerify, phases[i+2].state)
		}
	}
}

func TestBroadcastAckPolarity(t *testing.T) {
	testCases := []struct {
		name   string
		header byte
		level  gpio.Level
		ack    bool
	}{
		{"direct low", 0x04, gpio.Low, true},
		{"direct high", 0x04, gpio.High, false},
		{"broadcast low", 0x4f, gpio.Low, false},
		{"broadcast high", 0x4f, gpio.High, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.m.tx.msg.buf[0] = tc.header
			h.line.follower = func() gpio.Level { return tc.level }
			h.m.enter(StateAckVerify)
			require.Equal(t, tc.ack, h.m.tx.ack)
			require.Equal(t, h.timing.AckRest, h.timer.phases[0].ticks)
		})
	}
}

func TestBroadcastFrame(t *testing.T) {
	h := newHarness(t)
	// nobody objects to the broadcast.
	h.line.follower = func() gpio.Level { return gpio.High }
	h.send(0x4f, 0x36)
	h.runToIdle()
	require.Equal(t, 1, h.count(StateStartLow))
	require.Equal(t, EventSendOK, h.m.TakeEvents())
}

func TestSendAdmission(t *testing.T) {
	h := newHarness(t).acking()
	require.Equal(t, ErrInvalidLength, h.m.Send(nil))
	require.Equal(t, ErrInvalidLength, h.m.Send(make([]byte, MaxMessageLen+1)))
	require.False(t, h.m.Busy())
	require.Len(t, h.m.sendCh, 0)

	h.send(0x04, 0x82, 0x01)
	for i := 0; i < 12; i++ {
		h.step()
	}
	state, cursor, resends := h.m.State(), h.m.tx.msg, h.m.tx.resends
	require.Equal(t, ErrBusy, h.m.Send([]byte{0x05, 0x99}))
	require.Equal(t, ErrInvalidLength, h.m.Send(nil))
	require.Equal(t, state, h.m.State())
	require.Equal(t, cursor, h.m.tx.msg)
	require.Equal(t, resends, h.m.tx.resends)
	require.Equal(t, 3, h.m.msgLen())
	require.Len(t, h.m.sendCh, 0)

	h.runToIdle()
	require.Equal(t, EventSendOK, h.m.TakeEvents())
	require.NoError(t, h.m.Send([]byte{0x05, 0x99}))
}

func TestIdleIgnoresTimeout(t *testing.T) {
	h := newHarness(t)
	h.m.timeout()
	require.Equal(t, StateIdle, h.m.State())
	require.Empty(t, h.timer.phases)
}

func TestRun(t *testing.T) {
	h := newHarness(t).acking()
	h.timer.fire = true
	evCh := make(chan Events, 4)
	h.m.Notifier = EventPostedFunc(func(ev Events) { evCh <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.m.Run(ctx) }()

	require.NoError(t, h.m.Send([]byte{0x04, 0x82}))
	select {
	case ev := <-evCh:
		require.Equal(t, EventSendOK, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no event posted")
	}
	require.Equal(t, EventSendOK, h.m.TakeEvents())
	require.Equal(t, Events(0), h.m.TakeEvents())

	require.NoError(t, h.m.Send([]byte{0x04}))
	select {
	case ev := <-evCh:
		require.Equal(t, EventSendOK, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no event posted")
	}

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestRunCancelAbandonsTransfer(t *testing.T) {
	h := newHarness(t)
	h.timer.armCh = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.m.Run(ctx) }()

	require.NoError(t, h.m.Send([]byte{0x04}))
	<-h.timer.armCh
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, StateIdle, h.m.State())
	require.False(t, h.m.Busy())
	require.Equal(t, gpio.High, h.line.level)
	require.Equal(t, Events(0), h.m.TakeEvents())
}

func TestRunCancelWithLineError(t *testing.T) {
	h := newHarness(t)
	h.timer.armCh = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.m.Run(ctx) }()

	require.NoError(t, h.m.Send([]byte{0x04}))
	<-h.timer.armCh
	h.line.setErr = errors.New("line stuck")
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, StateIdle, h.m.State())
	require.False(t, h.m.Busy())
	require.NoError(t, h.m.Send([]byte{0x04}))
}
