package cec

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
)

// MaxResends is the number of resends after the first attempt.
const MaxResends = 5

// Line is the open-drain bus line.
type Line interface {
	// Set drives the line low with gpio.Low or releases it with gpio.High.
	Set(gpio.Level) error
	// Sample reads the line level.
	Sample() gpio.Level
}

// OneShot is a re-armable one-shot timer.
type OneShot interface {
	// Start (re)arms the timer to expire after the ticks.
	Start(Ticks)
	// C delivers expirations.
	C() <-chan time.Time
}

type transmit struct {
	msg transfer
	// len is accessed atomically, non-zero means a frame is in flight.
	len     uint32
	resends uint8
	ack     bool
}

// Machine is the CEC initiator state machine.
// All transitions happen inside Run, Send is safe to call from any goroutine.
type Machine struct {
	Line     Line
	Timer    OneShot
	Timing   *Timing
	Notifier EventNotifier

	state  uint32
	tx     transmit
	events eventSet
	sendCh chan struct{}
}

// NewMachine creates a Machine in idle state.
func NewMachine(line Line, timer OneShot, timing *Timing) *Machine {
	return &Machine{
		Line:   line,
		Timer:  timer,
		Timing: timing,
		sendCh: make(chan struct{}, 1),
	}
}

// State gets the current state.
func (m *Machine) State() State {
	return State(atomic.LoadUint32(&m.state))
}

// Busy indicates a frame is in flight.
func (m *Machine) Busy() bool {
	return atomic.LoadUint32(&m.tx.len) != 0
}

// Send admits a frame for sending. It never blocks: the frame is either
// accepted, or rejected with ErrInvalidLength or ErrBusy without side effects.
func (m *Machine) Send(msg []byte) error {
	if len(msg) == 0 || len(msg) > MaxMessageLen {
		return ErrInvalidLength
	}
	if !atomic.CompareAndSwapUint32(&m.tx.len, 0, uint32(len(msg))) {
		return ErrBusy
	}
	copy(m.tx.msg.buf[:], msg)
	if glog.V(2) {
		glog.Infof("send CEC: % x", msg)
	}
	// At most one send is admitted, so the slot is always free.
	m.sendCh <- struct{}{}
	return nil
}

// TakeEvents reads and clears pending events.
func (m *Machine) TakeEvents() Events {
	return m.events.take()
}

// Run implements Runnable. It is the only context mutating the state.
// Cancelling it abandons an in-flight frame without reporting it.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.Line.Set(gpio.High); err != nil {
		return err
	}
	m.enter(StateIdle)
	defer m.abort()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.Timer.C():
			m.timeout()
		case <-m.sendCh:
			m.enter(StateFreeTime)
		}
	}
}

func (m *Machine) abort() {
	if m.State() == StateIdle {
		return
	}
	glog.Warningf("CEC transfer abandoned in %s", m.State())
	if err := m.Line.Set(gpio.High); err != nil {
		glog.Warningf("CEC line release error: %v", err)
	}
	m.tx.resends = 0
	m.enter(StateIdle)
	atomic.StoreUint32(&m.tx.len, 0)
}

func (m *Machine) msgLen() int {
	return int(atomic.LoadUint32(&m.tx.len))
}

func (m *Machine) eomBit() uint8 {
	if m.tx.msg.eom(m.msgLen()) {
		return 1
	}
	return 0
}

func (m *Machine) drive(level gpio.Level, timeout Ticks) {
	if err := m.Line.Set(level); err != nil {
		glog.Warningf("CEC line set %v error: %v", level, err)
	}
	m.Timer.Start(timeout)
}

func (m *Machine) enter(s State) {
	atomic.StoreUint32(&m.state, uint32(s))
	t := m.Timing
	switch s {
	case StateIdle:
		m.tx.msg.reset()
	case StateFreeTime:
		if m.tx.resends > 0 {
			m.drive(gpio.High, t.FreeTimeResend)
		} else {
			m.drive(gpio.High, t.FreeTimeNew)
		}
	case StateStartLow:
		m.tx.msg.reset()
		m.drive(gpio.Low, t.StartLow)
	case StateStartHigh:
		m.drive(gpio.High, t.StartHigh)
	case StateHeaderInitLow, StateHeaderDestLow, StateDataLow:
		m.drive(gpio.Low, t.Low[m.tx.msg.currentBit()])
	case StateHeaderInitHigh, StateHeaderDestHigh, StateDataHigh:
		m.drive(gpio.High, t.High[m.tx.msg.currentBit()])
	case StateEOMLow:
		m.drive(gpio.Low, t.Low[m.eomBit()])
	case StateEOMHigh:
		m.drive(gpio.High, t.High[m.eomBit()])
	case StateAckLow:
		m.drive(gpio.Low, t.Low[1])
	case StateAckHigh:
		m.drive(gpio.High, t.AckHigh)
	case StateAckVerify:
		// A follower acknowledges by holding the line low, but any follower
		// rejects a broadcast the same way.
		m.tx.ack = m.Line.Sample() == gpio.Low
		if m.tx.msg.destination() == BroadcastAddr {
			m.tx.ack = !m.tx.ack
		}
		m.Timer.Start(t.AckRest)
	}
}

func (m *Machine) timeout() {
	switch m.State() {
	case StateIdle:
	case StateFreeTime:
		m.enter(StateStartLow)
	case StateStartLow:
		m.enter(StateStartHigh)
	case StateStartHigh:
		m.enter(StateHeaderInitLow)
	case StateHeaderInitLow:
		m.enter(StateHeaderInitHigh)
	case StateHeaderInitHigh:
		m.tx.msg.advance()
		if m.tx.msg.bit == 4 {
			m.enter(StateHeaderDestLow)
		} else {
			m.enter(StateHeaderInitLow)
		}
	case StateHeaderDestLow:
		m.enter(StateHeaderDestHigh)
	case StateHeaderDestHigh:
		m.tx.msg.advance()
		if m.tx.msg.byte == 1 {
			m.enter(StateEOMLow)
		} else {
			m.enter(StateHeaderDestLow)
		}
	case StateDataLow:
		m.enter(StateDataHigh)
	case StateDataHigh:
		m.tx.msg.advance()
		if m.tx.msg.bit == 0 {
			m.enter(StateEOMLow)
		} else {
			m.enter(StateDataLow)
		}
	case StateEOMLow:
		m.enter(StateEOMHigh)
	case StateEOMHigh:
		m.enter(StateAckLow)
	case StateAckLow:
		m.enter(StateAckHigh)
	case StateAckHigh:
		m.enter(StateAckVerify)
	case StateAckVerify:
		switch {
		case m.tx.ack && !m.tx.msg.eom(m.msgLen()):
			m.enter(StateDataLow)
		case m.tx.ack:
			m.finish(EventSendOK)
		case m.tx.resends < MaxResends:
			m.tx.resends++
			glog.V(2).Infof("CEC no ack, resend %d", m.tx.resends)
			m.enter(StateFreeTime)
		default:
			m.finish(EventSendFailed)
		}
	}
}

// finish ends the transfer and frees the transmit context.
func (m *Machine) finish(ev Events) {
	m.tx.resends = 0
	m.enter(StateIdle)
	atomic.StoreUint32(&m.tx.len, 0)
	glog.V(2).Infof("CEC transfer done: %s", ev)
	m.events.set(ev)
	if n := m.Notifier; n != nil {
		n.EventPosted(ev)
	}
}
