package cec

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Ticks is a count of timer clock periods.
type Ticks uint32

// Protocol timings in microseconds.
const (
	nominalBitTimeUs    = 2400
	startBitLowUs       = 3700
	startBitHighUs      = 800
	dataZeroLowUs       = 1500
	dataZeroHighUs      = 900
	dataOneLowUs        = 600
	dataOneHighUs       = 1800
	nominalSampleTimeUs = 1050

	freeTimeResendBits = 3
	freeTimeNewBits    = 5
)

// Window is an inclusive tick range a received phase must fall into.
type Window struct {
	Min, Max Ticks
}

// Contains checks if t is inside the window.
func (w Window) Contains(t Ticks) bool {
	return t >= w.Min && t <= w.Max
}

// WindowError reports a nominal phase outside its protocol window.
type WindowError struct {
	Phase  string
	Ticks  Ticks
	Window Window
}

// Error implements error.
func (e *WindowError) Error() string {
	return fmt.Sprintf("%s: %d ticks outside [%d, %d]", e.Phase, e.Ticks, e.Window.Min, e.Window.Max)
}

// ErrTimerResolution indicates the timer clock is too slow for the protocol.
var ErrTimerResolution = errors.New("timer clock too slow for CEC timing")

// Timing holds every protocol interval converted to timer ticks.
// It's computed once from the timer clock, lookups never divide.
type Timing struct {
	Freq physic.Frequency

	BitTime        Ticks
	FreeTimeResend Ticks
	FreeTimeNew    Ticks
	StartLow       Ticks
	StartHigh      Ticks
	// Low and High are indexed by the bit value being sent.
	Low  [2]Ticks
	High [2]Ticks
	// AckHigh aims at the middle of the safe sample window.
	AckHigh Ticks
	// AckRest waits from the sample point to the end of the bit.
	AckRest Ticks

	StartLowWindow      Window
	StartDurationWindow Window
	ZeroLowWindow       Window
	OneLowWindow        Window
	BitDurationWindow   Window

	freqDiv10k uint32
}

// NewTiming computes the timing base from the timer clock frequency.
func NewTiming(freq physic.Frequency) (*Timing, error) {
	t := &Timing{
		Freq:       freq,
		freqDiv10k: uint32(freq / (10 * physic.KiloHertz)),
	}
	if t.freqDiv10k == 0 {
		return nil, ErrTimerResolution
	}
	t.BitTime = t.ticks(nominalBitTimeUs)
	t.FreeTimeResend = freeTimeResendBits * t.BitTime
	t.FreeTimeNew = freeTimeNewBits * t.BitTime
	t.StartLow = t.ticks(startBitLowUs)
	t.StartHigh = t.ticks(startBitHighUs)
	t.Low = [2]Ticks{t.ticks(dataZeroLowUs), t.ticks(dataOneLowUs)}
	t.High = [2]Ticks{t.ticks(dataZeroHighUs), t.ticks(dataOneHighUs)}
	t.AckHigh = (t.Low[1]+t.Low[0])/2 - t.Low[1]
	t.AckRest = t.BitTime - t.ticks(nominalSampleTimeUs)

	t.StartLowWindow = Window{t.ticks(3500), t.ticks(3900)}
	t.StartDurationWindow = Window{t.ticks(4300), t.ticks(5700)}
	t.ZeroLowWindow = Window{t.ticks(1300), t.ticks(1700)}
	t.OneLowWindow = Window{t.ticks(400), t.ticks(800)}
	t.BitDurationWindow = Window{t.ticks(2050), t.ticks(2750)}

	if t.AckHigh == 0 {
		return nil, ErrTimerResolution
	}
	return t, nil
}

// MustNewTiming is NewTiming which panics on error.
func MustNewTiming(freq physic.Frequency) *Timing {
	t, err := NewTiming(freq)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Timing) ticks(us uint32) Ticks {
	return Ticks(us * t.freqDiv10k / 100)
}

// Duration converts ticks to wall-clock duration.
func (t *Timing) Duration(ticks Ticks) time.Duration {
	return time.Duration(ticks) * t.Freq.Period()
}

// Check verifies every nominal phase lies in its window.
// Rounding on a coarse clock is the only way this fails.
func (t *Timing) Check() error {
	checks := []struct {
		phase  string
		ticks  Ticks
		window Window
	}{
		{"start low", t.StartLow, t.StartLowWindow},
		{"start bit", t.StartLow + t.StartHigh, t.StartDurationWindow},
		{"zero low", t.Low[0], t.ZeroLowWindow},
		{"zero bit", t.Low[0] + t.High[0], t.BitDurationWindow},
		{"one low", t.Low[1], t.OneLowWindow},
		{"one bit", t.Low[1] + t.High[1], t.BitDurationWindow},
		{"ack bit", t.Low[1] + t.AckHigh + t.AckRest, t.BitDurationWindow},
	}
	for _, c := range checks {
		if !c.window.Contains(c.ticks) {
			return &WindowError{Phase: c.phase, Ticks: c.ticks, Window: c.window}
		}
	}
	return nil
}
