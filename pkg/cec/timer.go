package cec

import "time"

// SoftTimer implements OneShot with time.Timer.
// Go timers are far coarser than a hardware timer, it's only suitable
// for buses tolerant of the added jitter or for simulation.
type SoftTimer struct {
	timing *Timing
	timer  *time.Timer
}

// NewSoftTimer creates a stopped SoftTimer.
func NewSoftTimer(timing *Timing) *SoftTimer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &SoftTimer{timing: timing, timer: t}
}

// Start implements OneShot.
func (t *SoftTimer) Start(ticks Ticks) {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.timer.Reset(t.timing.Duration(ticks))
}

// C implements OneShot.
func (t *SoftTimer) C() <-chan time.Time {
	return t.timer.C
}
