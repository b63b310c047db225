// Package cec implements a CEC initiator bit-banged over a GPIO line.
package cec

// CEC is the single-wire control bus carried over HDMI. This package drives
// the bus as an initiator using only an open-drain line and a one-shot timer:
// every state asserts a line level on entry and re-arms the timer, and every
// timer expiry moves the machine to its next state.
//
// A frame is sent at most 1+MaxResends times. The outcome is reported
// asynchronously through the event set, which the host drains with
// TakeEvents.
//
// Receiving (follower) frames is not supported.
