package cec

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// OpenDrain emulates an open-drain Line on a GPIO pin: the pin is an output
// driving low for gpio.Low, and an input with pull-up for gpio.High so the
// bus can be held low by another device.
type OpenDrain struct {
	Pin gpio.PinIO
}

// NewOpenDrain creates an OpenDrain with the line released.
func NewOpenDrain(pin gpio.PinIO) (*OpenDrain, error) {
	l := &OpenDrain{Pin: pin}
	if err := l.Set(gpio.High); err != nil {
		return nil, err
	}
	return l, nil
}

// Set implements Line.
func (l *OpenDrain) Set(level gpio.Level) error {
	if level == gpio.Low {
		return l.Pin.Out(gpio.Low)
	}
	return l.Pin.In(gpio.PullUp, gpio.NoEdge)
}

// Sample implements Line.
func (l *OpenDrain) Sample() gpio.Level {
	return l.Pin.Read()
}

func (l *OpenDrain) String() string {
	return fmt.Sprintf("cec(%s)", l.Pin)
}
