// Package serial runs host links over serial ports.
package serial

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/robotalks/cec.go/pkg/hostlink"
)

// DefaultBaudRate is the default baud rate of the port.
const DefaultBaudRate = 115200

// ReadTimeout bounds each read, and it's also how long the link waits
// in the middle of a frame.
const ReadTimeout = hostlink.DefaultSyncTimeout

// Open opens a serial port in 8N1 mode with read timeout.
func Open(name string, baudRate int) (serial.Port, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "set read timeout on %s", name)
	}
	return port, nil
}

// NewLink opens the port and creates a polling Link over it.
// The caller closes the returned port after the link stops.
func NewLink(name string, baudRate int) (*hostlink.Link, serial.Port, error) {
	port, err := Open(name, baudRate)
	if err != nil {
		return nil, nil, err
	}
	link := hostlink.NewLink(port)
	link.ReadTimeout = true
	link.Timeout = ReadTimeout + 50*time.Millisecond
	return link, port, nil
}
