// Package device sets up the CEC daemon from flags and environment.
package device

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/robotalks/cec.go/pkg/cec"
	"github.com/robotalks/cec.go/pkg/ec"
	"github.com/robotalks/cec.go/pkg/env"
	fx "github.com/robotalks/cec.go/pkg/framework"
	"github.com/robotalks/cec.go/pkg/hostlink"
	"github.com/robotalks/cec.go/pkg/hostlink/serial"
	"github.com/robotalks/cec.go/pkg/hostlink/websocket"
	"github.com/robotalks/cec.go/pkg/msgs"
	"github.com/robotalks/cec.go/pkg/mqtt"
)

// Config provides options to set up the daemon.
type Config struct {
	Info msgs.DeviceInfo

	// Pin is the GPIO pin name of the CEC line, e.g. GPIO17.
	Pin string
	// Clock is the tick rate of the transmit timer.
	Clock physic.Frequency

	// SerialPort serves the host link on a serial port.
	SerialPort string
	BaudRate   int
	// WebsocketAddr serves host links on websocket, e.g. :8080.
	WebsocketAddr string
	// MQTTBrokerURL bridges host commands and events to MQTT,
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
}

var defaultConfig = Config{
	Info: msgs.DeviceInfo{
		Ref:  msgs.DeviceRef{Type: "cec"},
		Meta: msgs.DeviceMeta{Description: "CEC initiator"},
	},
	Clock:    physic.MegaHertz,
	BaudRate: serial.DefaultBaudRate,
}

func init() {
	defaultConfig.Info.Ref.ID = env.MachineID()
	if val := os.Getenv("CEC_ID"); val != "" {
		defaultConfig.Info.Ref.ID = val
	}
	if val := os.Getenv("CEC_GPIO"); val != "" {
		defaultConfig.Pin = val
	}
	if val := os.Getenv("CEC_CLOCK"); val != "" {
		if err := defaultConfig.Clock.Set(val); err != nil {
			log.Printf("ignore CEC_CLOCK: %v", err)
		}
	}
	if val := os.Getenv("CEC_SERIAL"); val != "" {
		defaultConfig.SerialPort = val
	}
	if val := os.Getenv("CEC_BAUD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			defaultConfig.BaudRate = n
		} else {
			log.Printf("ignore CEC_BAUD: %v", err)
		}
	}
	if val := os.Getenv("CEC_WS_ADDR"); val != "" {
		defaultConfig.WebsocketAddr = val
	}
	if val := os.Getenv("CEC_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Info.Ref.ID, "id", defaultConfig.Info.Ref.ID, "Device ID")
	flag.StringVar(&defaultConfig.Pin, "gpio", defaultConfig.Pin, "GPIO pin of the CEC line")
	flag.Var(&defaultConfig.Clock, "clock", "Tick rate of the transmit timer")
	flag.StringVar(&defaultConfig.SerialPort, "serial", defaultConfig.SerialPort, "Serial port for host link")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate of serial port")
	flag.StringVar(&defaultConfig.WebsocketAddr, "ws", defaultConfig.WebsocketAddr, "Listen address for websocket host links")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Env is the running environment of the daemon.
type Env struct {
	Config    *Config
	Timing    *cec.Timing
	Machine   *cec.Machine
	Server    *ec.Server
	Runnables []fx.Runnable
}

// NewEnv opens the GPIO pin and creates Env.
func (c *Config) NewEnv() (*Env, error) {
	if c.Pin == "" {
		return nil, errors.New("GPIO pin must be specified")
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "init host drivers")
	}
	pin := gpioreg.ByName(c.Pin)
	if pin == nil {
		return nil, errors.Errorf("unknown GPIO pin %q", c.Pin)
	}
	line, err := cec.NewOpenDrain(pin)
	if err != nil {
		return nil, errors.Wrapf(err, "setup CEC line on %s", c.Pin)
	}
	return c.NewEnvWithLine(line)
}

// openSerialLink opens the port of the serial host link.
var openSerialLink = func(name string, baudRate int) (*hostlink.Link, io.Closer, error) {
	link, port, err := serial.NewLink(name, baudRate)
	if err != nil {
		return nil, nil, err
	}
	return link, port, nil
}

// NewEnvWithLine creates Env driving the specified line.
func (c *Config) NewEnvWithLine(line cec.Line) (*Env, error) {
	if !c.Info.Ref.IsValid() {
		return nil, errors.Errorf("invalid device %q", c.Info.Ref.Name())
	}
	timing, err := cec.NewTiming(c.Clock)
	if err != nil {
		return nil, errors.Wrapf(err, "clock %s", c.Clock)
	}
	if err := timing.Check(); err != nil {
		return nil, errors.Wrapf(err, "clock %s", c.Clock)
	}
	e := &Env{
		Config:  c,
		Timing:  timing,
		Machine: cec.NewMachine(line, cec.NewSoftTimer(timing), timing),
		Server:  ec.NewServer(),
	}
	cec.RegisterHost(e.Server, e.Machine)
	e.Runnables = append(e.Runnables,
		fx.NamedRun("machine", e.Machine),
		fx.NamedRun("events", e.Server))

	// opened ports are closed if a later transport fails.
	var opened []io.Closer
	fail := func(err error) (*Env, error) {
		for _, closer := range opened {
			closer.Close()
		}
		return nil, err
	}

	if c.SerialPort != "" {
		link, port, err := openSerialLink(c.SerialPort, c.BaudRate)
		if err != nil {
			return nil, err
		}
		opened = append(opened, port)
		dev := hostlink.NewDevice("serial:"+c.SerialPort, link, e.Server)
		e.Server.AddSink(dev)
		e.Runnables = append(e.Runnables, fx.NamedRun(dev.Name, fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, port, func() error { return dev.Run(ctx) })
		})))
	}
	if c.WebsocketAddr != "" {
		e.Runnables = append(e.Runnables, websocket.NewServer(c.WebsocketAddr, c.Info.Ref.Name(), e.Server))
	}
	if c.MQTTBrokerURL != "" {
		info := c.Info
		info.Meta.Clock, info.Meta.Pin = c.Clock.String(), c.Pin
		bridge, err := mqtt.NewBridge(c.MQTTBrokerURL, info, e.Server)
		if err != nil {
			return fail(errors.Wrap(err, "create MQTT bridge"))
		}
		e.Server.AddSink(bridge)
		e.Runnables = append(e.Runnables, bridge)
	}
	if len(e.Runnables) == 2 { // machine and events only
		return fail(errors.New("at least one of serial, websocket or MQTT is required"))
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

// Run runs everything until stopped by a signal or a failure.
func (e *Env) Run() {
	fx.RunOrFail(e.Runnables...)
}
