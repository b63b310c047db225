// Package connector sets up connections to a CEC daemon from flags and
// environment.
package connector

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/robotalks/cec.go/pkg/hostlink/serial"
	"github.com/robotalks/cec.go/pkg/hostlink/websocket"
	"github.com/robotalks/cec.go/pkg/msgs"
	"github.com/robotalks/cec.go/pkg/mqtt"
)

// Config provides common options to connect to a daemon.
type Config struct {
	// URL locates the daemon, one of
	//   serial:///dev/ttyUSB0?baud=115200
	//   ws://host:port/link
	//   mqtt://host:port/topic-prefix/
	URL string
	// Device is TYPE/ID of the device on MQTT.
	Device string
	// Timeout bounds connecting and each command.
	Timeout time.Duration
}

var defaultConfig = Config{
	URL:     "mqtt://localhost:1883/cec/",
	Timeout: time.Second,
}

func init() {
	if val := os.Getenv("CEC_URL"); val != "" {
		defaultConfig.URL = val
	}
	if val := os.Getenv("CEC_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "url", defaultConfig.URL, "URL of the CEC daemon.")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Device TYPE/ID on MQTT.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Connect and command timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// IsMQTT indicates the URL is an MQTT broker.
func (c *Config) IsMQTT() bool {
	u, err := url.Parse(c.URL)
	return err == nil && (u.Scheme == "mqtt" || u.Scheme == "mqtts")
}

// Connect connects to the daemon.
func (c *Config) Connect() (Conn, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	switch u.Scheme {
	case "serial":
		baud := serial.DefaultBaudRate
		if val := u.Query().Get("baud"); val != "" {
			if baud, err = strconv.Atoi(val); err != nil {
				return nil, errors.Wrap(err, "invalid baud rate")
			}
		}
		name := u.Host + u.Path
		link, port, err := serial.NewLink(name, baud)
		if err != nil {
			return nil, err
		}
		return newLinkConn(name, link, port, c.Timeout)
	case "ws", "wss":
		link, conn, err := websocket.Dial(c.URL)
		if err != nil {
			return nil, err
		}
		return newLinkConn(c.URL, link, conn, c.Timeout)
	case "mqtt", "mqtts":
		ref, ok := msgs.ParseDeviceRef(c.Device)
		if !ok {
			return nil, errors.Errorf("invalid device %q, expect TYPE/ID", c.Device)
		}
		return newMQTTConn(c.URL, ref, c.Timeout)
	}
	return nil, errors.Errorf("unknown URL scheme: %q", u.Scheme)
}

// MustConnect connects to the daemon and fails on error.
func (c *Config) MustConnect() Conn {
	conn, err := c.Connect()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Discover enumerates devices on MQTT.
func (c *Config) Discover(ctx context.Context) ([]msgs.DeviceInfo, error) {
	if !c.IsMQTT() {
		return nil, errors.New("discovery requires an MQTT URL")
	}
	q, err := mqtt.NewQueueFromURL(c.URL)
	if err != nil {
		return nil, err
	}
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		return nil, token.Error()
	}
	defer q.Close()
	return mqtt.Discover(ctx, q, c.Timeout/2)
}
