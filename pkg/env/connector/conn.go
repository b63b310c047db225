package connector

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cec.go/pkg/ec"
	"github.com/robotalks/cec.go/pkg/hostlink"
	"github.com/robotalks/cec.go/pkg/msgs"
	"github.com/robotalks/cec.go/pkg/mqtt"
)

// Event is an event reported by the device.
type Event struct {
	Type    ec.EventType
	Payload []byte
}

// Conn is the connection to a daemon.
type Conn interface {
	// Do executes a host command and returns its output.
	Do(ctx context.Context, cmd ec.Command, params []byte) ([]byte, error)
	// Events retrieves events.
	Events() <-chan Event
	// Status describes the connection.
	Status() string
	io.Closer
}

const eventBacklog = 16

func postEvent(events chan Event, ev Event) {
	select {
	case events <- ev:
	default:
		glog.Warningf("event %d dropped", ev.Type)
	}
}

// linkConn is a Conn over a host link.
type linkConn struct {
	target string
	host   *hostlink.Host
	closer io.Closer
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}
}

func newLinkConn(target string, link *hostlink.Link, closer io.Closer, timeout time.Duration) (*linkConn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &linkConn{
		target: target,
		host:   hostlink.NewHost(link),
		closer: closer,
		cancel: cancel,
		events: make(chan Event, eventBacklog),
		done:   make(chan struct{}),
	}
	readyCh := make(chan struct{})
	go c.pump(readyCh)
	go func() {
		defer close(c.done)
		if err := c.host.Run(ctx); err != nil && err != context.Canceled {
			glog.Errorf("%s: %v", target, err)
		}
	}()
	select {
	case <-readyCh:
		return c, nil
	case <-c.done:
	case <-time.After(timeout):
	}
	c.Close()
	return nil, errors.Errorf("%s: link not ready", target)
}

// pump consumes states and events of the Host until it stops.
func (c *linkConn) pump(readyCh chan struct{}) {
	ready := false
	for {
		select {
		case <-c.done:
			return
		case state := <-c.host.StateChan():
			glog.V(2).Infof("%s: %s", c.target, state)
			if state.IsReady() && !ready {
				ready = true
				close(readyCh)
			}
		case ev := <-c.host.EventChan():
			postEvent(c.events, Event{Type: ev.Type, Payload: ev.Payload})
		}
	}
}

func (c *linkConn) Do(ctx context.Context, cmd ec.Command, params []byte) ([]byte, error) {
	select {
	case r := <-c.host.Do(cmd, params).ResultChan():
		return r.Data, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *linkConn) Events() <-chan Event {
	return c.events
}

func (c *linkConn) Status() string {
	return fmt.Sprintf("%s: %s", c.target, c.host.Link().State())
}

func (c *linkConn) Close() error {
	c.cancel()
	<-c.done
	return c.closer.Close()
}

// mqttConn is a Conn over MQTT.
type mqttConn struct {
	queue  *mqtt.Queue
	conn   *mqtt.Conn
	cancel context.CancelFunc
	events chan Event
}

func newMQTTConn(brokerURL string, ref msgs.DeviceRef, timeout time.Duration) (*mqttConn, error) {
	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	c := &mqttConn{
		queue:  q,
		conn:   mqtt.NewConn(q, ref),
		events: make(chan Event, eventBacklog),
	}
	c.conn.Expiration = timeout
	token := q.Connect()
	if !token.WaitTimeout(timeout) {
		q.Close()
		return nil, errors.Errorf("connect %s timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		q.Close()
		return nil, errors.Wrapf(err, "connect %s", brokerURL)
	}
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(context.Background())
	go c.conn.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-c.conn.EventChan():
				postEvent(c.events, Event{Type: ev.EventType(), Payload: ev.Data})
			}
		}
	}()
	return c, nil
}

func (c *mqttConn) Do(ctx context.Context, cmd ec.Command, params []byte) ([]byte, error) {
	select {
	case r := <-c.conn.Do(cmd, params).ResultChan():
		return r.Data, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *mqttConn) Events() <-chan Event {
	return c.events
}

func (c *mqttConn) Status() string {
	state := "disconnected"
	if c.queue.Client.IsConnected() {
		state = "connected"
	}
	return fmt.Sprintf("%s: %s", c.conn.Ref.Name(), state)
}

func (c *mqttConn) Close() error {
	c.cancel()
	return c.queue.Close()
}
