package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cec.go/pkg/ec"
	"github.com/robotalks/cec.go/pkg/msgs"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// DefaultCommandExpiration is the default expiration expecting a reply.
const DefaultCommandExpiration = time.Second

// Discover enumerates devices announced on the meta topics.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) (res []msgs.DeviceInfo, err error) {
	resCh := make(chan msgs.DeviceInfo, 1)
	sub := q.Sub("+/+"+TopicMeta, Handler(func(topic string, payload []byte) {
		ref, ok := msgs.ParseDeviceRef(strings.TrimSuffix(topic, TopicMeta))
		if !ok || len(payload) == 0 {
			return
		}
		info := msgs.DeviceInfo{Ref: ref}
		if meta, err := msgs.DecodeMeta(payload); err == nil {
			info.Meta = *meta
		}
		select {
		case resCh <- info:
		case <-time.After(time.Second):
		}
	}))
	defer sub.Close()

	if timeout == 0 {
		timeout = DefaultDiscoverTimeout
	}
	expired := time.After(timeout)
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-expired:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// Result is the result of a host command.
type Result struct {
	Err  error
	Res  ec.Result
	Data []byte
}

// Call is a host command waiting for reply.
type Call struct {
	seq      uint32
	expireAt time.Time
	resultCh chan Result
}

// ResultChan returns the chan to retrieve result.
func (c *Call) ResultChan() <-chan Result {
	return c.resultCh
}

// Conn is the host side connection to a device bridged to MQTT.
type Conn struct {
	Queue      *Queue
	Ref        msgs.DeviceRef
	Expiration time.Duration

	seq     uint32
	calls   map[uint32]*Call
	lock    sync.Mutex
	eventCh chan *msgs.HostEvent
}

// NewConn creates a Conn with a connected Queue.
func NewConn(q *Queue, ref msgs.DeviceRef) *Conn {
	c := &Conn{
		Queue:      q,
		Ref:        ref,
		Expiration: DefaultCommandExpiration,
		calls:      make(map[uint32]*Call),
		eventCh:    make(chan *msgs.HostEvent, 16),
	}
	q.Sub(ref.Name()+TopicReply, c.handleReply)
	q.Sub(ref.Name()+TopicEvent, c.handleEvent)
	return c
}

// EventChan retrieves events.
func (c *Conn) EventChan() <-chan *msgs.HostEvent {
	return c.eventCh
}

// Do sends a host command.
func (c *Conn) Do(cmd ec.Command, params []byte) *Call {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.seq++; c.seq == 0 {
		c.seq++
	}
	call := &Call{
		seq:      c.seq,
		expireAt: time.Now().Add(c.Expiration),
		resultCh: make(chan Result, 1),
	}
	data, err := msgs.Encode(msgs.NewHostRequest(call.seq, cmd, params))
	if err == nil {
		err = waitToken(c.Queue.Pub(c.Ref.Name()+TopicCmd, data))
	}
	if err != nil {
		call.resultCh <- Result{Err: err}
		return call
	}
	c.calls[call.seq] = call
	return call
}

// Run implements Runnable, expiring calls without replies.
func (c *Conn) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Expiration / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.purgeExpired(now)
		}
	}
}

func (c *Conn) purgeExpired(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for seq, call := range c.calls {
		if call.expireAt.After(now) {
			continue
		}
		delete(c.calls, seq)
		call.resultCh <- Result{Err: context.DeadlineExceeded}
	}
}

func (c *Conn) handleReply(topic string, payload []byte) {
	resp, err := msgs.DecodeResponse(payload)
	if err != nil {
		glog.Warningf("%s: bad reply: %v", topic, err)
		return
	}
	c.lock.Lock()
	call := c.calls[resp.Seq]
	delete(c.calls, resp.Seq)
	c.lock.Unlock()
	if call == nil {
		return
	}
	call.resultCh <- Result{Res: resp.HostResult(), Data: resp.Data, Err: resp.HostResult().Err()}
}

func (c *Conn) handleEvent(topic string, payload []byte) {
	ev, err := msgs.DecodeEvent(payload)
	if err != nil {
		glog.Warningf("%s: bad event: %v", topic, err)
		return
	}
	select {
	case c.eventCh <- ev:
	default:
		glog.Warningf("%s: event dropped", topic)
	}
}
