package mqtt

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cec.go/pkg/ec"
	"github.com/robotalks/cec.go/pkg/msgs"
)

// Topic suffixes under the device name.
const (
	TopicCmd   = "/cmd"
	TopicReply = "/reply"
	TopicEvent = "/event"
	TopicMeta  = "/meta"
)

// DefaultPublishTimeout bounds publishing an event while the broker is
// unreachable, so other sinks of the server keep receiving events.
const DefaultPublishTimeout = time.Second

// Bridge serves host commands of an ec.Server from MQTT and publishes its
// events. The retained meta topic announces the device; it's cleared by
// the will when the connection drops.
type Bridge struct {
	Queue          *Queue
	Info           msgs.DeviceInfo
	PublishTimeout time.Duration

	server   *ec.Server
	metaJSON []byte
}

// NewBridge creates a Bridge connecting to brokerURL.
func NewBridge(brokerURL string, info msgs.DeviceInfo, srv *ec.Server) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+info.Ref.Name()+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("cec:" + info.Ref.Name())
	}
	return newBridge(NewQueue(opts, topicPrefix), info, srv)
}

func newBridge(q *Queue, info msgs.DeviceInfo, srv *ec.Server) (*Bridge, error) {
	meta, err := msgs.EncodeMeta(&info.Meta)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		Queue:          q,
		Info:           info,
		PublishTimeout: DefaultPublishTimeout,
		server:         srv,
		metaJSON:       meta,
	}
	q.OnConnect = func(*Queue) { b.announce() }
	return b, nil
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "mqtt:" + b.Info.Ref.Name()
}

// SendEvent implements ec.EventSink.
func (b *Bridge) SendEvent(typ ec.EventType, payload []byte) error {
	data, err := msgs.Encode(msgs.NewHostEvent(typ, payload))
	if err != nil {
		return err
	}
	return waitTokenTimeout(b.Queue.Pub(b.Info.Ref.Name()+TopicEvent, data), b.PublishTimeout)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(b.Info.Ref.Name()+TopicCmd, b.handleCmd)
	if err := waitToken(b.Queue.Connect()); err != nil {
		sub.Close()
		return err
	}
	<-ctx.Done()
	sub.Close()
	waitToken(b.Queue.PubWith(b.Info.Ref.Name()+TopicMeta, nil, 1, true))
	b.Queue.Close()
	return ctx.Err()
}

func (b *Bridge) announce() {
	b.Queue.PubWith(b.Info.Ref.Name()+TopicMeta, b.metaJSON, 1, true)
}

func (b *Bridge) handleCmd(topic string, payload []byte) {
	req, err := msgs.DecodeRequest(payload)
	if err != nil {
		glog.Warningf("%s: bad request: %v", topic, err)
		return
	}
	res, out := b.server.Dispatch(req.HostCommand(), req.Params)
	glog.V(2).Infof("%s: seq=%d cmd=0x%04x result=%s", topic, req.Seq, req.Command, res)
	data, err := msgs.Encode(msgs.NewHostResponse(req.Seq, res, out))
	if err != nil {
		glog.Errorf("%s: encode reply error: %v", topic, err)
		return
	}
	b.Queue.Pub(b.Info.Ref.Name()+TopicReply, data)
}
