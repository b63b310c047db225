package hostlink

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/cec.go/pkg/ec"
)

// Device is the embedded controller side of the link.
// It serves host commands from an ec.Server and forwards its events.
type Device struct {
	Name string

	link   *Link
	server *ec.Server
}

// NewDevice creates a Device serving the link.
func NewDevice(name string, link *Link, srv *ec.Server) *Device {
	d := &Device{Name: name, link: link, server: srv}
	link.Handler = d
	return d
}

// Link gets the wrapped Link.
func (d *Device) Link() *Link {
	return d.link
}

// HandleFrame implements FrameHandler.
func (d *Device) HandleFrame(ctx context.Context, f *Frame) {
	if f.Code != CodeHostCmd {
		glog.V(2).Infof("%s: unexpected frame code 0x%02x", d.Name, f.Code)
		return
	}
	res, out := ec.ResInvalidParam, []byte(nil)
	if cmd, params, err := f.ParseCommand(); err == nil {
		res, out = d.server.Dispatch(cmd, params)
	}
	if err := d.link.Send(ReplyFrame(f.Seq, res, out)); err != nil {
		glog.Warningf("%s: reply error: %v", d.Name, err)
	}
}

// SendEvent implements ec.EventSink.
func (d *Device) SendEvent(typ ec.EventType, payload []byte) error {
	return d.link.Send(EventFrame(typ, payload))
}

// Run implements Runnable.
func (d *Device) Run(ctx context.Context) error {
	return d.link.Run(ctx)
}
