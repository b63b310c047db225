// Package websocket runs host links over websocket connections.
package websocket

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/cec.go/pkg/framework"
	"github.com/robotalks/cec.go/pkg/ec"
	"github.com/robotalks/cec.go/pkg/hostlink"
)

// DefaultPath is the HTTP path serving device links.
const DefaultPath = "/link"

// Handler serves each websocket connection as a Device of srv,
// which receives events while connected.
func Handler(name string, srv *ec.Server) websocket.Handler {
	return func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		peer := conn.Request().RemoteAddr
		dev := hostlink.NewDevice(name+"@"+peer, hostlink.NewLink(conn), srv)
		srv.AddSink(dev)
		defer srv.RemoveSink(dev)
		glog.Infof("%s: connected", dev.Name)
		err := dev.Run(conn.Request().Context())
		glog.Infof("%s: disconnected: %v", dev.Name, err)
	}
}

// Server listens for websocket links.
type Server struct {
	Addr    string
	Handler http.Handler
}

// NewServer creates a Server with Handler on DefaultPath.
func NewServer(addr, name string, srv *ec.Server) *Server {
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, Handler(name, srv))
	return &Server{Addr: addr, Handler: mux}
}

// Name implements Named.
func (s *Server) Name() string {
	return "websocket:" + s.Addr
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.Addr, Handler: s.Handler}
	return fx.RunWithContextCancel(ctx, func() { server.Close() }, server.ListenAndServe)
}

// Dial connects to a websocket link, returning a host side Link.
func Dial(url string) (*hostlink.Link, *websocket.Conn, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", url)
	}
	conn.PayloadType = websocket.BinaryFrame
	return hostlink.NewLink(conn), conn, nil
}
