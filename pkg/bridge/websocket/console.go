// Package websocket serves a browser console attached to the serial line of
// a simulated board.
package websocket

import (
	"context"
	"net"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/mcu.go/pkg/bridge"
	fx "github.com/robotalks/mcu.go/pkg/framework"
)

// ReadWriter implements bridge.PacketReadWriter with one line per text
// frame.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), string(pkt))
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// Console bridges every websocket connection to the serial line.
type Console struct {
	Feeder bridge.Feeder
	Tap    *bridge.LineTap
}

// Handler returns the websocket handler.
func (c *Console) Handler() http.Handler {
	return websocket.Handler(c.serve)
}

func (c *Console) serve(conn *websocket.Conn) {
	remote := conn.Request().RemoteAddr
	glog.Infof("console %s connected", remote)
	b := &bridge.SerialBridge{ReadWriter: New(conn), Feeder: c.Feeder, Tap: c.Tap, Terminate: true}
	if err := b.Run(conn.Request().Context()); err != nil && err != context.Canceled {
		glog.Warningf("console %s: %v", remote, err)
	}
	glog.Infof("console %s disconnected", remote)
}

// Server serves the console at /console.
type Server struct {
	Addr    string
	Console *Console
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket@" + s.Addr
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/console", s.Console.Handler())
	srv := &http.Server{Handler: mux}
	glog.Infof("console listening on %s", ln.Addr())
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		return srv.Serve(ln)
	})
}
