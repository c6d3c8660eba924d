package serial

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/framework"
)

// EchoServer answers every received line with the line reversed.
type EchoServer struct {
	// OnLine, when set, is called with every line before it is reversed.
	OnLine func(*Line)

	port   *Port
	reader *LineReader
}

// NewEchoServer creates an echo server on port with the given line
// capacity.
func NewEchoServer(port *Port, capacity int) *EchoServer {
	return &EchoServer{port: port, reader: NewLineReader(port, capacity)}
}

// Name implements framework.Named.
func (s *EchoServer) Name() string {
	return "echo@" + s.port.Name()
}

// ServeLine reads one line and sends it back reversed, followed by the
// terminator. Dropped bytes are never sent; the overflow is logged and
// returned after the reply was transmitted.
func (s *EchoServer) ServeLine() error {
	line, err := s.reader.ReadLine()
	if err != nil {
		return err
	}
	if s.OnLine != nil {
		s.OnLine(line)
	}
	if line.Overflow != nil {
		glog.Warningf("%s: %v", s.Name(), line.Overflow)
	}
	line.Data.Reverse()
	if err := s.port.Send(line.Data.Bytes()); err != nil {
		return err
	}
	if err := s.port.SendByte(Terminator); err != nil {
		return err
	}
	if err := s.port.Flush(); err != nil {
		return err
	}
	return line.Overflow
}

// Serve answers lines until the port fails or is closed.
func (s *EchoServer) Serve() error {
	for {
		if err := s.ServeLine(); err != nil && !errors.Is(err, ErrBufferOverflow) {
			return err
		}
	}
}

// Run implements framework.Runnable. The port is closed when Run returns.
func (s *EchoServer) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, s.port, s.Serve)
}
