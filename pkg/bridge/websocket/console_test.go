package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/bridge"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
	"github.com/robotalks/mcu.go/pkg/sim"
)

func dial(t *testing.T, url string) *websocket.Conn {
	conn, err := websocket.Dial("ws"+strings.TrimPrefix(url, "http"), "", "http://localhost/")
	require.NoError(t, err)
	return conn
}

func TestConsoleEcho(t *testing.T) {
	hw := sim.NewBoard()
	hw.Bus.Yield = func() { time.Sleep(time.Microsecond) }
	b, err := board.Init(hw.Bus, board.DefaultConfig)
	require.NoError(t, err)
	echo := serial.NewEchoServer(b.Serial, serial.DefaultLineCapacity)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go echo.Run(ctx)

	console := &Console{Feeder: hw.USART1, Tap: bridge.NewLineTap(hw.USART1)}
	srv := httptest.NewServer(console.Handler())
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()
	for _, tc := range []struct{ in, out string }{
		{"hello", "olleh\n"},
		{"abc\n", "cba\n"},
	} {
		require.NoError(t, websocket.Message.Send(conn, tc.in))
		var reply string
		require.NoError(t, websocket.Message.Receive(conn, &reply))
		require.Equal(t, tc.out, reply)
	}
}

type captureFeeder chan []byte

func (f captureFeeder) Feed(data []byte) { f <- data }

type manualTx struct{ fn func(byte) }

func (m *manualTx) OnTransmit(fn func(byte)) { m.fn = fn }

func TestConsoleBroadcastsLines(t *testing.T) {
	tx, feed := &manualTx{}, make(captureFeeder, 4)
	console := &Console{Feeder: feed, Tap: bridge.NewLineTap(tx)}
	srv := httptest.NewServer(console.Handler())
	defer srv.Close()

	a, b := dial(t, srv.URL), dial(t, srv.URL)
	defer a.Close()
	defer b.Close()
	// a message from each client proves both bridges are subscribed
	require.NoError(t, websocket.Message.Send(a, "x"))
	require.NoError(t, websocket.Message.Send(b, "y"))
	got := []string{string(<-feed), string(<-feed)}
	require.ElementsMatch(t, []string{"x\n", "y\n"}, got)

	for _, c := range []byte("ready\n") {
		tx.fn(c)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		var line string
		require.NoError(t, websocket.Message.Receive(conn, &line))
		require.Equal(t, "ready\n", line)
	}
}
