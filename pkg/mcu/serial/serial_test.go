package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
	"github.com/robotalks/mcu.go/pkg/sim"
)

func newTestPort(t *testing.T) (*Port, *sim.Board) {
	board := sim.NewBoard()
	block, err := stm32f3.NewUSART1(board.Bus)
	require.NoError(t, err)
	cr1, err := block.Register("CR1")
	require.NoError(t, err)
	require.NoError(t, cr1.Write(func(w *reg.Writer) {
		w.SetBit(stm32f3.UE).SetBit(stm32f3.RE).SetBit(stm32f3.TE)
	}))
	p, err := New(block)
	require.NoError(t, err)
	return p, board
}

func TestSendReceive(t *testing.T) {
	p, board := newTestPort(t)
	require.NoError(t, p.Send([]byte("abc")))
	n, err := p.WriteString("de")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, p.Flush())
	require.Equal(t, []byte("abcde"), board.USART1.TakeOutput())

	board.USART1.Feed([]byte("xy"))
	for _, expect := range []byte("xy") {
		b, err := p.ReceiveByte()
		require.NoError(t, err)
		require.Equal(t, expect, b)
	}
	require.Zero(t, board.USART1.Pending())
}

func TestFormattedOutput(t *testing.T) {
	p, board := newTestPort(t)
	_, err := fmt.Fprintf(p, "The answer is %d\r\n", 42)
	require.NoError(t, err)
	require.NoError(t, p.Flush())
	require.Equal(t, "The answer is 42\r\n", string(board.USART1.Output()))
}

func TestLineBuffer(t *testing.T) {
	l := NewLineBuffer(0)
	require.Equal(t, DefaultLineCapacity, l.Cap())

	l = NewLineBuffer(3)
	for _, b := range []byte("abc") {
		require.NoError(t, l.Push(b))
	}
	err := l.Push('d')
	require.True(t, errors.Is(err, ErrBufferOverflow))
	var overflow *BufferOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, byte('d'), overflow.Byte)
	assert.Equal(t, 3, overflow.Capacity)
	require.Equal(t, 3, l.Len(), "never truncated silently")

	l.Reverse()
	require.Equal(t, []byte("cba"), l.Bytes())
	l.Clear()
	require.Zero(t, l.Len())
	require.Equal(t, 3, l.Cap())
}

func TestFramer(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int
		in       string
		lines    []string
		dropped  string
	}{
		{name: "single line", capacity: 32, in: "hello\n", lines: []string{"hello"}},
		{name: "empty line", capacity: 32, in: "\n", lines: []string{""}},
		{name: "two lines", capacity: 32, in: "ab\ncd\n", lines: []string{"ab", "cd"}},
		{name: "overflow", capacity: 4, in: "abcdef\n", lines: []string{"abcd"}, dropped: "ef"},
		{name: "overflow then line", capacity: 2, in: "abc\nxy\n", lines: []string{"ab", "xy"}, dropped: "c"},
		{name: "incomplete", capacity: 32, in: "abc"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFramer(tc.capacity)
			var lines []string
			var dropped []byte
			for _, b := range []byte(tc.in) {
				fr := f.Feed(b)
				if fr.Err != nil {
					var overflow *BufferOverflowError
					require.True(t, errors.As(fr.Err, &overflow))
					dropped = append(dropped, overflow.Byte)
				}
				if fr.Done {
					require.NoError(t, fr.Err)
					lines = append(lines, string(fr.Line.Bytes()))
				}
			}
			assert.Equal(t, tc.lines, lines)
			assert.Equal(t, tc.dropped, string(dropped))
		})
	}
}

func TestLineReader(t *testing.T) {
	r := NewLineReader(bytes.NewReader([]byte("ab\ncdefg\nh")), 4)
	line, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "ab", string(line.Data.Bytes()))
	require.NoError(t, line.Overflow)

	line, err = r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "cdef", string(line.Data.Bytes()))
	var agg *framework.AggregatedError
	require.True(t, errors.As(line.Overflow, &agg))
	require.Equal(t, 1, agg.Len())

	_, err = r.ReadLine()
	require.Equal(t, io.EOF, err)
}

func TestEchoRoundTrip(t *testing.T) {
	p, board := newTestPort(t)
	s := NewEchoServer(p, DefaultLineCapacity)
	board.USART1.Feed([]byte("hello\n"))
	require.NoError(t, s.ServeLine())
	require.Equal(t, "olleh\n", string(board.USART1.TakeOutput()))
}

func TestEchoOverflow(t *testing.T) {
	p, board := newTestPort(t)
	s := NewEchoServer(p, 4)
	board.USART1.Feed([]byte("abcdef\nxyz\n"))

	err := s.ServeLine()
	require.True(t, errors.Is(err, ErrBufferOverflow))
	var agg *framework.AggregatedError
	require.True(t, errors.As(err, &agg))
	require.Equal(t, 2, agg.Len())
	var dropped []byte
	for _, e := range agg.Errors {
		var overflow *BufferOverflowError
		require.True(t, errors.As(e, &overflow))
		dropped = append(dropped, overflow.Byte)
	}
	require.Equal(t, []byte("ef"), dropped)
	require.Equal(t, "dcba\n", string(board.USART1.TakeOutput()))

	require.NoError(t, s.ServeLine())
	require.Equal(t, "zyx\n", string(board.USART1.TakeOutput()))
}

func TestEchoRun(t *testing.T) {
	p, board := newTestPort(t)
	board.Bus.Yield = func() { time.Sleep(time.Microsecond) }
	s := NewEchoServer(p, 8)
	lines := make(chan string, 4)
	s.OnLine = func(l *Line) { lines <- string(l.Data.Bytes()) }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	board.USART1.Feed([]byte("one\ntwo\n"))
	require.Equal(t, "one", <-lines)
	require.Equal(t, "two", <-lines)
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, "echo@USART1", s.Name())
}

func TestOwnership(t *testing.T) {
	p, _ := newTestPort(t)
	_, err := New(p.Block())
	require.True(t, errors.Is(err, reg.ErrBlockOwned))
	_, err = New(p.Free())
	require.NoError(t, err)
}

func TestFreedPortFails(t *testing.T) {
	p, board := newTestPort(t)
	require.NotNil(t, p.Free())
	require.Nil(t, p.Block())
	require.Nil(t, p.Free())
	board.USART1.Feed([]byte("x"))

	before := board.Bus.Transactions()
	require.True(t, errors.Is(p.SendByte('a'), reg.ErrReleased))
	_, err := p.ReceiveByte()
	require.True(t, errors.Is(err, reg.ErrReleased))
	require.True(t, errors.Is(p.Flush(), reg.ErrReleased))
	require.Equal(t, before, board.Bus.Transactions())
	require.Empty(t, board.USART1.Output())
	require.Equal(t, "USART1", p.Name())
}

func TestCloseAbortsWait(t *testing.T) {
	p, _ := newTestPort(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := p.ReceiveByte()
		errCh <- err
	}()
	require.NoError(t, p.Close())
	require.Equal(t, ErrClosed, <-errCh)
}
