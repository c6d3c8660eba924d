package timer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/stm32f3"
	"github.com/robotalks/mcu.go/pkg/sim"
)

func newTestDelay(t *testing.T) (*Delay, *sim.Board) {
	board := sim.NewBoard()
	block, err := stm32f3.NewTIM6(board.Bus)
	require.NoError(t, err)
	d, err := New(block, Config{ClockHz: stm32f3.APB1Hz})
	require.NoError(t, err)
	board.Bus.EnableTrace(1 << 16)
	return d, board
}

func statusPolls(board *sim.Board) (n int) {
	for _, tr := range board.Bus.Trace() {
		if tr.Op == sim.OpLoad && tr.Addr == stm32f3.TIM6Base+stm32f3.TIMSR {
			n++
		}
	}
	return
}

func TestNewProgramsOnePulseMode(t *testing.T) {
	d, board := newTestDelay(t)
	require.Equal(t, Idle, d.State())
	require.Equal(t, uint32(7999), board.TIM6.Prescaler())
	require.False(t, board.TIM6.Running())
	require.False(t, board.TIM6.Pending(), "update event from loading PSC is acknowledged")
	require.Equal(t, "timer.Delay", d.block.Owner())
}

func TestDelayMs(t *testing.T) {
	for _, ms := range []uint16{1, 2, 50, 500} {
		d, board := newTestDelay(t)
		before := board.TIM6.Elapsed()
		require.NoError(t, d.DelayMs(ms))
		require.Equal(t, uint64(ms), board.TIM6.Elapsed()-before, "ms=%d", ms)
		require.Equal(t, int(ms), statusPolls(board))
		require.Equal(t, 1, board.TIM6.Updates())
		require.False(t, board.TIM6.Pending())
		require.False(t, board.TIM6.Running())
		require.Equal(t, Idle, d.State())
	}
}

func TestDelayMsZeroReturnsImmediately(t *testing.T) {
	d, board := newTestDelay(t)
	before := board.Bus.Transactions()
	require.NoError(t, d.DelayMs(0))
	require.Equal(t, before, board.Bus.Transactions())
}

func TestStateMachine(t *testing.T) {
	d, board := newTestDelay(t)
	require.NoError(t, d.Start(3))
	require.Equal(t, Counting, d.State())
	require.True(t, board.TIM6.Running())
	require.NoError(t, d.Poll())
	require.Equal(t, Expired, d.State())
	require.True(t, board.TIM6.Pending())
	require.NoError(t, d.Acknowledge())
	require.Equal(t, Idle, d.State())
	require.False(t, board.TIM6.Pending())
}

func TestStaleFlagShortensNextDelay(t *testing.T) {
	d, board := newTestDelay(t)
	require.NoError(t, d.Start(5))
	require.NoError(t, d.Poll())
	board.Bus.ResetTrace()

	before := board.TIM6.Elapsed()
	require.NoError(t, d.DelayMs(50))
	require.Equal(t, 1, statusPolls(board), "stale flag observed on first poll")
	require.Less(t, board.TIM6.Elapsed()-before, uint64(50))
	require.Equal(t, Idle, d.State())
}

func TestConsecutiveDelays(t *testing.T) {
	d, board := newTestDelay(t)
	before := board.TIM6.Elapsed()
	for i := 0; i < 8; i++ {
		require.NoError(t, d.DelayMs(50))
	}
	require.Equal(t, uint64(400), board.TIM6.Elapsed()-before)
	require.Equal(t, 8, board.TIM6.Updates())
}

func TestOwnership(t *testing.T) {
	d, board := newTestDelay(t)
	_, err := New(d.block, Config{ClockHz: stm32f3.APB1Hz})
	require.True(t, errors.Is(err, reg.ErrBlockOwned))
	block := d.Free()
	require.Empty(t, block.Owner())
	d2, err := New(block, Config{ClockHz: stm32f3.APB1Hz})
	require.NoError(t, err)
	require.NoError(t, d2.DelayMs(2))
	require.False(t, board.TIM6.Pending())
}

func TestFreedDelayFails(t *testing.T) {
	d, board := newTestDelay(t)
	require.NotNil(t, d.Free())
	require.Nil(t, d.Block())
	require.Nil(t, d.Free())
	before := board.Bus.Transactions()
	require.True(t, errors.Is(d.DelayMs(5), reg.ErrReleased))
	require.True(t, errors.Is(d.Poll(), reg.ErrReleased))
	require.True(t, errors.Is(d.Acknowledge(), reg.ErrReleased))
	require.Equal(t, before, board.Bus.Transactions())
}

func TestStartRejectsZeroTicks(t *testing.T) {
	d, board := newTestDelay(t)
	before := board.Bus.Transactions()
	require.True(t, errors.Is(d.Start(0), ErrZeroTicks))
	require.Equal(t, Idle, d.State())
	require.False(t, board.TIM6.Running())
	require.Equal(t, before, board.Bus.Transactions())
}

func TestPrescaler(t *testing.T) {
	testCases := []struct {
		hz     uint32
		expect uint32
		err    bool
	}{
		{hz: 8_000_000, expect: 7999},
		{hz: 1000, expect: 0},
		{hz: 0, err: true},
		{hz: 1500, err: true},
		{hz: 72_000_000, err: true},
	}
	for _, tc := range testCases {
		psc, err := Config{ClockHz: tc.hz}.Prescaler()
		if tc.err {
			require.True(t, errors.Is(err, ErrClock), "hz=%d", tc.hz)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.expect, psc)
	}
}
