package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
)

func TestNewConfigCopiesDefault(t *testing.T) {
	conf := NewConfig()
	require.NotSame(t, Default(), conf)
	require.NotEmpty(t, conf.BoardID)
	assert.Equal(t, board.DefaultConfig, conf.Board)
	if Default().LineCapacity == serial.DefaultLineCapacity {
		assert.Equal(t, serial.DefaultLineCapacity, conf.LineCapacity)
	}
	conf.BoardID = "changed"
	assert.NotEqual(t, "changed", Default().BoardID)
}

func TestTopic(t *testing.T) {
	conf := &Config{BoardID: "b1"}
	assert.Equal(t, "b1/serial/rx", conf.Topic("serial/rx"))
}

func TestUint32Value(t *testing.T) {
	var n uint32 = 5
	v := uint32Value{p: &n}
	assert.Equal(t, "5", v.String())
	require.NoError(t, v.Set("0x10"))
	assert.Equal(t, uint32(16), n)
	require.Error(t, v.Set("-1"))
	require.Error(t, v.Set("4294967296"))
	assert.Equal(t, "0", uint32Value{}.String())
}
