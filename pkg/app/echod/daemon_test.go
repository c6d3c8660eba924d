package echod

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/bridge/mqtt"
	"github.com/robotalks/mcu.go/pkg/env"
	"github.com/robotalks/mcu.go/pkg/telemetry"
)

type recordingTransport struct {
	lock      sync.Mutex
	published map[string][][]byte
}

func (f *recordingTransport) Connect() paho.Token { return &paho.DummyToken{} }

func (f *recordingTransport) Disconnect(uint) {}

func (f *recordingTransport) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.lock.Lock()
	if f.published == nil {
		f.published = make(map[string][][]byte)
	}
	f.published[topic] = append(f.published[topic], payload.([]byte))
	f.lock.Unlock()
	return &paho.DummyToken{}
}

func (f *recordingTransport) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return &paho.DummyToken{}
}

func (f *recordingTransport) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &paho.DummyToken{}
}

func (f *recordingTransport) Unsubscribe(...string) paho.Token { return &paho.DummyToken{} }

func (f *recordingTransport) payloads(topic string) [][]byte {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([][]byte(nil), f.published[topic]...)
}

func testConfig() *env.Config {
	conf := env.NewConfig()
	conf.BoardID = "b1"
	conf.MQTTURL = ""
	conf.WebSocketAddr = ""
	conf.LineCapacity = 4
	conf.TickDuration = time.Microsecond
	return conf
}

func TestDaemonWithoutBridges(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)
	assert.Nil(t, d.Queue)
	assert.Len(t, d.Runnables(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	d.HW.USART1.Feed([]byte("ping\n"))
	require.Eventually(t, func() bool {
		return string(d.HW.USART1.Output()) == "gnip\n"
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}

func TestDaemonMQTT(t *testing.T) {
	conf := testConfig()
	conf.Trace = true
	d, err := New(conf)
	require.NoError(t, err)
	tr := &recordingTransport{}
	d.AttachMQTT(&mqtt.Queue{Client: tr, TopicPrefix: "mcu/"})
	require.NotNil(t, d.Recorder)
	assert.Len(t, d.Runnables(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	require.Eventually(t, func() bool { return d.Tap.Subscribers() == 1 }, 5*time.Second, time.Millisecond)

	d.HW.USART1.Feed([]byte("abcdef\nhi\n"))
	require.Eventually(t, func() bool {
		return len(tr.payloads("mcu/b1/serial/tx")) == 2
	}, 5*time.Second, time.Millisecond)
	tx := tr.payloads("mcu/b1/serial/tx")
	assert.Equal(t, "dcba\n", string(tx[0]))
	assert.Equal(t, "ih\n", string(tx[1]))

	events := tr.payloads("mcu/b1/events")
	require.Len(t, events, 1)
	msg, err := telemetry.Decode(events[0])
	require.NoError(t, err)
	overflow, ok := msg.(*telemetry.LineOverflow)
	require.True(t, ok)
	assert.Equal(t, "b1", overflow.BoardID)
	assert.EqualValues(t, 4, overflow.Capacity)
	assert.Equal(t, []byte("ef"), overflow.Dropped)

	cancel()
	require.NoError(t, <-errCh)

	traces := tr.payloads("mcu/b1/trace")
	require.NotEmpty(t, traces)
	msg, err = telemetry.Decode(traces[0])
	require.NoError(t, err)
	batch, ok := msg.(*telemetry.TraceBatch)
	require.True(t, ok)
	assert.Equal(t, "b1", batch.BoardID)
	assert.NotEmpty(t, batch.Transactions)
}

func TestDaemonBadBaud(t *testing.T) {
	conf := testConfig()
	conf.Board.BaudRate = 0
	_, err := New(conf)
	require.ErrorIs(t, err, board.ErrBaudRate)
}
