// Package echod runs the line echo server on a simulated board and bridges
// its serial line to MQTT and a websocket console.
package echod

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/bridge"
	"github.com/robotalks/mcu.go/pkg/bridge/mqtt"
	"github.com/robotalks/mcu.go/pkg/bridge/websocket"
	"github.com/robotalks/mcu.go/pkg/env"
	fx "github.com/robotalks/mcu.go/pkg/framework"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
	"github.com/robotalks/mcu.go/pkg/sim"
	"github.com/robotalks/mcu.go/pkg/telemetry"
)

// Daemon is the echo server with its bridges.
type Daemon struct {
	Config *env.Config
	HW     *sim.Board
	Board  *board.Board
	Echo   *serial.EchoServer
	Tap    *bridge.LineTap

	// Queue is nil when MQTT is not configured.
	Queue    *mqtt.Queue
	Recorder *telemetry.Recorder
	Events   *mqtt.Publisher

	runnables []fx.Runnable
}

// New brings up a simulated board and the echo server. MQTT is attached
// when conf.MQTTURL is set, the console when conf.WebSocketAddr is set.
func New(conf *env.Config) (*Daemon, error) {
	hw := sim.NewBoard()
	if d := conf.TickDuration; d > 0 {
		hw.Bus.Yield = func() { time.Sleep(d) }
	}
	b, err := board.Init(hw.Bus, conf.Board)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		Config: conf,
		HW:     hw,
		Board:  b,
		Echo:   serial.NewEchoServer(b.Serial, conf.LineCapacity),
		Tap:    bridge.NewLineTap(hw.USART1),
	}
	d.Echo.OnLine = d.onLine
	d.runnables = append(d.runnables, d.Echo)

	if conf.MQTTURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTTURL)
		if err != nil {
			b.Free()
			return nil, err
		}
		d.AttachMQTT(q)
	}
	if conf.WebSocketAddr != "" {
		d.runnables = append(d.runnables, &websocket.Server{
			Addr:    conf.WebSocketAddr,
			Console: &websocket.Console{Feeder: hw.USART1, Tap: d.Tap},
		})
	}
	return d, nil
}

// AttachMQTT bridges the serial line over q and publishes telemetry.
func (d *Daemon) AttachMQTT(q *mqtt.Queue) {
	d.Queue = q
	d.Events = &mqtt.Publisher{Queue: q, Topic: d.Config.Topic(mqtt.TopicEvents)}
	d.runnables = append(d.runnables, fx.NamedRun("mqtt-bridge", &bridge.SerialBridge{
		ReadWriter: mqtt.ForBoard(q, d.Config.BoardID),
		Feeder:     d.HW.USART1,
		Tap:        d.Tap,
	}))
	if d.Config.Trace {
		trace := &mqtt.Publisher{Queue: q, Topic: d.Config.Topic(mqtt.TopicTrace)}
		d.Recorder = telemetry.NewRecorder(d.Config.BoardID)
		d.Recorder.OnBatch = trace.PublishBatch
		d.Recorder.Attach(d.HW.Bus)
	}
}

func (d *Daemon) onLine(line *serial.Line) {
	if d.Events == nil || line.Overflow == nil {
		return
	}
	msg := telemetry.NewLineOverflow(d.Config.BoardID, d.Echo.Name(), line.Overflow)
	if msg == nil {
		return
	}
	if err := d.Events.Publish(msg); err != nil {
		glog.Errorf("publish overflow: %v", err)
	}
}

// Name implements framework.Named.
func (d *Daemon) Name() string {
	return "echod@" + d.Config.BoardID
}

// Runnables returns what Run starts.
func (d *Daemon) Runnables() []fx.Runnable {
	return d.runnables
}

// Run connects MQTT, runs everything until ctx is done and releases the
// board.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Board.Free()
	if d.Queue != nil {
		if err := d.Queue.Connect(); err != nil {
			return err
		}
		defer d.Queue.Close()
	}
	glog.Infof("board %s: echo on %s, line capacity %d", d.Config.BoardID, d.Board.Serial.Name(), d.Config.LineCapacity)
	err := fx.NewRunnerWith(ctx).StopOnExit().Go(d.runnables...).Wait()
	if d.Recorder != nil {
		if batch := d.Recorder.Flush(); batch != nil {
			d.Recorder.OnBatch(batch)
		}
	}
	return err
}
