// Package env provides the configuration shared by the host tools.
package env

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
)

// Config provides common options of the host tools.
type Config struct {
	// BoardID identifies the simulated board in topics and telemetry.
	BoardID string
	// MQTTURL is the broker, e.g. mqtt://host:port/topic-prefix.
	// Empty disables the MQTT bridge.
	MQTTURL string
	// WebSocketAddr is the listen address of the console. Empty disables it.
	WebSocketAddr string
	// LineCapacity is the echo server line buffer size.
	LineCapacity int
	// Board is the clock and serial configuration.
	Board board.Config
	// Trace publishes bus transactions.
	Trace bool
	// TickDuration is the wall time of one simulated tick, 0 for as fast
	// as possible.
	TickDuration time.Duration
}

var defaultConfig = Config{
	BoardID:       "mcu",
	MQTTURL:       "",
	WebSocketAddr: "",
	LineCapacity:  serial.DefaultLineCapacity,
	Board:         board.DefaultConfig,
	TickDuration:  time.Millisecond,
}

func init() {
	if id, err := machineid.ProtectedID("mcu.go"); err == nil && len(id) >= 12 {
		defaultConfig.BoardID = id[:12]
	}
	if val := os.Getenv("MCU_BOARD_ID"); val != "" {
		defaultConfig.BoardID = val
	}
	if val := os.Getenv("MCU_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("MCU_WS_ADDR"); val != "" {
		defaultConfig.WebSocketAddr = val
	}
	if val, err := strconv.Atoi(os.Getenv("MCU_LINE_CAPACITY")); err == nil && val > 0 {
		defaultConfig.LineCapacity = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BoardID, "board-id", defaultConfig.BoardID, "Board ID used in topics.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL, e.g. mqtt://localhost:1883/mcu/.")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "Websocket console listen address.")
	flag.IntVar(&defaultConfig.LineCapacity, "line-cap", defaultConfig.LineCapacity, "Line buffer capacity.")
	uintVar(&defaultConfig.Board.ClockHz, "timer-clock", "TIM6 kernel clock in Hz.")
	uintVar(&defaultConfig.Board.UARTClockHz, "uart-clock", "USART1 kernel clock in Hz.")
	uintVar(&defaultConfig.Board.BaudRate, "baud", "USART1 baud rate.")
	flag.BoolVar(&defaultConfig.Trace, "trace", defaultConfig.Trace, "Publish bus transactions.")
	flag.DurationVar(&defaultConfig.TickDuration, "tick", defaultConfig.TickDuration, "Wall time of one simulated tick.")
}

type uint32Value struct {
	p *uint32
}

func (v uint32Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(*v.p), 10)
}

func (v uint32Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*v.p = uint32(n)
	return nil
}

func uintVar(p *uint32, name, usage string) {
	flag.Var(uint32Value{p: p}, name, usage)
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Topic joins the board ID and a suffix into a topic.
func (c *Config) Topic(suffix string) string {
	return c.BoardID + "/" + suffix
}
