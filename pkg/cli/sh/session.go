package sh

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robotalks/mcu.go/pkg/app/roulette"
	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/env"
	"github.com/robotalks/mcu.go/pkg/mcu/reg"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
	"github.com/robotalks/mcu.go/pkg/sim"
)

var (
	// ErrNoLine is returned by EchoLine when no terminated line was fed.
	ErrNoLine = errors.New("no complete line pending")
	// ErrUnknownLed is returned for a LED neither indexed nor named.
	ErrUnknownLed = errors.New("unknown LED")
	// ErrUnknownBlock is returned for a register block not on the board.
	ErrUnknownBlock = errors.New("unknown register block")
)

// registers with side effects on read, never dumped.
var readSideEffects = map[string]bool{
	"USART1.RDR": true,
}

// Session is a simulated board brought up with the drivers.
type Session struct {
	Config *env.Config
	HW     *sim.Board
	Board  *board.Board
	Echo   *serial.EchoServer
	Wheel  *roulette.Roulette
}

// LedState is the state of one compass LED.
type LedState struct {
	Name string `json:"name"`
	Pin  uint8  `json:"pin"`
	On   bool   `json:"on"`
}

// FieldValue is a decoded non-zero field.
type FieldValue struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
}

// RegisterDump is the content of a readable register.
type RegisterDump struct {
	Name   string       `json:"name"`
	Addr   uintptr      `json:"addr"`
	Raw    uint32       `json:"raw"`
	Fields []FieldValue `json:"fields,omitempty"`
}

// String formats the dump on one line.
func (d *RegisterDump) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-6s %#08x = %#08x", d.Name, d.Addr, d.Raw)
	for _, f := range d.Fields {
		fmt.Fprintf(&sb, " %s=%d", f.Name, f.Value)
	}
	return sb.String()
}

// Stats are the simulation counters.
type Stats struct {
	Transactions uint64 `json:"transactions"`
	Ticks        uint64 `json:"ticks"`
	Updates      int    `json:"updates"`
	PendingRx    int    `json:"pendingRx"`
}

// NewSession creates a simulated board and initializes the drivers on it.
func NewSession(conf *env.Config) (*Session, error) {
	hw := sim.NewBoard()
	if d := conf.TickDuration; d > 0 {
		hw.Bus.Yield = func() { time.Sleep(d) }
	}
	b, err := board.Init(hw.Bus, conf.Board)
	if err != nil {
		return nil, err
	}
	s := &Session{
		Config: conf,
		HW:     hw,
		Board:  b,
		Echo:   serial.NewEchoServer(b.Serial, conf.LineCapacity),
		Wheel:  roulette.New(b),
	}
	return s, nil
}

// Close releases the drivers.
func (s *Session) Close() error {
	s.Board.Free()
	return nil
}

// LedIndex resolves a compass name (N, NE, ...) or an index 0-7.
func (s *Session) LedIndex(name string) (int, error) {
	for n, compass := range board.CompassNames {
		if strings.EqualFold(compass, name) {
			return n, nil
		}
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n < len(s.Board.Leds) {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLed, name)
}

// SetLed switches one LED.
func (s *Session) SetLed(index int, on bool) error {
	if index < 0 || index >= len(s.Board.Leds) {
		return fmt.Errorf("%w: %d", ErrUnknownLed, index)
	}
	if on {
		return s.Board.Leds[index].On()
	}
	return s.Board.Leds[index].Off()
}

// LedStates reads the LED pins from the simulated port.
func (s *Session) LedStates() []LedState {
	states := make([]LedState, len(board.CompassPins))
	for n, pin := range board.CompassPins {
		states[n] = LedState{
			Name: board.CompassNames[n],
			Pin:  uint8(pin),
			On:   s.HW.GPIOE.Pin(int(pin)),
		}
	}
	return states
}

// Delay blocks for ms milliseconds of simulated time and returns the
// elapsed ticks.
func (s *Session) Delay(ms uint16) (uint64, error) {
	start := s.HW.TIM6.Elapsed()
	err := s.Board.Delay.DelayMs(ms)
	return s.HW.TIM6.Elapsed() - start, err
}

// Feed makes the simulated USART receive text followed by a terminator.
func (s *Session) Feed(text string) {
	data := []byte(text)
	if len(data) == 0 || data[len(data)-1] != serial.Terminator {
		data = append(data, serial.Terminator)
	}
	s.HW.USART1.Feed(data)
}

// EchoLine serves one fed line and returns what was transmitted.
func (s *Session) EchoLine() (string, error) {
	if !s.HW.USART1.PendingLine() {
		return "", ErrNoLine
	}
	err := s.Echo.ServeLine()
	return string(s.HW.USART1.TakeOutput()), err
}

// Send transmits text and waits until the last byte left the shifter.
func (s *Session) Send(text string) error {
	if _, err := s.Board.Serial.WriteString(text); err != nil {
		return err
	}
	return s.Board.Serial.Flush()
}

// TakeOutput returns and clears the transmitted bytes.
func (s *Session) TakeOutput() string {
	return string(s.HW.USART1.TakeOutput())
}

// ownedBlocks are the blocks held by the drivers, none after Close.
func (s *Session) ownedBlocks() []*reg.Block {
	var blocks []*reg.Block
	for _, b := range []*reg.Block{s.Board.GPIO.Block(), s.Board.Delay.Block(), s.Board.Serial.Block()} {
		if b != nil {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Blocks lists the names of the register blocks.
func (s *Session) Blocks() []string {
	var names []string
	for _, b := range s.ownedBlocks() {
		names = append(names, b.Name())
	}
	return names
}

// Registers dumps the readable registers of a block.
func (s *Session) Registers(block string) ([]*RegisterDump, error) {
	var view *reg.Block
	for _, b := range s.ownedBlocks() {
		if strings.EqualFold(b.Name(), block) {
			view = b
			break
		}
	}
	if view == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, block)
	}
	var dumps []*RegisterDump
	for _, r := range view.Registers() {
		if !r.Access().CanRead() || readSideEffects[view.Name()+"."+r.Name()] {
			continue
		}
		val, err := r.Read()
		if err != nil {
			return nil, err
		}
		dump := &RegisterDump{Name: r.Name(), Addr: r.Addr(), Raw: val.Raw()}
		for _, f := range r.Fields() {
			if !f.Access.CanRead() {
				continue
			}
			if v, _ := val.Get(f); v != 0 {
				dump.Fields = append(dump.Fields, FieldValue{Name: f.Name, Value: v})
			}
		}
		dumps = append(dumps, dump)
	}
	return dumps, nil
}

// Spin runs the roulette for cycles full turns, continuing from where the
// previous spin stopped.
func (s *Session) Spin(cycles int, pattern roulette.Pattern, onStep func(next int)) error {
	s.Wheel.Pattern, s.Wheel.OnStep = pattern, onStep
	defer func() { s.Wheel.OnStep = nil }()
	return s.Wheel.Spin(cycles)
}

// StartTrace keeps the last limit bus transactions, 0 stops tracing.
func (s *Session) StartTrace(limit int) {
	s.HW.Bus.EnableTrace(limit)
}

// Trace returns up to the last n traced transactions, all when n <= 0.
func (s *Session) Trace(n int) []sim.Transaction {
	trace := s.HW.Bus.Trace()
	if n > 0 && len(trace) > n {
		trace = trace[len(trace)-n:]
	}
	return trace
}

// Stats returns the simulation counters.
func (s *Session) Stats() Stats {
	return Stats{
		Transactions: s.HW.Bus.Transactions(),
		Ticks:        s.HW.TIM6.Elapsed(),
		Updates:      s.HW.TIM6.Updates(),
		PendingRx:    s.HW.USART1.Pending(),
	}
}
