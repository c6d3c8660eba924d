package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mcu.go/pkg/env"
)

// Shell provides ishell backed interactive shell over a simulated board.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

const (
	shellKey = "$shell"
	prompt   = "stm32f3 > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&LedCmd,
		&LedsCmd,
		&BlinkCmd,
		&DelayCmd,
		&RegsCmd,
		&StatsCmd,
		&TraceCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell with a freshly initialized board.
func New(conf *env.Config) (*Shell, error) {
	session, err := NewSession(conf)
	if err != nil {
		return nil, err
	}
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:   ishell.New(),
		Config:  conf,
		Session: session,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// SessionFrom gets the board session from ishell context.
func SessionFrom(c *ishell.Context) *Session {
	return ShellFrom(c).Session
}

// Output prints v as JSON when requested, otherwise calls text.
func Output(c *ishell.Context, v interface{}, text func()) {
	if !ShellFrom(c).OutputJSON {
		text()
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// WithArgs wraps command func requires at least n arguments.
func WithArgs(n int, fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < n {
			c.Err(fmt.Errorf("expect %d arguments, got %d", n, len(c.Args)))
			return
		}
		fn(c)
	}
}

// ParseMs parses a millisecond count.
func ParseMs(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid milliseconds %q: %w", s, err)
	}
	return uint16(n), nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Session.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Printf("board %s ready: %s\n", s.Config.BoardID, strings.Join(s.Session.Blocks(), ", "))
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// LedCmd switches a compass LED.
	LedCmd = ishell.Cmd{
		Name: "led",
		Help: "on|off N|NE|E|SE|S|SW|W|NW|0-7",
		Func: WithArgs(2, func(c *ishell.Context) {
			s := SessionFrom(c)
			var on bool
			switch c.Args[0] {
			case "on":
				on = true
			case "off":
			default:
				c.Err(fmt.Errorf("expect on or off, got %q", c.Args[0]))
				return
			}
			for _, name := range c.Args[1:] {
				index, err := s.LedIndex(name)
				if err == nil {
					err = s.SetLed(index, on)
				}
				if err != nil {
					c.Err(err)
					return
				}
			}
		}),
	}

	// LedsCmd prints the LED states.
	LedsCmd = ishell.Cmd{
		Name: "leds",
		Help: "",
		Func: func(c *ishell.Context) {
			states := SessionFrom(c).LedStates()
			Output(c, states, func() {
				for _, st := range states {
					mark := "."
					if st.On {
						mark = "*"
					}
					c.Printf("%-2s PE%-2d %s\n", st.Name, st.Pin, mark)
				}
			})
		},
	}

	// BlinkCmd turns all LEDs on for MS then off for MS.
	BlinkCmd = ishell.Cmd{
		Name: "blink",
		Help: "[MS]",
		Func: func(c *ishell.Context) {
			ms := uint16(100)
			if len(c.Args) > 0 {
				var err error
				if ms, err = ParseMs(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			if err := SessionFrom(c).Board.Blink(ms); err != nil {
				c.Err(err)
			}
		},
	}

	// DelayCmd waits on the timer.
	DelayCmd = ishell.Cmd{
		Name:    "delay",
		Aliases: []string{"sleep"},
		Help:    "MS",
		Func: WithArgs(1, func(c *ishell.Context) {
			ms, err := ParseMs(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ticks, err := SessionFrom(c).Delay(ms)
			if err != nil {
				c.Err(err)
				return
			}
			Output(c, map[string]uint64{"ticks": ticks}, func() {
				c.Printf("%d ticks\n", ticks)
			})
		}),
	}

	// RegsCmd dumps the readable registers of a block.
	RegsCmd = ishell.Cmd{
		Name: "regs",
		Help: "[GPIOE|TIM6|USART1]",
		Func: func(c *ishell.Context) {
			s := SessionFrom(c)
			blocks := c.Args
			if len(blocks) == 0 {
				blocks = s.Blocks()
			}
			all := make(map[string][]*RegisterDump, len(blocks))
			for _, name := range blocks {
				dumps, err := s.Registers(name)
				if err != nil {
					c.Err(err)
					return
				}
				all[name] = dumps
			}
			Output(c, all, func() {
				for _, name := range blocks {
					c.Println(name)
					for _, d := range all[name] {
						c.Println("  " + d.String())
					}
				}
			})
		},
	}

	// StatsCmd prints the simulation counters.
	StatsCmd = ishell.Cmd{
		Name:    "stats",
		Aliases: []string{"ticks"},
		Help:    "",
		Func: func(c *ishell.Context) {
			st := SessionFrom(c).Stats()
			Output(c, st, func() {
				c.Printf("transactions %d, ticks %d, timer updates %d, rx pending %d\n",
					st.Transactions, st.Ticks, st.Updates, st.PendingRx)
			})
		},
	}

	// TraceCmd controls and prints the bus trace.
	TraceCmd = ishell.Cmd{
		Name: "trace",
		Help: "on [LIMIT] | off | [N]",
		Func: func(c *ishell.Context) {
			s := SessionFrom(c)
			if len(c.Args) > 0 {
				switch c.Args[0] {
				case "on":
					limit := 1024
					if len(c.Args) > 1 {
						n, err := strconv.Atoi(c.Args[1])
						if err != nil || n <= 0 {
							c.Err(fmt.Errorf("invalid limit %q", c.Args[1]))
							return
						}
						limit = n
					}
					s.StartTrace(limit)
					return
				case "off":
					s.StartTrace(0)
					return
				}
			}
			n := 20
			if len(c.Args) > 0 {
				var err error
				if n, err = strconv.Atoi(c.Args[0]); err != nil {
					c.Err(fmt.Errorf("invalid count %q", c.Args[0]))
					return
				}
			}
			trace := s.Trace(n)
			Output(c, trace, func() {
				for _, t := range trace {
					c.Println(t.String())
				}
			})
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s, err := New(env.NewConfig())
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
