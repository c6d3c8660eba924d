// Package spin adds the LED roulette to the shell.
package spin

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mcu.go/pkg/app/roulette"
	"github.com/robotalks/mcu.go/pkg/board"
	"github.com/robotalks/mcu.go/pkg/cli/sh"
)

var (
	// RouletteCmd spins the light around the compass LEDs.
	RouletteCmd = ishell.Cmd{
		Name:    "roulette",
		Aliases: []string{"spin"},
		Help:    "[CYCLES] [chase|trail]",
		Func: func(c *ishell.Context) {
			cycles, pattern := 1, roulette.Chase
			for _, arg := range c.Args {
				if n, err := strconv.Atoi(arg); err == nil {
					if n <= 0 {
						c.Err(fmt.Errorf("invalid CYCLES %d", n))
						return
					}
					cycles = n
					continue
				}
				p, err := roulette.ParsePattern(arg)
				if err != nil {
					c.Err(err)
					return
				}
				pattern = p
			}
			s := sh.SessionFrom(c)
			var steps []string
			err := s.Spin(cycles, pattern, func(next int) {
				steps = append(steps, board.CompassNames[next])
				if !sh.ShellFrom(c).OutputJSON {
					c.Print(board.CompassNames[next] + " ")
				}
			})
			sh.Output(c, steps, func() { c.Println() })
			if err != nil {
				c.Err(err)
			}
		},
	}
)

func init() {
	sh.AddCmds(&RouletteCmd)
}
