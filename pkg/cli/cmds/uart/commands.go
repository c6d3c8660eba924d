// Package uart adds serial line commands to the shell.
package uart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mcu.go/pkg/cli/sh"
	"github.com/robotalks/mcu.go/pkg/mcu/serial"
)

var (
	// FeedCmd makes the board receive a line.
	FeedCmd = ishell.Cmd{
		Name:    "uart.feed",
		Aliases: []string{"feed"},
		Help:    "TEXT...",
		Func: sh.WithArgs(1, func(c *ishell.Context) {
			sh.SessionFrom(c).Feed(strings.Join(c.Args, " "))
		}),
	}

	// EchoCmd serves fed lines through the echo server.
	EchoCmd = ishell.Cmd{
		Name:    "uart.echo",
		Aliases: []string{"echo"},
		Help:    "[TEXT...]",
		Func: func(c *ishell.Context) {
			s := sh.SessionFrom(c)
			if len(c.Args) > 0 {
				s.Feed(strings.Join(c.Args, " "))
			}
			for {
				out, err := s.EchoLine()
				if errors.Is(err, sh.ErrNoLine) {
					return
				}
				if out != "" {
					sh.Output(c, map[string]string{"tx": out}, func() {
						c.Print(strconv.Quote(out) + "\n")
					})
				}
				if err != nil {
					var overflow *serial.BufferOverflowError
					if errors.As(err, &overflow) {
						c.Err(fmt.Errorf("line exceeded %d bytes, extra bytes dropped", overflow.Capacity))
						continue
					}
					c.Err(err)
					return
				}
			}
		},
	}

	// SendCmd transmits text from the board.
	SendCmd = ishell.Cmd{
		Name:    "uart.send",
		Aliases: []string{"send"},
		Help:    "TEXT...",
		Func: sh.WithArgs(1, func(c *ishell.Context) {
			if err := sh.SessionFrom(c).Send(strings.Join(c.Args, " ") + "\r\n"); err != nil {
				c.Err(err)
			}
		}),
	}

	// TxCmd prints and clears what the board transmitted.
	TxCmd = ishell.Cmd{
		Name:    "uart.tx",
		Aliases: []string{"tx"},
		Help:    "",
		Func: func(c *ishell.Context) {
			out := sh.SessionFrom(c).TakeOutput()
			sh.Output(c, map[string]string{"tx": out}, func() {
				c.Print(strconv.Quote(out) + "\n")
			})
		},
	}
)

func init() {
	sh.AddCmds(
		&FeedCmd,
		&EchoCmd,
		&SendCmd,
		&TxCmd,
	)
}
