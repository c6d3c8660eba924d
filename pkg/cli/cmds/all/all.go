// Package all registers every shell command provider.
package all

import (
	_ "github.com/robotalks/mcu.go/pkg/cli/cmds/spin"
	_ "github.com/robotalks/mcu.go/pkg/cli/cmds/uart"
)
