package version

import (
	"github.com/wehubfusion/keygen/internal/cmd/base"
	"github.com/wehubfusion/keygen/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the keygen version"
}

func (c *Command) Help() string {
	return "Usage: keygen version"
}

func (c *Command) Run(args []string) int {
	c.UI.Output("keygen " + version.Version)
	return 0
}
