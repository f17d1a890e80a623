// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"runtime"
	"strings"
)

// VersionCommand is a Command implementation that prints the version.
type VersionCommand struct {
	Meta

	Version           string
	VersionPrerelease string
}

func (c *VersionCommand) Help() string {
	helpText := `
Usage: keyring [global options] version

  Displays the version of the keyring tool.
`
	return strings.TrimSpace(helpText)
}

func (c *VersionCommand) Run(args []string) int {
	v := c.Version
	if c.VersionPrerelease != "" {
		v = fmt.Sprintf("%s-%s", v, c.VersionPrerelease)
	}
	c.Ui.Output(fmt.Sprintf("keyring v%s\non %s_%s", v, runtime.GOOS, runtime.GOARCH))
	return 0
}

func (c *VersionCommand) Synopsis() string {
	return "Show the current version"
}
