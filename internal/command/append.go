// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/xmldoc"
)

// AppendCommand is a Command implementation that appends one XML element,
// read from a file or standard input, to the key ring.
type AppendCommand struct {
	Meta
}

func (c *AppendCommand) Run(args []string) int {
	cmdFlags := c.Meta.extendedFlagSet("append")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing command-line flags: %s\n", err.Error()))
		return cli.RunResultHelp
	}
	args = cmdFlags.Args()
	if len(args) != 1 {
		c.Ui.Error("The append command expects exactly one argument: a file name, or - for standard input.\n")
		return cli.RunResultHelp
	}

	data, err := c.readInput(args[0])
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to read %s: %s", args[0], err))
		return 1
	}
	entry, err := xmldoc.ParseEntry(data)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid entry: %s", err))
		return 1
	}

	ctx := c.CommandContext()
	s, err := c.openKeyring(ctx)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	defer s.close()

	if err := s.repo.Append(ctx, entry); err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to append to the key ring: %s", err))
		return 1
	}
	c.Ui.Output(fmt.Sprintf("Appended <%s> to the key ring.", entry.Name))
	return 0
}

func (c *AppendCommand) readInput(name string) ([]byte, error) {
	if name != "-" {
		return os.ReadFile(name)
	}
	in := c.Stdin
	if in == nil {
		in = os.Stdin
	}
	return io.ReadAll(in)
}

func (c *AppendCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.xml")
}

func (c *AppendCommand) AutocompleteFlags() complete.Flags {
	return withCommonFlags(nil)
}

func (c *AppendCommand) Help() string {
	helpText := `
Usage: keyring [global options] append [options] FILE

  Appends the single XML element in FILE to the key ring. Use - as FILE
  to read the element from standard input.

  The element is stored as written. Appends from several processes at
  once are safe: each one is retried until it lands on the latest
  revision of the key ring.

Options:

  -config=path  Configuration file. Defaults to keyring.hcl in the
                current directory, if present.
`
	return strings.TrimSpace(helpText)
}

func (c *AppendCommand) Synopsis() string {
	return "Append an XML element to the key ring"
}
