// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
)

// RevokeCommand is a Command implementation that appends a revocation for
// one key, or for every existing key, to the key ring.
type RevokeCommand struct {
	Meta
}

func (c *RevokeCommand) Run(args []string) int {
	var reason string
	cmdFlags := c.Meta.extendedFlagSet("revoke")
	cmdFlags.StringVar(&reason, "reason", "", "reason")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing command-line flags: %s\n", err.Error()))
		return cli.RunResultHelp
	}
	args = cmdFlags.Args()
	if len(args) != 1 {
		c.Ui.Error("The revoke command expects exactly one argument: a key id, or * for all keys.\n")
		return cli.RunResultHelp
	}

	entry, err := keydesc.NewRevocation(c.now(), args[0], reason)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid revocation: %s", err))
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
	if args[0] == "*" {
		c.Ui.Output("Revoked every key created until now.")
	} else {
		c.Ui.Output(fmt.Sprintf("Revoked key %s.", args[0]))
	}
	return 0
}

func (c *RevokeCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *RevokeCommand) AutocompleteFlags() complete.Flags {
	return withCommonFlags(complete.Flags{
		"-reason": complete.PredictAnything,
	})
}

func (c *RevokeCommand) Help() string {
	helpText := `
Usage: keyring [global options] revoke [options] KEY_ID

  Appends a revocation for the key KEY_ID to the key ring. Use * as
  KEY_ID to revoke every key created until now.

Options:

  -config=path  Configuration file. Defaults to keyring.hcl in the
                current directory, if present.

  -reason=text  Why the key is revoked, recorded with the revocation.
`
	return strings.TrimSpace(helpText)
}

func (c *RevokeCommand) Synopsis() string {
	return "Revoke a key"
}
