// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
)

// NewKeyCommand is a Command implementation that generates a data
// protection key and appends its descriptor to the key ring.
type NewKeyCommand struct {
	Meta
}

func (c *NewKeyCommand) Run(args []string) int {
	var lifetime time.Duration
	cmdFlags := c.Meta.extendedFlagSet("new-key")
	cmdFlags.DurationVar(&lifetime, "lifetime", keydesc.DefaultLifetime, "lifetime")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing command-line flags: %s\n", err.Error()))
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() > 0 {
		c.Ui.Error("The new-key command expects no arguments.\n")
		return cli.RunResultHelp
	}
	if lifetime <= 0 {
		c.Ui.Error("The -lifetime option must be a positive duration.\n")
		return cli.RunResultHelp
	}

	ctx := c.CommandContext()
	s, err := c.openKeyring(ctx)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	defer s.close()

	key, err := keydesc.NewKey(c.now(), lifetime)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to generate a key: %s", err))
		return 1
	}
	if s.protector == nil {
		c.Ui.Warn("No kms block is configured, so the master key is stored unencrypted.")
	}
	entry, err := key.Entry(ctx, s.protector)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to build the key descriptor: %s", err))
		return 1
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to append to the key ring: %s", err))
		return 1
	}
	c.Ui.Output(fmt.Sprintf("Created key %s, valid until %s.", key.ID, formatTime(key.Expiration)))
	return 0
}

func (c *NewKeyCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *NewKeyCommand) AutocompleteFlags() complete.Flags {
	return withCommonFlags(complete.Flags{
		"-lifetime": complete.PredictAnything,
	})
}

func (c *NewKeyCommand) Help() string {
	helpText := `
Usage: keyring [global options] new-key [options]

  Generates a new data protection key and appends its descriptor to the
  key ring. The key is active immediately.

  If the configuration has a kms block, the master key is encrypted with
  that Cloud KMS key. Otherwise it is stored unencrypted.

Options:

  -config=path    Configuration file. Defaults to keyring.hcl in the
                  current directory, if present.

  -lifetime=2160h How long the key stays valid. Defaults to 90 days.
`
	return strings.TrimSpace(helpText)
}

func (c *NewKeyCommand) Synopsis() string {
	return "Generate a key and append it to the key ring"
}
