// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
)

// ListCommand is a Command implementation that prints the entries of the key
// ring.
type ListCommand struct {
	Meta
}

func (c *ListCommand) Run(args []string) int {
	var activeOnly bool
	cmdFlags := c.Meta.extendedFlagSet("list")
	cmdFlags.BoolVar(&activeOnly, "active", false, "active")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing command-line flags: %s\n", err.Error()))
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() > 0 {
		c.Ui.Error("The list command expects no arguments.\n")
		return cli.RunResultHelp
	}

	ctx := c.CommandContext()
	s, err := c.openKeyring(ctx)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	defer s.close()

	entries, err := s.repo.GetAll(ctx)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to read the key ring: %s", err))
		return 1
	}

	now := c.now()
	var buf strings.Builder
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	shown := 0
	for _, e := range entries {
		info, err := keydesc.Describe(e)
		if err != nil {
			c.Ui.Warn(fmt.Sprintf("Skipping unreadable <%s> entry: %s", e.Name, err))
			continue
		}
		if activeOnly && !info.ActiveAt(now) {
			continue
		}
		fmt.Fprintln(tw, formatInfo(info))
		shown++
	}
	tw.Flush()

	if shown == 0 {
		if activeOnly {
			c.Ui.Output("The key ring has no active keys.")
		} else {
			c.Ui.Output("The key ring is empty.")
		}
		return 0
	}
	c.Ui.Output(strings.TrimRight(buf.String(), "\n"))
	return 0
}

func formatInfo(info keydesc.Info) string {
	switch info.Kind {
	case keydesc.KindKey:
		protection := "plaintext"
		if info.Encrypted {
			protection = "encrypted"
		}
		return fmt.Sprintf("key\t%s\t%s\t%s\t%s", info.ID, formatTime(info.Activation), formatTime(info.Expiration), protection)
	case keydesc.KindRevocation:
		return fmt.Sprintf("revocation\t%s\t%s\t%s", info.ID, formatTime(info.Revoked), info.Reason)
	default:
		return info.Name
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func (c *ListCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *ListCommand) AutocompleteFlags() complete.Flags {
	return withCommonFlags(complete.Flags{
		"-active": complete.PredictNothing,
	})
}

func (c *ListCommand) Help() string {
	helpText := `
Usage: keyring [global options] list [options]

  Lists the entries of the key ring, oldest first. Keys are shown with
  their id, activation and expiration dates, and whether the master key
  is encrypted. Revocations are shown with the id they revoke.

Options:

  -config=path  Configuration file. Defaults to keyring.hcl in the
                current directory, if present.

  -active       Only show keys that are valid right now.
`
	return strings.TrimSpace(helpText)
}

func (c *ListCommand) Synopsis() string {
	return "List the entries of the key ring"
}
