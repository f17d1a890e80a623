// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"os"

	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fvoncina/dataprotection-gcs/internal/command"
)

// Commands is the mapping of all the available keyring commands.
var commands map[string]cli.CommandFactory

// Ui is the cli.Ui used for communicating to the outside world.
var Ui cli.Ui

func initCommands(ctx context.Context, registerer prometheus.Registerer) {
	meta := command.Meta{
		Ui:          Ui,
		Stdin:       os.Stdin,
		Registerer:  registerer,
		ShutdownCtx: ctx,
	}

	commands = map[string]cli.CommandFactory{
		"append": func() (cli.Command, error) {
			return &command.AppendCommand{
				Meta: meta,
			}, nil
		},

		"list": func() (cli.Command, error) {
			return &command.ListCommand{
				Meta: meta,
			}, nil
		},

		"new-key": func() (cli.Command, error) {
			return &command.NewKeyCommand{
				Meta: meta,
			}, nil
		},

		"revoke": func() (cli.Command, error) {
			return &command.RevokeCommand{
				Meta: meta,
			}, nil
		},

		"version": func() (cli.Command, error) {
			return &command.VersionCommand{
				Meta:              meta,
				Version:           Version,
				VersionPrerelease: VersionPrerelease,
			}, nil
		},
	}
}
