// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package command implements the keyring CLI subcommands.
package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fvoncina/dataprotection-gcs/internal/config"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

// DefaultConfigPath is read when -config is not given and the file exists.
const DefaultConfigPath = "keyring.hcl"

// Meta holds what every command shares.
type Meta struct {
	Ui cli.Ui

	// Stdin is read by commands that accept "-" for a file argument.
	Stdin io.Reader

	// Now is the clock used for key dates. Defaults to time.Now.
	Now func() time.Time

	// Registerer receives repository metrics. May be nil.
	Registerer prometheus.Registerer

	// ShutdownCtx is cancelled when the process is asked to stop.
	ShutdownCtx context.Context

	// Store, if set, replaces whatever store the configuration names.
	Store objectstore.Client

	configPath string
}

func (m *Meta) defaultFlagSet(n string) *flag.FlagSet {
	f := flag.NewFlagSet(n, flag.ContinueOnError)
	f.SetOutput(io.Discard)

	// Set the default Usage to empty
	f.Usage = func() {}

	return f
}

// extendedFlagSet adds the flags every key ring command accepts.
func (m *Meta) extendedFlagSet(n string) *flag.FlagSet {
	f := m.defaultFlagSet(n)
	f.StringVar(&m.configPath, "config", "", "path")
	return f
}

// CommandContext returns the context commands run under.
func (m *Meta) CommandContext() context.Context {
	if m.ShutdownCtx != nil {
		return m.ShutdownCtx
	}
	return context.Background()
}

func (m *Meta) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// session is an open key ring with the optional protector for new keys.
type session struct {
	repo      *keyring.Repository
	protector keydesc.Protector
	close     func() error
}

// openKeyring loads the configuration and opens the key ring it names.
func (m *Meta) openKeyring(ctx context.Context) (*session, error) {
	path := m.configPath
	if path == "" && fileExists(DefaultConfigPath) {
		path = DefaultConfigPath
	}

	var (
		cfg *config.Config
		err error
	)
	if m.Store != nil && path == "" {
		cfg = &config.Config{}
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
	}

	// An overriding store belongs to the caller, so it stays out of built
	// and is never closed here.
	built := &config.Built{}
	client := m.Store
	if client == nil {
		built, err = cfg.Build(ctx)
		if err != nil {
			return nil, err
		}
		client = built.Client
	} else if cfg.KMS != nil {
		p, err := cfg.Protector(ctx)
		if err != nil {
			return nil, err
		}
		built.Protector = p
	}

	opts := cfg.RepositoryOptions()
	opts.Registerer = m.Registerer
	repo, err := keyring.New(client, opts)
	if err != nil {
		built.Close()
		return nil, err
	}
	return &session{repo: repo, protector: built.Protector, close: built.Close}, nil
}
