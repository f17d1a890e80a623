// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package config loads the keyring tool's configuration file and builds the
// object store client and key protector it describes.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Store types.
const (
	StoreGCS   = "gcs"
	StoreS3    = "s3"
	StoreAzure = "azure"
	StoreNATS  = "nats"
	StoreInmem = "inmem"
)

// Environment variables that override the configuration file.
const (
	EnvStore  = "KEYRING_STORE"
	EnvBucket = "KEYRING_BUCKET"
	EnvObject = "KEYRING_OBJECT"
)

// Config is the decoded configuration file.
type Config struct {
	RootElement string `hcl:"root_element,optional"`
	MaxRetries  int    `hcl:"max_retries,optional"`
	BaseBackoff string `hcl:"base_backoff,optional"`
	Store       *Store `hcl:"store,block"`
	KMS         *KMS   `hcl:"kms,block"`
	DeclRange   hcl.Range
}

// Store selects where the key ring object lives. Which of the optional
// attributes apply depends on Type.
type Store struct {
	Type   string `hcl:"type,label"`
	Bucket string `hcl:"bucket,optional"`
	Object string `hcl:"object,optional"`

	Endpoint string `hcl:"endpoint,optional"`

	// gcs
	Credentials               string   `hcl:"credentials,optional"`
	AccessToken               string   `hcl:"access_token,optional"`
	ImpersonateServiceAccount string   `hcl:"impersonate_service_account,optional"`
	ImpersonateDelegates      []string `hcl:"impersonate_service_account_delegates,optional"`

	// s3
	Region       string `hcl:"region,optional"`
	UsePathStyle bool   `hcl:"use_path_style,optional"`
	Profile      string `hcl:"profile,optional"`
	AccessKey    string `hcl:"access_key,optional"`
	SecretKey    string `hcl:"secret_key,optional"`

	// azure
	AccountName string `hcl:"account_name,optional"`
	SASToken    string `hcl:"sas_token,optional"`

	// nats
	URL             string `hcl:"url,optional"`
	CredentialsFile string `hcl:"credentials_file,optional"`
}

// KMS enables encryption of generated master keys with Google Cloud KMS.
type KMS struct {
	KeyName                   string   `hcl:"key_name"`
	Credentials               string   `hcl:"credentials,optional"`
	AccessToken               string   `hcl:"access_token,optional"`
	ImpersonateServiceAccount string   `hcl:"impersonate_service_account,optional"`
	ImpersonateDelegates      []string `hcl:"impersonate_service_account_delegates,optional"`
}

// Load reads the configuration file at path and applies the environment
// overrides. An empty path means no file: the configuration then comes from
// the environment alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return finish(&Config{})
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return LoadBytes(src, path)
}

// LoadBytes is [Load] for a configuration that is already in memory.
// filename is used only in error messages.
func LoadBytes(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	cfg := &Config{DeclRange: hcl.Range{Filename: filename}}
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, diags
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvStore); v != "" {
		if c.Store == nil || c.Store.Type != v {
			c.Store = &Store{Type: v}
		}
	}
	if c.Store == nil {
		if os.Getenv(EnvBucket) == "" && os.Getenv(EnvObject) == "" {
			return
		}
		c.Store = &Store{Type: StoreGCS}
	}
	if v := os.Getenv(EnvBucket); v != "" {
		c.Store.Bucket = v
	}
	if v := os.Getenv(EnvObject); v != "" {
		c.Store.Object = v
	}
}

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.RootElement != "" && !validName.MatchString(c.RootElement) {
		errs = multierror.Append(errs, fmt.Errorf("root_element %q is not a valid XML element name", c.RootElement))
	}
	if c.MaxRetries < 0 {
		errs = multierror.Append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.BaseBackoff != "" {
		if d, err := time.ParseDuration(c.BaseBackoff); err != nil || d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("base_backoff %q is not a positive duration", c.BaseBackoff))
		}
	}

	if c.Store == nil {
		errs = multierror.Append(errs, fmt.Errorf("a store block is required (or set %s)", EnvStore))
	} else {
		switch c.Store.Type {
		case StoreGCS, StoreS3, StoreAzure, StoreNATS:
			if c.Store.Bucket == "" {
				errs = multierror.Append(errs, fmt.Errorf("store %q: bucket is required", c.Store.Type))
			}
			if c.Store.Object == "" {
				errs = multierror.Append(errs, fmt.Errorf("store %q: object is required", c.Store.Type))
			}
		case StoreInmem:
		default:
			errs = multierror.Append(errs, fmt.Errorf("unsupported store type %q", c.Store.Type))
		}
		if c.Store.Type == StoreAzure && c.Store.AccessKey != "" && c.Store.AccountName == "" {
			errs = multierror.Append(errs, errors.New(`store "azure": account_name is required with access_key`))
		}
	}

	if c.KMS != nil && c.KMS.KeyName == "" {
		errs = multierror.Append(errs, errors.New("kms: key_name must not be empty"))
	}

	return errs.ErrorOrNil()
}

// Backoff returns the configured base backoff, or zero for the default.
func (c *Config) Backoff() time.Duration {
	d, _ := time.ParseDuration(c.BaseBackoff)
	return d
}
