// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/fvoncina/dataprotection-gcs/internal/gcpauth"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc/gcpkms"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore/azure"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore/gcs"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore/inmem"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore/natskv"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore/s3"
)

// Built holds what a [Config] describes, ready for use.
type Built struct {
	Client objectstore.Client

	// Protector is nil when no kms block is configured.
	Protector keydesc.Protector
}

// Close releases any connections held by b.
func (b *Built) Close() error {
	var errs *multierror.Error
	if err := closeIfCloser(b.Client); err != nil {
		errs = multierror.Append(errs, err)
	}
	if b.Protector != nil {
		if err := closeIfCloser(b.Protector); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Build creates both the object store client and the optional key
// protector.
func (c *Config) Build(ctx context.Context) (*Built, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	protector, err := c.Protector(ctx)
	if err != nil {
		_ = closeIfCloser(client)
		return nil, err
	}
	b := &Built{Client: client}
	if protector != nil {
		b.Protector = protector
	}
	return b, nil
}

// RepositoryOptions returns the [keyring.Options] the configuration asks
// for.
func (c *Config) RepositoryOptions() *keyring.Options {
	return &keyring.Options{
		RootElement: c.RootElement,
		MaxRetries:  c.MaxRetries,
		BaseBackoff: c.Backoff(),
	}
}

// Client builds the object store client for the configured store.
func (c *Config) Client(ctx context.Context) (objectstore.Client, error) {
	s := c.Store
	if s == nil {
		return nil, errors.New("no store configured")
	}
	log.Printf("[DEBUG] config: using %s store %s/%s", s.Type, s.Bucket, s.Object)

	switch s.Type {
	case StoreGCS:
		return gcs.New(ctx, gcs.Config{
			Bucket:   s.Bucket,
			Object:   s.Object,
			Endpoint: s.Endpoint,
			Credentials: gcpauth.Credentials{
				Credentials:                        s.Credentials,
				AccessToken:                        s.AccessToken,
				ImpersonateServiceAccount:          s.ImpersonateServiceAccount,
				ImpersonateServiceAccountDelegates: s.ImpersonateDelegates,
			},
		})
	case StoreS3:
		return s3.New(ctx, s3.Config{
			Bucket:       s.Bucket,
			Key:          s.Object,
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.UsePathStyle,
			Profile:      s.Profile,
			AccessKey:    s.AccessKey,
			SecretKey:    s.SecretKey,
		})
	case StoreAzure:
		return azure.New(ctx, azure.Config{
			ContainerURL: containerURL(s),
			Blob:         s.Object,
			AccountName:  s.AccountName,
			AccessKey:    s.AccessKey,
			SASToken:     s.SASToken,
		})
	case StoreNATS:
		return natskv.New(ctx, natskv.Config{
			URL:             s.URL,
			Bucket:          s.Bucket,
			Key:             s.Object,
			CredentialsFile: s.CredentialsFile,
		})
	case StoreInmem:
		return inmem.New(s.Bucket, s.Object), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q", s.Type)
	}
}

// Protector builds the Cloud KMS key protector, or returns nil if no kms
// block is configured.
func (c *Config) Protector(ctx context.Context) (*gcpkms.Protector, error) {
	if c.KMS == nil {
		return nil, nil
	}
	return gcpkms.New(ctx, gcpkms.Config{
		KeyName: c.KMS.KeyName,
		Credentials: gcpauth.Credentials{
			Credentials:                        c.KMS.Credentials,
			AccessToken:                        c.KMS.AccessToken,
			ImpersonateServiceAccount:          c.KMS.ImpersonateServiceAccount,
			ImpersonateServiceAccountDelegates: c.KMS.ImpersonateDelegates,
		},
	})
}

// containerURL returns the Azure container URL. The bucket attribute may be
// a full URL or just the container name, in which case the endpoint or the
// account's public endpoint is used as the base.
func containerURL(s *Store) string {
	if isURL(s.Bucket) {
		return s.Bucket
	}
	base := s.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s.blob.core.windows.net", s.AccountName)
	}
	return strings.TrimRight(base, "/") + "/" + s.Bucket
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
