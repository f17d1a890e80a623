// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package natskv stores the key ring as one key of a NATS JetStream
// key-value bucket. KV revisions serve as versions; creates and revision
// checked updates provide the conditional writes.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fvoncina/dataprotection-gcs/internal/httpclient"
	"github.com/fvoncina/dataprotection-gcs/internal/logging"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

// Config locates the key ring entry.
type Config struct {
	URL    string
	Bucket string
	Key    string

	// CredentialsFile is an optional NATS user credentials (.creds) file.
	CredentialsFile string
}

// bucket is the subset of [jetstream.KeyValue] the client uses.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}

// Client is an [objectstore.Client] for one KV key.
type Client struct {
	kv         bucket
	conn       *nats.Conn
	bucketName string
	key        string
	logger     hclog.Logger
}

var _ objectstore.Client = (*Client)(nil)

// New connects to NATS and opens the bucket, creating it if needed.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("nats: bucket and key are required")
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	opts := []nats.Option{nats.Name(httpclient.DefaultApplicationName)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredentialsFile))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats: connecting to %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: %w", err)
	}

	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "key ring",
			History:     1,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: opening bucket %s: %w", cfg.Bucket, err)
	}

	c := newClient(kv, cfg.Bucket, cfg.Key)
	c.conn = nc
	return c, nil
}

func newClient(kv bucket, bucketName, key string) *Client {
	return &Client{
		kv:         kv,
		bucketName: bucketName,
		key:        key,
		logger:     logging.HCLogger().Named("objectstore-nats").With("bucket", bucketName, "key", key),
	}
}

// Close drains the NATS connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}

func (c *Client) get(ctx context.Context) (jetstream.KeyValueEntry, error) {
	entry, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("nats: reading %s/%s: %w", c.bucketName, c.key, mapError(err))
	}
	return entry, nil
}

func (c *Client) Stat(ctx context.Context) (*objectstore.Handle, error) {
	entry, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return &objectstore.Handle{
		Container: c.bucketName,
		Name:      c.key,
		Version:   strconv.FormatUint(entry.Revision(), 10),
		Size:      int64(len(entry.Value())),
	}, nil
}

func (c *Client) Download(ctx context.Context, h *objectstore.Handle) ([]byte, error) {
	entry, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	if rev := strconv.FormatUint(entry.Revision(), 10); h.Version != "" && rev != h.Version {
		return nil, fmt.Errorf("nats: %s/%s is at revision %s, not %s: %w", c.bucketName, c.key, rev, h.Version, objectstore.ErrPreconditionFailed)
	}
	return entry.Value(), nil
}

func (c *Client) Upload(ctx context.Context, data []byte, cond objectstore.Condition) (string, error) {
	var (
		rev uint64
		err error
	)
	switch {
	case cond.IfNotExists:
		rev, err = c.kv.Create(ctx, c.key, data)
	case cond.IfVersionMatch != "":
		var last uint64
		last, err = strconv.ParseUint(cond.IfVersionMatch, 10, 64)
		if err != nil {
			return "", fmt.Errorf("nats: invalid revision %q", cond.IfVersionMatch)
		}
		rev, err = c.kv.Update(ctx, c.key, data, last)
	default:
		// Update with revision 0 only succeeds for a missing key, so the
		// current revision is needed for an unconditional write.
		var entry jetstream.KeyValueEntry
		entry, err = c.kv.Get(ctx, c.key)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			rev, err = c.kv.Create(ctx, c.key, data)
		case err == nil:
			rev, err = c.kv.Update(ctx, c.key, data, entry.Revision())
		}
	}
	if err != nil {
		return "", fmt.Errorf("nats: writing %s/%s (%s): %w", c.bucketName, c.key, cond, mapError(err))
	}

	c.logger.Debug("uploaded key ring", "revision", rev, "condition", cond.String())
	return strconv.FormatUint(rev, 10), nil
}

// mapError translates JetStream KV errors into the objectstore sentinels,
// keeping the original error in the chain.
func mapError(err error) error {
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
	}
	return err
}
