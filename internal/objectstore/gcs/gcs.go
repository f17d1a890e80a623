// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package gcs stores the key ring in a Google Cloud Storage object. Object
// generations serve as versions, and uploads use generation preconditions.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/hashicorp/go-hclog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fvoncina/dataprotection-gcs/internal/gcpauth"
	"github.com/fvoncina/dataprotection-gcs/internal/logging"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

// Config locates the key ring object.
type Config struct {
	Bucket string
	Object string

	// Endpoint overrides the storage API endpoint, for emulators.
	Endpoint string

	Credentials gcpauth.Credentials
}

// Client is an [objectstore.Client] for one GCS object.
type Client struct {
	storageClient *storage.Client
	bucketName    string
	objectName    string
	logger        hclog.Logger
}

var _ objectstore.Client = (*Client)(nil)

// New connects to Cloud Storage.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" || cfg.Object == "" {
		return nil, errors.New("gcs: bucket and object are required")
	}

	opts, err := cfg.Credentials.WithEnvDefaults().ClientOptions(ctx, storage.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("gcs: %w", err)
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: creating storage client: %w", err)
	}
	return NewFromStorageClient(sc, cfg.Bucket, cfg.Object), nil
}

// NewFromStorageClient wraps an existing storage client.
func NewFromStorageClient(sc *storage.Client, bucket, object string) *Client {
	return &Client{
		storageClient: sc,
		bucketName:    bucket,
		objectName:    object,
		logger:        logging.HCLogger().Named("objectstore-gcs").With("bucket", bucket, "object", object),
	}
}

// Close closes the underlying storage client.
func (c *Client) Close() error {
	return c.storageClient.Close()
}

func (c *Client) object() *storage.ObjectHandle {
	return c.storageClient.Bucket(c.bucketName).Object(c.objectName)
}

func (c *Client) Stat(ctx context.Context) (*objectstore.Handle, error) {
	attrs, err := c.object().Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: reading attributes of gs://%s/%s: %w", c.bucketName, c.objectName, mapError(err))
	}
	c.logger.Trace("stat", "generation", attrs.Generation, "size", attrs.Size)
	return &objectstore.Handle{
		Container: c.bucketName,
		Name:      c.objectName,
		Version:   formatGeneration(attrs.Generation),
		Size:      attrs.Size,
	}, nil
}

func (c *Client) Download(ctx context.Context, h *objectstore.Handle) ([]byte, error) {
	gen, err := parseGeneration(h.Version)
	if err != nil {
		return nil, fmt.Errorf("gcs: %w", err)
	}

	r, err := c.object().Generation(gen).NewReader(ctx)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, objectstore.ErrNotFound) {
			// The generation we were asked for has been replaced.
			err = fmt.Errorf("generation %d is gone: %w", gen, objectstore.ErrPreconditionFailed)
		}
		return nil, fmt.Errorf("gcs: downloading gs://%s/%s: %w", c.bucketName, c.objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: reading gs://%s/%s: %w", c.bucketName, c.objectName, mapError(err))
	}
	return data, nil
}

func (c *Client) Upload(ctx context.Context, data []byte, cond objectstore.Condition) (string, error) {
	conds, err := conditions(cond)
	if err != nil {
		return "", fmt.Errorf("gcs: %w", err)
	}

	obj := c.object()
	if conds != nil {
		obj = obj.If(*conds)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = objectstore.ContentTypeXML
	w.ChunkSize = 0 // single request
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("gcs: writing gs://%s/%s: %w", c.bucketName, c.objectName, mapError(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: writing gs://%s/%s (%s): %w", c.bucketName, c.objectName, cond, mapError(err))
	}

	gen := w.Attrs().Generation
	c.logger.Debug("uploaded key ring", "generation", gen, "condition", cond.String())
	return formatGeneration(gen), nil
}

// conditions translates cond into storage preconditions. A nil result means
// the upload is unconditional.
func conditions(cond objectstore.Condition) (*storage.Conditions, error) {
	switch {
	case cond.IfNotExists:
		return &storage.Conditions{DoesNotExist: true}, nil
	case cond.IfVersionMatch != "":
		gen, err := parseGeneration(cond.IfVersionMatch)
		if err != nil {
			return nil, err
		}
		return &storage.Conditions{GenerationMatch: gen}, nil
	default:
		return nil, nil
	}
}

// mapError translates the storage library's errors into the objectstore
// sentinels, keeping the original error in the chain.
func mapError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
		}
		return err
	}

	// Clients using the gRPC transport report the same conditions as status
	// codes.
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.FailedPrecondition:
			return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
		case codes.NotFound:
			return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
		}
	}
	return err
}

func formatGeneration(gen int64) string {
	return strconv.FormatInt(gen, 10)
}

func parseGeneration(v string) (int64, error) {
	gen, err := strconv.ParseInt(v, 10, 64)
	if err != nil || gen <= 0 {
		return 0, fmt.Errorf("invalid object generation %q", v)
	}
	return gen, nil
}
