// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package s3 stores the key ring in an Amazon S3 (or S3-compatible) object.
// ETags serve as versions, and uploads use the If-None-Match and If-Match
// conditional write headers.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	awsbase "github.com/hashicorp/aws-sdk-go-base/v2"
	basediag "github.com/hashicorp/aws-sdk-go-base/v2/diag"
	baselogging "github.com/hashicorp/aws-sdk-go-base/v2/logging"
	"github.com/hashicorp/go-multierror"

	"github.com/fvoncina/dataprotection-gcs/internal/httpclient"
	"github.com/fvoncina/dataprotection-gcs/internal/logging"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
	"github.com/fvoncina/dataprotection-gcs/version"
)

// Config locates the key ring object and, optionally, overrides how the
// AWS credentials chain is resolved. Anything left empty falls back to the
// usual AWS environment variables and shared configuration files.
type Config struct {
	Bucket string
	Key    string

	Region       string
	Endpoint     string
	UsePathStyle bool

	Profile   string
	AccessKey string
	SecretKey string
	Token     string
}

// Client is an [objectstore.Client] for one S3 object.
type Client struct {
	s3Client   *s3.Client
	bucketName string
	path       string
}

var _ objectstore.Client = (*Client)(nil)

// New resolves AWS credentials and connects to S3.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3: bucket and key are required")
	}

	ctx, baselog := attachLoggerToContext(ctx)

	baseCfg := &awsbase.Config{
		AccessKey:               cfg.AccessKey,
		CallerName:              "Key ring S3 store",
		MaxRetries:              5,
		Profile:                 cfg.Profile,
		Region:                  cfg.Region,
		SecretKey:               cfg.SecretKey,
		Token:                   cfg.Token,
		SkipRequestingAccountId: true,
		HTTPProxyMode:           awsbase.HTTPProxyModeSeparate,
		APNInfo: &awsbase.APNInfo{
			PartnerName: "Keyring-S3-Store",
			Products: []awsbase.UserAgentProduct{
				{Name: httpclient.DefaultApplicationName, Version: version.String()},
			},
		},
		Logger: baselog,
	}

	_, awsConfig, awsDiags := awsbase.GetAwsConfig(ctx, baseCfg)
	var errs *multierror.Error
	for _, d := range awsDiags {
		switch d.Severity() {
		case basediag.SeverityError:
			errs = multierror.Append(errs, fmt.Errorf("%s: %s", d.Summary(), d.Detail()))
		case basediag.SeverityWarning:
			log.Printf("[WARN] s3: %s: %s", d.Summary(), d.Detail())
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("s3: configuring AWS client: %w", err)
	}

	sc := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewFromS3Client(sc, cfg.Bucket, cfg.Key), nil
}

// NewFromS3Client wraps an existing S3 client.
func NewFromS3Client(sc *s3.Client, bucket, key string) *Client {
	return &Client{
		s3Client:   sc,
		bucketName: bucket,
		path:       key,
	}
}

func (c *Client) Stat(ctx context.Context) (*objectstore.Handle, error) {
	ctx, _ = attachLoggerToContext(ctx)

	out, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &c.bucketName,
		Key:    &c.path,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: reading metadata of s3://%s/%s: %w", c.bucketName, c.path, mapError(err))
	}
	return &objectstore.Handle{
		Container: c.bucketName,
		Name:      c.path,
		Version:   aws.ToString(out.ETag),
		Size:      aws.ToInt64(out.ContentLength),
	}, nil
}

func (c *Client) Download(ctx context.Context, h *objectstore.Handle) ([]byte, error) {
	ctx, _ = attachLoggerToContext(ctx)

	input := &s3.GetObjectInput{
		Bucket: &c.bucketName,
		Key:    &c.path,
	}
	if h.Version != "" {
		input.IfMatch = aws.String(h.Version)
	}

	out, err := c.s3Client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("s3: downloading s3://%s/%s: %w", c.bucketName, c.path, mapError(err))
	}
	defer out.Body.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("s3: reading s3://%s/%s: %w", c.bucketName, c.path, err)
	}
	return buf.Bytes(), nil
}

func (c *Client) Upload(ctx context.Context, data []byte, cond objectstore.Condition) (string, error) {
	ctx, _ = attachLoggerToContext(ctx)

	input := &s3.PutObjectInput{
		ContentType:   aws.String(objectstore.ContentTypeXML),
		ContentLength: aws.Int64(int64(len(data))),
		Body:          bytes.NewReader(data),
		Bucket:        &c.bucketName,
		Key:           &c.path,
	}
	switch {
	case cond.IfNotExists:
		input.IfNoneMatch = aws.String("*")
	case cond.IfVersionMatch != "":
		input.IfMatch = aws.String(cond.IfVersionMatch)
	}

	log.Printf("[DEBUG] s3: uploading key ring to s3://%s/%s (%s)", c.bucketName, c.path, cond)
	out, err := c.s3Client.PutObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("s3: uploading s3://%s/%s (%s): %w", c.bucketName, c.path, cond, mapError(err))
	}
	return aws.ToString(out.ETag), nil
}

// mapError translates S3 errors into the objectstore sentinels, keeping the
// original error in the chain.
func mapError(err error) error {
	var nf *types.NotFound
	var nk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nk) {
		return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
		}
	}
	return err
}

func attachLoggerToContext(ctx context.Context) (context.Context, baselogging.HcLogger) {
	ctx, baselog := baselogging.NewHcLogger(ctx, logging.HCLogger().Named("objectstore-s3"))
	ctx = baselogging.RegisterLogger(ctx, baselog)
	return ctx, baselog
}
