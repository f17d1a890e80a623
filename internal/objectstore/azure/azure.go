// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package azure stores the key ring in an Azure Storage block blob. Blob
// ETags serve as versions, and uploads use ETag access conditions.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/fvoncina/dataprotection-gcs/internal/httpclient"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

// Config locates the key ring blob. Exactly one way of authenticating is
// used: the account access key if set, else the SAS token if set, else the
// default Azure credential chain.
type Config struct {
	// ContainerURL is the full URL of the container, for example
	// https://myaccount.blob.core.windows.net/keys.
	ContainerURL string
	Blob         string

	AccountName string
	AccessKey   string
	SASToken    string
}

// Client is an [objectstore.Client] for one block blob.
type Client struct {
	blobClient *blockblob.Client
	container  string
	blobName   string
}

var _ objectstore.Client = (*Client)(nil)

// New connects to Azure Storage.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ContainerURL == "" || cfg.Blob == "" {
		return nil, errors.New("azure: container URL and blob name are required")
	}

	opts := &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpclient.New(ctx),
			Telemetry: policy.TelemetryOptions{ApplicationID: httpclient.DefaultApplicationName},
		},
	}

	var (
		cc  *container.Client
		err error
	)
	switch {
	case cfg.AccessKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccessKey)
		if err == nil {
			cc, err = container.NewClientWithSharedKeyCredential(cfg.ContainerURL, cred, opts)
		}
	case cfg.SASToken != "":
		cc, err = container.NewClientWithNoCredential(cfg.ContainerURL+"?"+strings.TrimPrefix(cfg.SASToken, "?"), opts)
	default:
		var cred *azidentity.DefaultAzureCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err == nil {
			cc, err = container.NewClient(cfg.ContainerURL, cred, opts)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("azure: creating container client: %w", err)
	}
	return NewFromContainerClient(cc, cfg.Blob), nil
}

// NewFromContainerClient wraps an existing container client.
func NewFromContainerClient(cc *container.Client, blobName string) *Client {
	return &Client{
		blobClient: cc.NewBlockBlobClient(blobName),
		container:  containerName(cc.URL()),
		blobName:   blobName,
	}
}

func (c *Client) Stat(ctx context.Context) (*objectstore.Handle, error) {
	resp, err := c.blobClient.GetProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: reading properties of blob %s: %w", c.blobName, mapError(err))
	}
	h := &objectstore.Handle{
		Container: c.container,
		Name:      c.blobName,
	}
	if resp.ETag != nil {
		h.Version = string(*resp.ETag)
	}
	if resp.ContentLength != nil {
		h.Size = *resp.ContentLength
	}
	return h, nil
}

func (c *Client) Download(ctx context.Context, h *objectstore.Handle) ([]byte, error) {
	opts := &blob.DownloadStreamOptions{}
	if h.Version != "" {
		etag := azcore.ETag(h.Version)
		opts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfMatch: &etag},
		}
	}

	resp, err := c.blobClient.DownloadStream(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("azure: downloading blob %s: %w", c.blobName, mapError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: reading blob %s: %w", c.blobName, err)
	}
	return data, nil
}

func (c *Client) Upload(ctx context.Context, data []byte, cond objectstore.Condition) (string, error) {
	contentType := objectstore.ContentTypeXML
	opts := &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if mac := accessConditions(cond); mac != nil {
		opts.AccessConditions = &blob.AccessConditions{ModifiedAccessConditions: mac}
	}

	log.Printf("[DEBUG] azure: uploading key ring to %s (%s)", c.blobClient.URL(), cond)
	resp, err := c.blobClient.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), opts)
	if err != nil {
		return "", fmt.Errorf("azure: uploading blob %s (%s): %w", c.blobName, cond, mapError(err))
	}
	if resp.ETag == nil {
		return "", fmt.Errorf("azure: upload of blob %s returned no ETag", c.blobName)
	}
	return string(*resp.ETag), nil
}

func accessConditions(cond objectstore.Condition) *blob.ModifiedAccessConditions {
	switch {
	case cond.IfNotExists:
		anyETag := azcore.ETagAny
		return &blob.ModifiedAccessConditions{IfNoneMatch: &anyETag}
	case cond.IfVersionMatch != "":
		etag := azcore.ETag(cond.IfVersionMatch)
		return &blob.ModifiedAccessConditions{IfMatch: &etag}
	default:
		return nil
	}
}

// mapError translates Azure Storage errors into the objectstore sentinels,
// keeping the original error in the chain.
func mapError(err error) error {
	if bloberror.HasCode(err, bloberror.ConditionNotMet, bloberror.BlobAlreadyExists) {
		return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %w", objectstore.ErrPreconditionFailed, err)
		case http.StatusNotFound:
			// A missing container also reports 404, but with its own code.
			if !bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return fmt.Errorf("%w: %w", objectstore.ErrNotFound, err)
			}
		}
	}
	return err
}

// containerName extracts the container from a container URL.
func containerName(rawURL string) string {
	u := rawURL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, "/")
	return u[strings.LastIndexByte(u, '/')+1:]
}
