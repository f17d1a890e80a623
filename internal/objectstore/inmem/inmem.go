// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package inmem is an [objectstore.Client] that keeps the object in memory.
//
// It enforces upload preconditions the same way the real services do, so it
// is suitable for exercising the key ring's concurrency behavior in tests and
// for local experimentation with the CLI. It also offers hooks to inject
// faults into individual calls.
package inmem

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

// Client is an in-memory object store holding a single object.
//
// The zero value is not usable; call [New].
type Client struct {
	container string
	name      string

	mu       sync.Mutex
	data     []byte
	exists   bool
	revision int64

	statFaults   []error
	uploadFaults []error

	stats     int
	downloads int
	uploads   int
}

var _ objectstore.Client = (*Client)(nil)

// New returns an empty in-memory store for the given container and name.
func New(container, name string) *Client {
	return &Client{container: container, name: name}
}

// Seed replaces the stored object unconditionally, as if some other process
// had written it, and returns the new version.
func (c *Client) Seed(data []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(data)
}

// Data returns a copy of the current payload, or nil if the object does not
// exist.
func (c *Client) Data() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exists {
		return nil
	}
	return bytes.Clone(c.data)
}

// FailStats queues errors to be returned by the next len(errs) calls to Stat,
// in order. A nil entry lets that call through.
func (c *Client) FailStats(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statFaults = append(c.statFaults, errs...)
}

// FailUploads queues errors to be returned by the next len(errs) calls to
// Upload, in order. A nil entry lets that call through.
func (c *Client) FailUploads(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploadFaults = append(c.uploadFaults, errs...)
}

// Calls reports how many times each operation has been called.
func (c *Client) Calls() (stats, downloads, uploads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.downloads, c.uploads
}

func (c *Client) Stat(ctx context.Context) (*objectstore.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats++

	if len(c.statFaults) > 0 {
		err := c.statFaults[0]
		c.statFaults = c.statFaults[1:]
		if err != nil {
			return nil, err
		}
	}
	if !c.exists {
		return nil, fmt.Errorf("%s/%s: %w", c.container, c.name, objectstore.ErrNotFound)
	}
	return c.handle(), nil
}

func (c *Client) Download(ctx context.Context, h *objectstore.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloads++

	if !c.exists {
		return nil, fmt.Errorf("%s/%s: %w", c.container, c.name, objectstore.ErrNotFound)
	}
	if h != nil && h.Version != "" && h.Version != c.version() {
		return nil, fmt.Errorf("%s/%s: revision %s was replaced by %s: %w", c.container, c.name, h.Version, c.version(), objectstore.ErrPreconditionFailed)
	}
	return bytes.Clone(c.data), nil
}

func (c *Client) Upload(ctx context.Context, data []byte, cond objectstore.Condition) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads++

	if len(c.uploadFaults) > 0 {
		err := c.uploadFaults[0]
		c.uploadFaults = c.uploadFaults[1:]
		if err != nil {
			return "", err
		}
	}

	switch {
	case cond.IfNotExists && c.exists:
		return "", fmt.Errorf("%s/%s already exists at revision %s: %w", c.container, c.name, c.version(), objectstore.ErrPreconditionFailed)
	case cond.IfVersionMatch != "" && (!c.exists || cond.IfVersionMatch != c.version()):
		return "", fmt.Errorf("%s/%s: expected revision %s, found %s: %w", c.container, c.name, cond.IfVersionMatch, c.version(), objectstore.ErrPreconditionFailed)
	}
	return c.put(data), nil
}

// put must be called with c.mu held.
func (c *Client) put(data []byte) string {
	c.data = bytes.Clone(data)
	c.exists = true
	c.revision++
	return c.version()
}

func (c *Client) version() string {
	if !c.exists {
		return ""
	}
	return strconv.FormatInt(c.revision, 10)
}

func (c *Client) handle() *objectstore.Handle {
	return &objectstore.Handle{
		Container: c.container,
		Name:      c.name,
		Version:   c.version(),
		Size:      int64(len(c.data)),
	}
}
