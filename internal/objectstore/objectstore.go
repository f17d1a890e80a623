// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package objectstore defines the narrow view of a remote object store that
// the key ring needs: a single named object inside a named container, which
// can be inspected, downloaded, and overwritten under an optional version
// precondition.
//
// Concrete implementations live in the subpackages of this package, one per
// storage service. Each of them binds the container and object name at
// construction time so that callers only ever deal with "the" object.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ContentTypeXML is the content type used by all of the implementations in
// this module unless configured otherwise.
const ContentTypeXML = "application/xml"

var (
	// ErrNotFound is returned by [Client.Stat] and [Client.Download] when the
	// object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned by [Client.Upload] when the given
	// [Condition] does not hold for the object's current version, which
	// typically means another writer modified it since it was last read.
	ErrPreconditionFailed = errors.New("object version precondition failed")
)

// Handle identifies one specific revision of the remote object.
type Handle struct {
	Container string
	Name      string

	// Version is the store's opaque revision token: a generation number for
	// Cloud Storage, an ETag for S3 and Azure, a KV revision for NATS. It is
	// only ever compared and forwarded, never interpreted.
	Version string

	Size int64
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s/%s@%s", h.Container, h.Name, h.Version)
}

// Condition is a precondition for [Client.Upload]. The zero value means an
// unconditional overwrite.
type Condition struct {
	// IfNotExists makes the upload succeed only if the object does not exist
	// yet.
	IfNotExists bool

	// IfVersionMatch makes the upload succeed only if the object's current
	// version equals this value.
	IfVersionMatch string
}

// IfVersion returns the condition for replacing exactly the given revision.
func IfVersion(version string) Condition {
	return Condition{IfVersionMatch: version}
}

// IfAbsent returns the condition for creating the object.
func IfAbsent() Condition {
	return Condition{IfNotExists: true}
}

// IsZero returns true if the condition imposes no precondition at all.
func (c Condition) IsZero() bool {
	return !c.IfNotExists && c.IfVersionMatch == ""
}

func (c Condition) String() string {
	switch {
	case c.IfNotExists:
		return "if-not-exists"
	case c.IfVersionMatch != "":
		return "if-version=" + c.IfVersionMatch
	default:
		return "unconditional"
	}
}

// Client is the interface implemented by every object store backend.
type Client interface {
	// Stat returns the current revision of the object without downloading
	// its body, or an error matching [ErrNotFound] if there is none.
	Stat(ctx context.Context) (*Handle, error)

	// Download fetches the payload of the given revision. Implementations
	// whose service supports it pin the read to h.Version, returning an
	// error matching [ErrPreconditionFailed] or [ErrNotFound] if that
	// revision has since been replaced or deleted.
	Download(ctx context.Context, h *Handle) ([]byte, error)

	// Upload overwrites the object with data if cond holds, returning the
	// version token of the newly written revision.
	Upload(ctx context.Context, data []byte, cond Condition) (string, error)
}

// FetchAttempts bounds how many times [Fetch] re-reads the object when it is
// replaced between Stat and Download.
const FetchAttempts = 3

// Fetch is a convenience that calls Stat and then Download on the result.
// It returns the payload together with the handle it was downloaded from.
//
// If another writer replaces or deletes the object between the two calls,
// Fetch starts over from Stat, up to [FetchAttempts] times. Errors from Stat
// are returned as they are.
func Fetch(ctx context.Context, c Client) ([]byte, *Handle, error) {
	var err error
	for range FetchAttempts {
		var h *Handle
		h, err = c.Stat(ctx)
		if err != nil {
			return nil, nil, err
		}
		var data []byte
		data, err = c.Download(ctx, h)
		if err == nil {
			return data, h, nil
		}
		if !errors.Is(err, ErrPreconditionFailed) && !errors.Is(err, ErrNotFound) {
			return nil, nil, err
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		log.Printf("[TRACE] objectstore: %s/%s changed while reading revision %s, reading again", h.Container, h.Name, h.Version)
	}
	// Stat saw the object every time, so this must not read as ErrNotFound.
	return nil, nil, fmt.Errorf("object kept changing while being read (%v): %w", err, ErrPreconditionFailed)
}
