// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keyring

import (
	"sync/atomic"
)

// Snapshot is one observed revision of the remote key ring object.
//
// A Snapshot is never modified after it is created. Callers that want a
// different state build a new one.
type Snapshot struct {
	Payload []byte

	// Version is the store's opaque version token for this revision.
	Version string
}

// snapshotCache holds the most recently observed revision. A nil snapshot
// means the object was last seen not to exist, or has not been looked at yet.
//
// The cache is only a hint for the next merge. Conflicts are detected by the
// store comparing version tokens, never by looking at this value.
type snapshotCache struct {
	p atomic.Pointer[Snapshot]
}

func (c *snapshotCache) load() *Snapshot {
	return c.p.Load()
}

func (c *snapshotCache) store(s *Snapshot) {
	c.p.Store(s)
}
