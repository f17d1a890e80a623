// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package inmem

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

func TestClient_statMissing(t *testing.T) {
	c := New("bucket", "keys.xml")
	_, err := c.Stat(context.Background())
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("wrong error\ngot:  %v\nwant: %v", err, objectstore.ErrNotFound)
	}
}

func TestClient_conditions(t *testing.T) {
	ctx := context.Background()
	c := New("bucket", "keys.xml")

	v1, err := c.Upload(ctx, []byte("<a/>"), objectstore.IfAbsent())
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	if _, err := c.Upload(ctx, []byte("<b/>"), objectstore.IfAbsent()); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Fatalf("second create should fail with precondition, got %v", err)
	}

	v2, err := c.Upload(ctx, []byte("<b/>"), objectstore.IfVersion(v1))
	if err != nil {
		t.Fatalf("update: %s", err)
	}
	if v1 == v2 {
		t.Fatalf("version did not change after update: %s", v2)
	}
	if _, err := c.Upload(ctx, []byte("<c/>"), objectstore.IfVersion(v1)); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Fatalf("stale update should fail with precondition, got %v", err)
	}

	data, h, err := objectstore.Fetch(ctx, c)
	if err != nil {
		t.Fatalf("fetch: %s", err)
	}
	if diff := cmp.Diff("<b/>", string(data)); diff != "" {
		t.Errorf("wrong payload\n%s", diff)
	}
	if h.Version != v2 {
		t.Errorf("wrong version %q; want %q", h.Version, v2)
	}

	if _, err := c.Upload(ctx, []byte("<d/>"), objectstore.Condition{}); err != nil {
		t.Fatalf("unconditional overwrite: %s", err)
	}
	if _, err := c.Download(ctx, h); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Fatalf("pinned download of replaced revision should fail, got %v", err)
	}
}

func TestClient_faults(t *testing.T) {
	ctx := context.Background()
	c := New("bucket", "keys.xml")
	boom := errors.New("boom")

	c.FailUploads(boom, nil)
	if _, err := c.Upload(ctx, []byte("<a/>"), objectstore.Condition{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	if _, err := c.Upload(ctx, []byte("<a/>"), objectstore.Condition{}); err != nil {
		t.Fatalf("nil fault should pass through, got %v", err)
	}

	c.FailStats(boom)
	if _, err := c.Stat(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected injected stat fault, got %v", err)
	}

	stats, downloads, uploads := c.Calls()
	if stats != 1 || downloads != 0 || uploads != 2 {
		t.Errorf("wrong call counts: stats=%d downloads=%d uploads=%d", stats, downloads, uploads)
	}
}

// writeAfterStat lets a concurrent writer commit right after each of the
// first len(writes) calls to Stat. A nil entry skips that call.
type writeAfterStat struct {
	*Client
	writes [][]byte
}

func (c *writeAfterStat) Stat(ctx context.Context) (*objectstore.Handle, error) {
	h, err := c.Client.Stat(ctx)
	if len(c.writes) > 0 {
		if w := c.writes[0]; w != nil {
			c.Seed(w)
		}
		c.writes = c.writes[1:]
	}
	return h, err
}

func TestFetch_objectReplacedAfterStat(t *testing.T) {
	ctx := context.Background()
	inner := New("bucket", "keys.xml")
	inner.Seed([]byte("<repository><a/></repository>"))
	c := &writeAfterStat{
		Client: inner,
		writes: [][]byte{[]byte("<repository><a/><b/></repository>")},
	}

	data, h, err := objectstore.Fetch(ctx, c)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := string(data), "<repository><a/><b/></repository>"; got != want {
		t.Errorf("wrong payload %q; want %q", got, want)
	}
	if h.Version != "2" {
		t.Errorf("wrong version %q; want 2", h.Version)
	}
	if stats, downloads, _ := inner.Calls(); stats != 2 || downloads != 2 {
		t.Errorf("expected 2 stats and 2 downloads, got %d and %d", stats, downloads)
	}
}

func TestFetch_objectKeepsChanging(t *testing.T) {
	inner := New("bucket", "keys.xml")
	inner.Seed([]byte("<repository/>"))
	writes := make([][]byte, objectstore.FetchAttempts)
	for i := range writes {
		writes[i] = []byte("<repository><a/></repository>")
	}
	c := &writeAfterStat{Client: inner, writes: writes}

	_, _, err := objectstore.Fetch(context.Background(), c)
	if !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Fatalf("wrong error\ngot:  %v\nwant: %v", err, objectstore.ErrPreconditionFailed)
	}
	if errors.Is(err, objectstore.ErrNotFound) {
		t.Errorf("an existing object must not be reported as missing: %v", err)
	}
	if stats, _, _ := inner.Calls(); stats != objectstore.FetchAttempts {
		t.Errorf("expected %d stats, got %d", objectstore.FetchAttempts, stats)
	}
}
