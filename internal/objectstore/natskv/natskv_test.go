// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package natskv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring/xmldoc"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
)

type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
	rev   uint64
}

func (e *fakeEntry) Value() []byte    { return e.value }
func (e *fakeEntry) Revision() uint64 { return e.rev }

// fakeBucket applies the same create and update rules as a JetStream KV
// bucket for a single key.
type fakeBucket struct {
	mu    sync.Mutex
	value []byte
	rev   uint64
	seq   uint64
}

func (b *fakeBucket) Get(_ context.Context, _ string) (jetstream.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rev == 0 {
		return nil, jetstream.ErrKeyNotFound
	}
	return &fakeEntry{value: append([]byte(nil), b.value...), rev: b.rev}, nil
}

func (b *fakeBucket) Create(_ context.Context, _ string, value []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rev != 0 {
		return 0, jetstream.ErrKeyExists
	}
	return b.put(value), nil
}

func (b *fakeBucket) Update(_ context.Context, _ string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if revision != b.rev {
		return 0, &jetstream.APIError{
			Code:        400,
			ErrorCode:   jetstream.JSErrCodeStreamWrongLastSequence,
			Description: "wrong last sequence",
		}
	}
	return b.put(value), nil
}

func (b *fakeBucket) put(value []byte) uint64 {
	b.seq += 3 // other keys share the stream sequence
	b.rev = b.seq
	b.value = append([]byte(nil), value...)
	return b.rev
}

func TestClient_conditions(t *testing.T) {
	ctx := context.Background()
	c := newClient(&fakeBucket{}, "KEYS", "ring")

	if _, err := c.Stat(ctx); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("wrong error for missing key: %v", err)
	}

	v1, err := c.Upload(ctx, []byte("<repository/>"), objectstore.IfAbsent())
	if err != nil {
		t.Fatalf("create failed: %s", err)
	}
	if v1 != "3" {
		t.Errorf("wrong revision %q", v1)
	}
	if _, err := c.Upload(ctx, []byte("<repository/>"), objectstore.IfAbsent()); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Errorf("second create: wrong error %v", err)
	}

	data, h, err := objectstore.Fetch(ctx, c)
	if err != nil {
		t.Fatalf("fetch failed: %s", err)
	}
	if diff := cmp.Diff(&objectstore.Handle{Container: "KEYS", Name: "ring", Version: "3", Size: 13}, h); diff != "" {
		t.Errorf("wrong handle\n%s", diff)
	}
	if string(data) != "<repository/>" {
		t.Errorf("wrong data %q", data)
	}

	if _, err := c.Upload(ctx, []byte("<repository><key/></repository>"), objectstore.IfVersion(v1)); err != nil {
		t.Fatalf("update failed: %s", err)
	}
	if _, err := c.Upload(ctx, []byte("<repository/>"), objectstore.IfVersion(v1)); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Errorf("stale update: wrong error %v", err)
	}
	if _, err := c.Download(ctx, h); !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Errorf("download of a replaced revision: wrong error %v", err)
	}

	if _, err := c.Upload(ctx, []byte("<other/>"), objectstore.Condition{}); err != nil {
		t.Errorf("unconditional upload failed: %s", err)
	}
	if _, err := c.Upload(ctx, nil, objectstore.IfVersion("not-a-number")); err == nil {
		t.Error("expected an error for a malformed revision")
	}
}

func TestClient_keyringAppends(t *testing.T) {
	ctx := context.Background()
	repo, err := keyring.New(newClient(&fakeBucket{}, "KEYS", "ring"), nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, raw := range []string{`<key id="1"/>`, `<key id="2"/>`} {
		if err := repo.Append(ctx, xmldoc.Entry{Name: "key", XML: []byte(raw)}); err != nil {
			t.Fatalf("append %s: %s", raw, err)
		}
	}

	entries, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %s", err)
	}
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.String()
	}
	if diff := cmp.Diff([]string{`<key id="1"/>`, `<key id="2"/>`}, got); diff != "" {
		t.Errorf("wrong entries\n%s", diff)
	}
}

func TestMapError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want error
	}{
		"not found":      {jetstream.ErrKeyNotFound, objectstore.ErrNotFound},
		"deleted":        {jetstream.ErrKeyDeleted, objectstore.ErrNotFound},
		"exists":         {jetstream.ErrKeyExists, objectstore.ErrPreconditionFailed},
		"wrong last seq": {&jetstream.APIError{ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence}, objectstore.ErrPreconditionFailed},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := mapError(tc.err); !errors.Is(got, tc.want) {
				t.Errorf("mapError(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}
}
