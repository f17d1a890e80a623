// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package keyring implements an append-only XML key ring kept in a single
// object of a remote object store.
//
// Any number of processes may append to the same key ring concurrently
// without a lock service. Each append reads the latest revision, adds its
// entry, and uploads the result on the condition that nobody else wrote in
// between. Lost races are retried a bounded number of times, so every append
// that returns nil is durably reflected in the object.
//
// Entries are not deduplicated and no particular order is guaranteed between
// appends from different processes.
package keyring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/xmldoc"
	"github.com/fvoncina/dataprotection-gcs/internal/objectstore"
	"github.com/fvoncina/dataprotection-gcs/internal/tracing"
	"github.com/fvoncina/dataprotection-gcs/internal/tracing/traceattrs"
)

// Options customizes a [Repository]. The zero value is the default
// configuration.
type Options struct {
	// RootElement names the root element written when the key ring is
	// created or the object holds no document yet. Existing documents keep
	// whatever root they already have.
	RootElement string

	// MaxRetries overrides [MaxRetries] when positive.
	MaxRetries int

	// BaseBackoff overrides [BaseBackoff] when positive.
	BaseBackoff time.Duration

	// Registerer, if set, receives the repository's Prometheus metrics.
	Registerer prometheus.Registerer
}

// Repository is the key ring stored in one remote object. It is safe for
// concurrent use by multiple goroutines.
type Repository struct {
	client      objectstore.Client
	root        string
	maxRetries  int
	baseBackoff time.Duration
	jitter      func(n int64) int64
	metrics     *metrics

	cache snapshotCache
}

// New returns a Repository backed by client. opts may be nil.
func New(client objectstore.Client, opts *Options) (*Repository, error) {
	if client == nil {
		return nil, errors.New("keyring: an object store client is required")
	}
	if opts == nil {
		opts = &Options{}
	}

	r := &Repository{
		client:      client,
		root:        opts.RootElement,
		maxRetries:  MaxRetries,
		baseBackoff: BaseBackoff,
		jitter:      jitter,
	}
	if r.root == "" {
		r.root = xmldoc.DefaultRoot
	}
	if opts.MaxRetries > 0 {
		r.maxRetries = opts.MaxRetries
	}
	if opts.BaseBackoff > 0 {
		r.baseBackoff = opts.BaseBackoff
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("keyring: registering metrics: %w", err)
	}
	r.metrics = m

	return r, nil
}

// GetAll fetches the latest revision of the key ring and returns its entries
// in document order. If the object does not exist yet the result is empty.
//
// The returned slice is a copy that later appends do not affect. Store errors
// are returned as they are; this method does not retry.
func (r *Repository) GetAll(ctx context.Context) ([]xmldoc.Entry, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Read key ring")
	defer span.End()

	snap, err := r.refresh(ctx)
	if err != nil {
		err = fmt.Errorf("reading key ring: %w", err)
		tracing.SetSpanError(span, err)
		return nil, err
	}
	if snap == nil {
		return []xmldoc.Entry{}, nil
	}
	span.SetAttributes(traceattrs.ObjectVersion(snap.Version))

	doc, err := xmldoc.Decode(snap.Payload)
	if err != nil {
		err = fmt.Errorf("reading key ring revision %s: %w", snap.Version, err)
		tracing.SetSpanError(span, err)
		return nil, err
	}
	log.Printf("[TRACE] keyring: read %d entries under <%s> at revision %s", doc.Len(), doc.Root(), snap.Version)
	return doc.Entries(), nil
}

// Append adds e as the last entry of the key ring.
//
// The first two attempts run back to back. Later attempts first pause for a
// randomized [BaseBackoff] interval. Every attempt after the first starts by
// fetching the latest revision, so that whatever a competing writer committed
// is merged rather than overwritten. Uploads are conditional on the revision
// that was merged into, so a concurrent write shows up as a failed attempt
// instead of a silently lost entry.
//
// If every attempt fails the result is an [*AppendFailedError] wrapping the
// last attempt's error. A key ring that cannot be parsed fails immediately
// with an error matching [xmldoc.ErrMalformedDocument].
func (r *Repository) Append(ctx context.Context, e xmldoc.Entry) error {
	ctx, span := tracing.Tracer().Start(ctx, "Append to key ring",
		tracing.SpanAttributes(traceattrs.EntryName(e.Name)),
	)
	defer span.End()

	entry, err := xmldoc.ParseEntry(e.XML)
	if err != nil {
		r.metrics.append(outcomeRejected)
		err = fmt.Errorf("invalid key ring entry: %w", err)
		tracing.SetSpanError(span, err)
		return err
	}

	var lastErr error
	for attempt := range r.maxRetries {
		span.AddEvent("attempt", tracing.EventAttributes(traceattrs.Attempt(attempt)))

		if attempt >= 2 {
			if err := sleep(ctx, backoffFrom(r.baseBackoff, r.jitter)); err != nil {
				return r.cancelled(span, attempt, err)
			}
		}

		if attempt >= 1 {
			if _, err := r.refresh(ctx); err != nil {
				// A failed fetch tells us nothing about whether the object
				// exists, so it must not turn into an empty document.
				lastErr = fmt.Errorf("refreshing key ring: %w", err)
				log.Printf("[WARN] keyring: append attempt %d/%d: %s", attempt+1, r.maxRetries, lastErr)
				if ctx.Err() != nil {
					return r.cancelled(span, attempt+1, ctx.Err())
				}
				continue
			}
		}

		r.metrics.attempt()
		err := r.tryAppend(ctx, entry)
		if err == nil {
			r.metrics.append(outcomeSuccess)
			log.Printf("[DEBUG] keyring: appended <%s> on attempt %d", entry.Name, attempt+1)
			return nil
		}
		if errors.Is(err, xmldoc.ErrMalformedDocument) {
			r.metrics.append(outcomeRejected)
			tracing.SetSpanError(span, err)
			return err
		}
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			r.metrics.conflict()
		}

		lastErr = err
		log.Printf("[WARN] keyring: append attempt %d/%d: %s", attempt+1, r.maxRetries, err)
		if ctx.Err() != nil {
			return r.cancelled(span, attempt+1, ctx.Err())
		}
	}

	r.metrics.append(outcomeExhausted)
	err = &AppendFailedError{Attempts: r.maxRetries, Err: lastErr}
	tracing.SetSpanError(span, err)
	return err
}

// tryAppend merges entry into the cached revision and uploads the result
// conditioned on that revision still being current.
func (r *Repository) tryAppend(ctx context.Context, entry xmldoc.Entry) error {
	base := r.cache.load()

	var doc *xmldoc.Document
	cond := objectstore.IfAbsent()
	switch {
	case base == nil:
		doc = xmldoc.NewEmpty(r.root)
	case len(bytes.TrimSpace(base.Payload)) == 0:
		// An existing but blank object gets the configured root.
		doc = xmldoc.NewEmpty(r.root)
		cond = objectstore.IfVersion(base.Version)
	default:
		var err error
		doc, err = xmldoc.Decode(base.Payload)
		if err != nil {
			return fmt.Errorf("key ring revision %s: %w", base.Version, err)
		}
		cond = objectstore.IfVersion(base.Version)
	}
	doc.Append(entry)
	payload := xmldoc.Encode(doc)

	version, err := r.client.Upload(ctx, payload, cond)
	if err != nil {
		return fmt.Errorf("uploading key ring (%s): %w", cond, err)
	}
	r.cache.store(&Snapshot{Payload: payload, Version: version})
	return nil
}

// refresh fetches the latest revision into the cache and returns it. A nil
// snapshot with a nil error means the object does not exist. On any other
// error the cache is left as it was.
func (r *Repository) refresh(ctx context.Context) (*Snapshot, error) {
	data, h, err := objectstore.Fetch(ctx, r.client)
	if errors.Is(err, objectstore.ErrNotFound) {
		r.metrics.refresh(refreshAbsent)
		r.cache.store(nil)
		return nil, nil
	}
	if err != nil {
		r.metrics.refresh(refreshError)
		return nil, err
	}

	r.metrics.refresh(refreshFound)
	snap := &Snapshot{Payload: data, Version: h.Version}
	r.cache.store(snap)
	return snap, nil
}

func (r *Repository) cancelled(span tracing.Span, attempts int, err error) error {
	r.metrics.append(outcomeCancelled)
	err = fmt.Errorf("append cancelled after %d attempts: %w", attempts, err)
	tracing.SetSpanError(span, err)
	return err
}
