// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package traceattrs contains the attribute names used on key ring spans, so
// that they stay consistent across packages.
//
// This package must not import any other package from this module.
package traceattrs

import (
	"go.opentelemetry.io/otel/attribute"
)

// String wraps [attribute.String].
func String(name string, val string) attribute.KeyValue {
	return attribute.String(name, val)
}

// Int wraps [attribute.Int].
func Int(name string, val int) attribute.KeyValue {
	return attribute.Int(name, val)
}

// Bool wraps [attribute.Bool].
func Bool(name string, val bool) attribute.KeyValue {
	return attribute.Bool(name, val)
}

// ObjectContainer identifies the bucket or container holding the key ring.
func ObjectContainer(name string) attribute.KeyValue {
	return attribute.String("keyring.object.container", name)
}

// ObjectName identifies the key ring object inside its container.
func ObjectName(name string) attribute.KeyValue {
	return attribute.String("keyring.object.name", name)
}

// ObjectVersion is the store's version token for the revision involved.
func ObjectVersion(v string) attribute.KeyValue {
	return attribute.String("keyring.object.version", v)
}

// EntryName is the element name of the entry being appended.
func EntryName(name string) attribute.KeyValue {
	return attribute.String("keyring.entry.name", name)
}

// Attempt is the zero-based index of an append attempt.
func Attempt(i int) attribute.KeyValue {
	return attribute.Int("keyring.append.attempt", i)
}
