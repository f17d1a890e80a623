// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package xmldoc is the codec for the key ring's on-the-wire form: a single
// root element with zero or more opaque child elements.
//
// Child elements are never interpreted. Each one is carried as the exact byte
// range it occupied in the payload it was decoded from, so a document written
// by another process survives a decode/append/encode cycle unchanged apart
// from the appended entry and whitespace between entries.
package xmldoc

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
)

// DefaultRoot is the root element name used by [NewEmpty] when none is given.
const DefaultRoot = "repository"

// ErrMalformedDocument is matched by every error returned from [Decode] and
// [ParseEntry].
var ErrMalformedDocument = errors.New("malformed XML document")

// Entry is one top-level child of the document root.
type Entry struct {
	// Name is the local name of the element, for logging and display.
	Name string

	// XML is the element's complete serialized form, from its start tag
	// through its end tag.
	XML []byte
}

func (e Entry) String() string {
	return string(e.XML)
}

// Document is a root element and its ordered entries.
//
// A Document is not safe for concurrent mutation; whoever decoded or created
// it owns it.
type Document struct {
	root    string
	rootTag []byte
	entries []Entry
}

// NewEmpty returns a document consisting only of a root element with the given
// name, or [DefaultRoot] if root is empty.
func NewEmpty(root string) *Document {
	if root == "" {
		root = DefaultRoot
	}
	return &Document{
		root:    root,
		rootTag: []byte("<" + root + ">"),
	}
}

// Root returns the qualified name of the root element as it was written.
func (d *Document) Root() string {
	return d.root
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.entries)
}

// Entries returns a copy of the document's entries in order. Modifying the
// returned slice does not affect the document.
func (d *Document) Entries() []Entry {
	ret := make([]Entry, len(d.entries))
	for i, e := range d.entries {
		ret[i] = Entry{Name: e.Name, XML: bytes.Clone(e.XML)}
	}
	return ret
}

// Append adds e as the last child of the root.
func (d *Document) Append(e Entry) {
	d.entries = append(d.entries, Entry{Name: e.Name, XML: bytes.Clone(e.XML)})
}

// Encode serializes d. No XML declaration and no formatting whitespace are
// written, so encoding a decoded document again yields identical bytes.
func Encode(d *Document) []byte {
	size := len(d.rootTag) + len(d.root) + 3
	for _, e := range d.entries {
		size += len(e.XML)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.Write(d.rootTag)
	for _, e := range d.entries {
		buf.Write(e.XML)
	}
	buf.WriteString("</")
	buf.WriteString(d.root)
	buf.WriteString(">")
	return buf.Bytes()
}

// Decode parses a serialized document.
//
// An empty or whitespace-only payload decodes to an empty document with the
// default root. DOCTYPE and other markup declarations are rejected, so no
// entity or external resource is ever resolved. Comments and processing
// instructions are skipped.
func Decode(data []byte) (*Document, error) {
	src, err := normalizeEncoding(data)
	if err != nil {
		return nil, malformed(err)
	}
	if len(bytes.TrimSpace(src)) == 0 {
		return NewEmpty(""), nil
	}

	el, err := scanElement(src, true)
	if err != nil {
		return nil, malformed(err)
	}
	return &Document{
		root:    el.qname,
		rootTag: el.openTag(),
		entries: el.children,
	}, nil
}

// ParseEntry checks that data holds exactly one well-formed element and
// returns it as an [Entry]. Leading and trailing whitespace, comments, and
// processing instructions are dropped.
func ParseEntry(data []byte) (Entry, error) {
	src, err := normalizeEncoding(data)
	if err != nil {
		return Entry{}, malformed(err)
	}
	el, err := scanElement(src, false)
	if err != nil {
		return Entry{}, malformed(err)
	}
	return Entry{Name: el.local, XML: slices.Clone(el.raw)}, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
}
