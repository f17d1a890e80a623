// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// element is the result of scanning a payload for its single top-level
// element.
type element struct {
	qname    string
	local    string
	startTag []byte
	raw      []byte
	children []Entry
}

// openTag returns the element's start tag, turning a self-closing tag into
// an opening one so that children can follow it.
func (el *element) openTag() []byte {
	tag := slices.Clone(el.startTag)
	if bytes.HasSuffix(tag, []byte("/>")) {
		tag = append(bytes.TrimRight(tag[:len(tag)-2], " \t\r\n"), '>')
	}
	return tag
}

// scanElement walks src with a strict decoder and locates its one top-level
// element. If collectChildren is set, each direct child of that element is
// captured verbatim as an [Entry] and non-whitespace text directly inside it
// is rejected.
func scanElement(src []byte, collectChildren bool) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(src))
	dec.Strict = true
	// The payload has already been transcoded to UTF-8 by normalizeEncoding,
	// so whatever the declaration says we read the bytes as they are.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		el         *element
		depth      int
		rootStart  int64
		childStart int64
		childName  string
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case depth == 0 && el != nil:
				return nil, fmt.Errorf("unexpected second top-level element <%s> at offset %d", t.Name.Local, offset)
			case depth == 0:
				rootStart = offset
				tag := src[offset:dec.InputOffset()]
				el = &element{
					qname:    qualifiedName(tag),
					local:    t.Name.Local,
					startTag: tag,
				}
			case depth == 1:
				childStart = offset
				childName = t.Name.Local
			}
			depth++

		case xml.EndElement:
			depth--
			switch depth {
			case 0:
				el.raw = src[rootStart:dec.InputOffset()]
			case 1:
				if collectChildren {
					el.children = append(el.children, Entry{
						Name: childName,
						XML:  slices.Clone(src[childStart:dec.InputOffset()]),
					})
				}
			}

		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			if depth == 0 {
				return nil, fmt.Errorf("character data outside of the root element at offset %d", offset)
			}
			if depth == 1 && collectChildren {
				return nil, fmt.Errorf("character data directly inside <%s> at offset %d", el.local, offset)
			}

		case xml.Directive:
			return nil, fmt.Errorf("markup declarations are not allowed (offset %d)", offset)

		case xml.ProcInst, xml.Comment:
			// ignored
		}
	}

	if el == nil {
		return nil, errors.New("no root element")
	}
	return el, nil
}

// qualifiedName returns the element name as written in a start tag,
// including any namespace prefix.
func qualifiedName(tag []byte) string {
	name := bytes.TrimPrefix(tag, []byte("<"))
	if i := bytes.IndexAny(name, " \t\r\n/>"); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

var declaredEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*?\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// normalizeEncoding returns src as UTF-8. Payloads written by other tools may
// carry a byte order mark or declare a legacy encoding in their XML
// declaration.
func normalizeEncoding(src []byte) ([]byte, error) {
	if hasBOM(src) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), src)
		if err != nil {
			return nil, fmt.Errorf("decoding byte order mark: %w", err)
		}
		return out, nil
	}

	m := declaredEncoding.FindSubmatch(src)
	if m == nil {
		return src, nil
	}
	label := strings.ToLower(string(m[1]))
	switch label {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return src, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	out, err := enc.NewDecoder().Bytes(src)
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", label, err)
	}
	return out, nil
}

func hasBOM(src []byte) bool {
	return bytes.HasPrefix(src, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(src, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(src, []byte{0xFF, 0xFE})
}
