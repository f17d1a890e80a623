// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keydesc

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/xmldoc"
)

// Kind classifies a key ring entry.
type Kind string

const (
	KindKey        Kind = "key"
	KindRevocation Kind = "revocation"
	KindOther      Kind = "other"
)

// Info is what can be learned about an entry without decrypting anything.
type Info struct {
	Kind Kind
	Name string

	// ID is the key id for keys, and the revoked key id (or "*") for
	// revocations.
	ID string

	Created    time.Time
	Activation time.Time
	Expiration time.Time
	Revoked    time.Time
	Reason     string

	// Encrypted reports whether a key's master key is protected.
	Encrypted bool
}

// ActiveAt reports whether a key is within its validity window at t.
func (i Info) ActiveAt(t time.Time) bool {
	return i.Kind == KindKey && !t.Before(i.Activation) && t.Before(i.Expiration)
}

type describeXML struct {
	XMLName    xml.Name
	ID         string    `xml:"id,attr"`
	Created    time.Time `xml:"creationDate"`
	Activation time.Time `xml:"activationDate"`
	Expiration time.Time `xml:"expirationDate"`
	MasterKey  struct {
		Encrypted *struct{} `xml:"encryptedSecret"`
	} `xml:"descriptor>descriptor>masterKey"`

	RevocationDate time.Time `xml:"revocationDate"`
	RevokedKey     struct {
		ID string `xml:"id,attr"`
	} `xml:"key"`
	Reason string `xml:"reason"`
}

// Describe extracts the metadata of a key ring entry. Entries other than
// keys and revocations are reported as [KindOther] without error.
func Describe(e xmldoc.Entry) (Info, error) {
	info := Info{Kind: KindOther, Name: e.Name}
	switch e.Name {
	case "key", "revocation":
	default:
		return info, nil
	}

	var d describeXML
	if err := xml.Unmarshal(e.XML, &d); err != nil {
		return info, fmt.Errorf("reading <%s> entry: %w", e.Name, err)
	}

	if e.Name == "key" {
		info.Kind = KindKey
		info.ID = d.ID
		info.Created = d.Created
		info.Activation = d.Activation
		info.Expiration = d.Expiration
		info.Encrypted = d.MasterKey.Encrypted != nil
		return info, nil
	}

	info.Kind = KindRevocation
	info.ID = d.RevokedKey.ID
	info.Revoked = d.RevocationDate
	info.Reason = d.Reason
	return info, nil
}
