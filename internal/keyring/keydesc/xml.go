// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keydesc

import (
	"encoding/xml"
	"time"
)

type keyXML struct {
	XMLName    xml.Name           `xml:"key"`
	ID         string             `xml:"id,attr"`
	Version    string             `xml:"version,attr"`
	Created    time.Time          `xml:"creationDate"`
	Activation time.Time          `xml:"activationDate"`
	Expiration time.Time          `xml:"expirationDate"`
	Descriptor outerDescriptorXML `xml:"descriptor"`
}

type outerDescriptorXML struct {
	DeserializerType string             `xml:"deserializerType,attr"`
	Descriptor       innerDescriptorXML `xml:"descriptor"`
}

type innerDescriptorXML struct {
	Encryption algorithmXML  `xml:"encryption"`
	Validation algorithmXML  `xml:"validation"`
	MasterKey  *masterKeyXML `xml:"masterKey"`
}

type algorithmXML struct {
	Algorithm string `xml:"algorithm,attr"`
}

type masterKeyXML struct {
	Comment   string              `xml:",comment"`
	Value     string              `xml:"value,omitempty"`
	Encrypted *encryptedSecretXML `xml:"encryptedSecret,omitempty"`
}

type encryptedSecretXML struct {
	DecryptorType string          `xml:"decryptorType,attr"`
	EncryptedKey  encryptedKeyXML `xml:"encryptedKey"`
}

type encryptedKeyXML struct {
	KeyName string `xml:"keyName,attr,omitempty"`
	Value   string `xml:"value"`
}

type revocationXML struct {
	XMLName xml.Name  `xml:"revocation"`
	Version string    `xml:"version,attr"`
	Date    time.Time `xml:"revocationDate"`
	Key     keyRefXML `xml:"key"`
	Reason  string    `xml:"reason,omitempty"`
}

type keyRefXML struct {
	ID string `xml:"id,attr"`
}
