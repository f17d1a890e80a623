// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package keydesc builds and inspects the entries that a data protection key
// manager stores in the key ring: key descriptors and revocations.
package keydesc

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/xmldoc"
)

const (
	// MasterKeySize is the size in bytes of a generated master key.
	MasterKeySize = 64

	DefaultEncryptionAlgorithm = "AES_256_CBC"
	DefaultValidationAlgorithm = "HMACSHA256"

	// DefaultLifetime is how long a new key stays valid.
	DefaultLifetime = 90 * 24 * time.Hour

	descriptorDeserializer = "AuthenticatedEncryptorDescriptorDeserializer"
	formatVersion          = "1"
)

// Protector encrypts a master key before it is written to the key ring.
type Protector interface {
	Protect(ctx context.Context, plaintext []byte) (*ProtectedSecret, error)
}

// ProtectedSecret is a master key encrypted by a [Protector].
type ProtectedSecret struct {
	// DecryptorType names what can reverse the encryption.
	DecryptorType string
	// KeyName identifies the key encryption key.
	KeyName    string
	Ciphertext []byte
}

// Key is a newly generated data protection key.
type Key struct {
	ID         string
	Created    time.Time
	Activation time.Time
	Expiration time.Time

	EncryptionAlgorithm string
	ValidationAlgorithm string

	masterKey []byte
}

// NewKey generates a key that becomes active at now and expires after
// lifetime. A lifetime of zero means [DefaultLifetime].
func NewKey(now time.Time, lifetime time.Duration) (*Key, error) {
	if lifetime < 0 {
		return nil, fmt.Errorf("key lifetime must not be negative, got %s", lifetime)
	}
	if lifetime == 0 {
		lifetime = DefaultLifetime
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("generating key id: %w", err)
	}
	master, err := uuid.GenerateRandomBytes(MasterKeySize)
	if err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}

	now = now.UTC()
	return &Key{
		ID:                  id,
		Created:             now,
		Activation:          now,
		Expiration:          now.Add(lifetime),
		EncryptionAlgorithm: DefaultEncryptionAlgorithm,
		ValidationAlgorithm: DefaultValidationAlgorithm,
		masterKey:           master,
	}, nil
}

// Entry serializes k as a key ring entry. If p is nil the master key is
// stored unencrypted.
func (k *Key) Entry(ctx context.Context, p Protector) (xmldoc.Entry, error) {
	mk := &masterKeyXML{}
	if p == nil {
		mk.Comment = " Warning: the key below is in an unencrypted form. "
		mk.Value = base64.StdEncoding.EncodeToString(k.masterKey)
	} else {
		secret, err := p.Protect(ctx, k.masterKey)
		if err != nil {
			return xmldoc.Entry{}, fmt.Errorf("protecting master key of %s: %w", k.ID, err)
		}
		mk.Encrypted = &encryptedSecretXML{
			DecryptorType: secret.DecryptorType,
			EncryptedKey: encryptedKeyXML{
				KeyName: secret.KeyName,
				Value:   base64.StdEncoding.EncodeToString(secret.Ciphertext),
			},
		}
	}

	doc := keyXML{
		ID:         k.ID,
		Version:    formatVersion,
		Created:    k.Created,
		Activation: k.Activation,
		Expiration: k.Expiration,
		Descriptor: outerDescriptorXML{
			DeserializerType: descriptorDeserializer,
			Descriptor: innerDescriptorXML{
				Encryption: algorithmXML{Algorithm: k.EncryptionAlgorithm},
				Validation: algorithmXML{Algorithm: k.ValidationAlgorithm},
				MasterKey:  mk,
			},
		},
	}
	return marshalEntry(doc)
}

// NewRevocation returns an entry revoking the key with the given id. An id of
// "*" revokes every key created before now.
func NewRevocation(now time.Time, keyID, reason string) (xmldoc.Entry, error) {
	if keyID == "" {
		return xmldoc.Entry{}, errors.New("a key id is required")
	}
	if keyID != "*" {
		if _, err := uuid.ParseUUID(keyID); err != nil {
			return xmldoc.Entry{}, fmt.Errorf("invalid key id %q: %w", keyID, err)
		}
	}
	return marshalEntry(revocationXML{
		Version: formatVersion,
		Date:    now.UTC(),
		Key:     keyRefXML{ID: keyID},
		Reason:  reason,
	})
}

func marshalEntry(v any) (xmldoc.Entry, error) {
	raw, err := xml.Marshal(v)
	if err != nil {
		return xmldoc.Entry{}, err
	}
	return xmldoc.ParseEntry(raw)
}
