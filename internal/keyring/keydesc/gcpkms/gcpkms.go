// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package gcpkms protects master keys with a Google Cloud KMS symmetric key
// before they are written to the key ring.
package gcpkms

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fvoncina/dataprotection-gcs/internal/gcpauth"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
)

// DecryptorType is recorded with every secret this package protects.
const DecryptorType = "GoogleCloudKmsXmlDecryptor"

type keyManagementClient interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
	Close() error
}

type keyManagementClientInit func(ctx context.Context, opts ...option.ClientOption) (keyManagementClient, error)

// Can be overridden for test mocking
var newKeyManagementClient keyManagementClientInit = func(ctx context.Context, opts ...option.ClientOption) (keyManagementClient, error) {
	return kms.NewKeyManagementClient(ctx, opts...)
}

// Config selects the KMS key. KeyName is the full resource name,
// projects/P/locations/L/keyRings/R/cryptoKeys/K.
type Config struct {
	KeyName     string
	Credentials gcpauth.Credentials
}

// Protector is a [keydesc.Protector] backed by Cloud KMS.
type Protector struct {
	svc     keyManagementClient
	keyName string
}

var _ keydesc.Protector = (*Protector)(nil)

// New connects to Cloud KMS.
func New(ctx context.Context, cfg Config) (*Protector, error) {
	if cfg.KeyName == "" {
		return nil, errors.New("gcpkms: key_name must be provided")
	}

	opts, err := cfg.Credentials.WithEnvDefaults().ClientOptions(ctx, "https://www.googleapis.com/auth/cloudkms")
	if err != nil {
		return nil, fmt.Errorf("gcpkms: %w", err)
	}
	svc, err := newKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcpkms: creating client: %w", err)
	}
	return &Protector{svc: svc, keyName: cfg.KeyName}, nil
}

// Close releases the KMS connection.
func (p *Protector) Close() error {
	return p.svc.Close()
}

// Protect encrypts plaintext, checking the request and response checksums.
func (p *Protector) Protect(ctx context.Context, plaintext []byte) (*keydesc.ProtectedSecret, error) {
	resp, err := p.svc.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:            p.keyName,
		Plaintext:       plaintext,
		PlaintextCrc32C: wrapperspb.Int64(crc32c(plaintext)),
	})
	if err != nil {
		return nil, fmt.Errorf("gcpkms: encrypting with %s: %w", p.keyName, err)
	}
	if !resp.GetVerifiedPlaintextCrc32C() {
		return nil, errors.New("gcpkms: plaintext was corrupted in transit")
	}
	if resp.GetCiphertextCrc32C().GetValue() != crc32c(resp.GetCiphertext()) {
		return nil, errors.New("gcpkms: ciphertext was corrupted in transit")
	}

	keyName := resp.GetName()
	if keyName == "" {
		keyName = p.keyName
	}
	return &keydesc.ProtectedSecret{
		DecryptorType: DecryptorType,
		KeyName:       keyName,
		Ciphertext:    resp.GetCiphertext(),
	}, nil
}

// Unprotect reverses [Protector.Protect].
func (p *Protector) Unprotect(ctx context.Context, secret *keydesc.ProtectedSecret) ([]byte, error) {
	if secret.DecryptorType != DecryptorType {
		return nil, fmt.Errorf("gcpkms: cannot decrypt a secret protected by %q", secret.DecryptorType)
	}
	resp, err := p.svc.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:             p.keyName,
		Ciphertext:       secret.Ciphertext,
		CiphertextCrc32C: wrapperspb.Int64(crc32c(secret.Ciphertext)),
	})
	if err != nil {
		return nil, fmt.Errorf("gcpkms: decrypting with %s: %w", p.keyName, err)
	}
	if resp.GetPlaintextCrc32C().GetValue() != crc32c(resp.GetPlaintext()) {
		return nil, errors.New("gcpkms: plaintext was corrupted in transit")
	}
	return resp.GetPlaintext(), nil
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func crc32c(data []byte) int64 {
	return int64(crc32.Checksum(data, castagnoli))
}
