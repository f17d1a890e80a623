// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package gcpkms

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fvoncina/dataprotection-gcs/internal/gcpauth"
	"github.com/fvoncina/dataprotection-gcs/internal/keyring/keydesc"
)

const testKeyName = "projects/p/locations/global/keyRings/r/cryptoKeys/k"

// xorMock "encrypts" by flipping every bit, which is enough to tell
// ciphertext from plaintext.
func xorMock() *mockKMC {
	flip := func(in []byte) []byte {
		out := make([]byte, len(in))
		for i, b := range in {
			out[i] = ^b
		}
		return out
	}
	return &mockKMC{
		encrypt: func(req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
			ct := flip(req.Plaintext)
			return &kmspb.EncryptResponse{
				Name:                    req.Name + "/cryptoKeyVersions/1",
				Ciphertext:              ct,
				CiphertextCrc32C:        wrapperspb.Int64(crc32c(ct)),
				VerifiedPlaintextCrc32C: req.PlaintextCrc32C.GetValue() == crc32c(req.Plaintext),
			}, nil
		},
		decrypt: func(req *kmspb.DecryptRequest) (*kmspb.DecryptResponse, error) {
			pt := flip(req.Ciphertext)
			return &kmspb.DecryptResponse{
				Plaintext:       pt,
				PlaintextCrc32C: wrapperspb.Int64(crc32c(pt)),
			}, nil
		},
	}
}

func testProtector(t *testing.T, m *mockKMC) *Protector {
	t.Helper()
	injectMock(m)
	p, err := New(context.Background(), Config{
		KeyName:     testKeyName,
		Credentials: gcpauth.Credentials{AccessToken: "token"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return p
}

func TestProtector_roundTrip(t *testing.T) {
	ctx := context.Background()
	m := xorMock()
	p := testProtector(t, m)

	plaintext := []byte("master key material")
	secret, err := p.Protect(ctx, plaintext)
	if err != nil {
		t.Fatalf("Protect: %s", err)
	}
	if bytes.Equal(secret.Ciphertext, plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}
	if secret.DecryptorType != DecryptorType || secret.KeyName != testKeyName+"/cryptoKeyVersions/1" {
		t.Errorf("wrong secret metadata: %+v", secret)
	}

	got, err := p.Unprotect(ctx, secret)
	if err != nil {
		t.Fatalf("Unprotect: %s", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("wrong plaintext %q", got)
	}

	if err := p.Close(); err != nil || !m.closed {
		t.Errorf("client not closed (err=%v)", err)
	}
}

func TestProtector_checksums(t *testing.T) {
	ctx := context.Background()

	m := xorMock()
	m.encrypt = func(req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
		return &kmspb.EncryptResponse{
			Ciphertext:              []byte("ct"),
			CiphertextCrc32C:        wrapperspb.Int64(1),
			VerifiedPlaintextCrc32C: true,
		}, nil
	}
	if _, err := testProtector(t, m).Protect(ctx, []byte("x")); err == nil || !strings.Contains(err.Error(), "ciphertext was corrupted") {
		t.Errorf("wrong error %v", err)
	}

	m = xorMock()
	m.encrypt = func(req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
		return &kmspb.EncryptResponse{Ciphertext: []byte("ct"), CiphertextCrc32C: wrapperspb.Int64(crc32c([]byte("ct")))}, nil
	}
	if _, err := testProtector(t, m).Protect(ctx, []byte("x")); err == nil || !strings.Contains(err.Error(), "plaintext was corrupted") {
		t.Errorf("wrong error %v", err)
	}
}

func TestProtector_errors(t *testing.T) {
	injectMock(xorMock())
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected an error without a key name")
	}

	m := xorMock()
	boom := errors.New("permission denied")
	m.encrypt = func(*kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) { return nil, boom }
	if _, err := testProtector(t, m).Protect(context.Background(), []byte("x")); !errors.Is(err, boom) {
		t.Errorf("wrong error %v", err)
	}

	if _, err := testProtector(t, xorMock()).Unprotect(context.Background(), &keydesc.ProtectedSecret{DecryptorType: "other"}); err == nil {
		t.Error("expected an error for a foreign decryptor type")
	}
}

func TestProtector_keyEntry(t *testing.T) {
	p := testProtector(t, xorMock())

	k, err := keydesc.NewKey(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatal(err)
	}
	e, err := k.Entry(context.Background(), p)
	if err != nil {
		t.Fatalf("Entry: %s", err)
	}
	info, err := keydesc.Describe(e)
	if err != nil {
		t.Fatalf("Describe: %s", err)
	}
	if !info.Encrypted {
		t.Errorf("key entry is not marked as encrypted: %s", e)
	}
	if !strings.Contains(string(e.XML), DecryptorType) {
		t.Errorf("decryptor type missing from %s", e)
	}
}
