// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keydesc

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fvoncina/dataprotection-gcs/internal/keyring/xmldoc"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewKey(t *testing.T) {
	k, err := NewKey(testNow, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(k.ID) != 36 {
		t.Errorf("key id %q is not a UUID", k.ID)
	}
	if len(k.masterKey) != MasterKeySize {
		t.Errorf("master key is %d bytes; want %d", len(k.masterKey), MasterKeySize)
	}
	if !k.Expiration.Equal(testNow.Add(24 * time.Hour)) {
		t.Errorf("wrong expiration %s", k.Expiration)
	}

	other, err := NewKey(testNow, 0)
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == k.ID {
		t.Error("two keys share an id")
	}
	if !other.Expiration.Equal(testNow.Add(DefaultLifetime)) {
		t.Errorf("wrong default expiration %s", other.Expiration)
	}

	if _, err := NewKey(testNow, -time.Hour); err == nil {
		t.Error("expected an error for a negative lifetime")
	}
}

func TestKey_entry(t *testing.T) {
	k, err := NewKey(testNow, 48*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	e, err := k.Entry(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if e.Name != "key" {
		t.Errorf("wrong entry name %q", e.Name)
	}

	for _, want := range []string{
		`<key id="` + k.ID + `" version="1">`,
		`<creationDate>2024-03-01T12:00:00Z</creationDate>`,
		`<expirationDate>2024-03-03T12:00:00Z</expirationDate>`,
		`<encryption algorithm="AES_256_CBC"></encryption>`,
		`<validation algorithm="HMACSHA256"></validation>`,
		`<!-- Warning: the key below is in an unencrypted form. -->`,
		`<value>` + base64.StdEncoding.EncodeToString(k.masterKey) + `</value>`,
	} {
		if !strings.Contains(string(e.XML), want) {
			t.Errorf("entry is missing %s\n%s", want, e.XML)
		}
	}

	info, err := Describe(e)
	if err != nil {
		t.Fatalf("Describe: %s", err)
	}
	want := Info{
		Kind:       KindKey,
		Name:       "key",
		ID:         k.ID,
		Created:    testNow,
		Activation: testNow,
		Expiration: testNow.Add(48 * time.Hour),
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("wrong info\n%s", diff)
	}
	if !info.ActiveAt(testNow.Add(time.Hour)) || info.ActiveAt(testNow.Add(49*time.Hour)) {
		t.Error("wrong validity window")
	}
}

type failingProtector struct{ err error }

func (p failingProtector) Protect(context.Context, []byte) (*ProtectedSecret, error) {
	return nil, p.err
}

func TestKey_entryProtectorFails(t *testing.T) {
	k, err := NewKey(testNow, 0)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("kms unavailable")
	if _, err := k.Entry(context.Background(), failingProtector{boom}); !errors.Is(err, boom) {
		t.Errorf("wrong error %v", err)
	}
}

func TestNewRevocation(t *testing.T) {
	e, err := NewRevocation(testNow, "*", "rotated")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := `<revocation version="1"><revocationDate>2024-03-01T12:00:00Z</revocationDate><key id="*"></key><reason>rotated</reason></revocation>`
	if diff := cmp.Diff(want, string(e.XML)); diff != "" {
		t.Errorf("wrong entry\n%s", diff)
	}

	info, err := Describe(e)
	if err != nil {
		t.Fatalf("Describe: %s", err)
	}
	if diff := cmp.Diff(Info{Kind: KindRevocation, Name: "revocation", ID: "*", Revoked: testNow, Reason: "rotated"}, info); diff != "" {
		t.Errorf("wrong info\n%s", diff)
	}

	for _, bad := range []string{"", "not-a-uuid"} {
		if _, err := NewRevocation(testNow, bad, ""); err == nil {
			t.Errorf("NewRevocation(%q): expected an error", bad)
		}
	}
}

func TestDescribe_foreignEntries(t *testing.T) {
	info, err := Describe(xmldoc.Entry{Name: "note", XML: []byte(`<note>hello</note>`)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if info.Kind != KindOther || info.Name != "note" {
		t.Errorf("wrong info %+v", info)
	}

	// Written by another implementation, with fractional seconds and an
	// offset.
	e := xmldoc.Entry{Name: "key", XML: []byte(`<key id="a7c2e0a4-8f4e-4d0e-9f1b-2a7d1b0f6c11" version="1">
  <creationDate>2024-01-02T03:04:05.1234567+00:00</creationDate>
  <activationDate>2024-01-02T03:04:05.1234567+00:00</activationDate>
  <expirationDate>2024-04-01T03:04:05.1234567+00:00</expirationDate>
  <descriptor deserializerType="X"><descriptor><masterKey><encryptedSecret decryptorType="Y"><encryptedKey><value>AA==</value></encryptedKey></encryptedSecret></masterKey></descriptor></descriptor>
</key>`)}
	info, err = Describe(e)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if info.ID != "a7c2e0a4-8f4e-4d0e-9f1b-2a7d1b0f6c11" || !info.Encrypted || info.Created.Year() != 2024 {
		t.Errorf("wrong info %+v", info)
	}

	if _, err := Describe(xmldoc.Entry{Name: "key", XML: []byte(`<key><creationDate>yesterday</creationDate></key>`)}); err == nil {
		t.Error("expected an error for an unparseable date")
	}
}
