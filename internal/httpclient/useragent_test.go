// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUserAgent(t *testing.T) {
	testCases := []struct {
		customUaValue string
		appendUaValue string
		expected      string
	}{
		{"", "", "keyring/0.0.0"},
		{"", " ", "keyring/0.0.0"},
		{"", " \n", "keyring/0.0.0"},
		{"", "test/1", "keyring/0.0.0 test/1"},
		{"", "test/1 (comment)", "keyring/0.0.0 test/1 (comment)"},
		{" ", "", "keyring/0.0.0"},
		{"custom", "", "custom"},
		{"custom", "extra", "custom extra"},
	}

	for i, tc := range testCases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			t.Setenv(customUaEnvVar, tc.customUaValue)
			t.Setenv(appendUaEnvVar, tc.appendUaValue)
			if got := UserAgent("0.0.0"); got != tc.expected {
				t.Fatalf("Expected User-Agent '%s' does not match '%s'", tc.expected, got)
			}
		})
	}
}

func TestNew_setsUserAgent(t *testing.T) {
	t.Setenv(customUaEnvVar, "keyring-test")
	t.Setenv(appendUaEnvVar, "")

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := New(context.Background()).Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %s", err)
	}
	resp.Body.Close()

	if got != "keyring-test" {
		t.Errorf("wrong User-Agent %q", got)
	}
}
