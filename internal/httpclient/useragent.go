// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

const (
	appendUaEnvVar = "KEYRING_APPEND_USER_AGENT"
	customUaEnvVar = "KEYRING_USER_AGENT"

	DefaultApplicationName = "keyring"
)

type userAgentRoundTripper struct {
	inner     http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header.Set("User-Agent", rt.userAgent)
	}
	log.Printf("[TRACE] HTTP client %s request to %s", req.Method, req.URL.Redacted())
	return rt.inner.RoundTrip(req)
}

// UserAgent returns the User-Agent string sent with every request to an
// object store. KEYRING_USER_AGENT replaces the default entirely and
// KEYRING_APPEND_USER_AGENT adds a suffix to whichever one is in effect.
func UserAgent(version string) string {
	ua := fmt.Sprintf("%s/%s", DefaultApplicationName, version)
	if custom := strings.TrimSpace(os.Getenv(customUaEnvVar)); custom != "" {
		ua = os.Getenv(customUaEnvVar)
	}

	if add := strings.TrimSpace(os.Getenv(appendUaEnvVar)); add != "" {
		ua += " " + add
		log.Printf("[DEBUG] Using modified User-Agent: %s", ua)
	}

	return ua
}
