// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want hclog.Level
	}{
		{"", hclog.Off},
		{"OFF", hclog.Off},
		{"TRACE", hclog.Trace},
		{"DEBUG", hclog.Debug},
		{"WARN", hclog.Warn},
		{"JSON", hclog.Trace},
		{"bogus", hclog.Trace},
	}
	for _, test := range tests {
		if got := parseLogLevel(test.in); got != test.want {
			t.Errorf("parseLogLevel(%q) = %s; want %s", test.in, got, test.want)
		}
	}
}

func TestCurrentLogLevel(t *testing.T) {
	t.Setenv(envLog, "debug")
	if got := CurrentLogLevel(); got != "DEBUG" {
		t.Errorf("wrong level %q", got)
	}
	if !IsDebugOrHigher() {
		t.Errorf("IsDebugOrHigher should be true at DEBUG")
	}

	t.Setenv(envLog, "")
	if IsDebugOrHigher() {
		t.Errorf("IsDebugOrHigher should be false when logging is off")
	}
}

func TestRegisterSink(t *testing.T) {
	var buf bytes.Buffer
	RegisterSink(&buf)

	log.Printf("[WARN] keyring sink test")
	if !strings.Contains(buf.String(), "keyring sink test") {
		t.Errorf("sink did not receive the standard logger output: %q", buf.String())
	}
}
