// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/posener/complete"
)

func TestWithCommonFlags(t *testing.T) {
	commands := map[string]interface {
		AutocompleteFlags() complete.Flags
	}{
		"list":    &ListCommand{},
		"append":  &AppendCommand{},
		"new-key": &NewKeyCommand{},
		"revoke":  &RevokeCommand{},
	}
	want := map[string][]string{
		"list":    {"-active", "-config"},
		"append":  {"-config"},
		"new-key": {"-config", "-lifetime"},
		"revoke":  {"-config", "-reason"},
	}

	for name, c := range commands {
		t.Run(name, func(t *testing.T) {
			var got []string
			for flag := range c.AutocompleteFlags() {
				got = append(got, flag)
			}
			sort.Strings(got)
			if diff := cmp.Diff(want[name], got); diff != "" {
				t.Errorf("wrong flags\n%s", diff)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyring.hcl")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if !fileExists(path) {
		t.Errorf("%s should exist", path)
	}
	if fileExists(dir) {
		t.Errorf("a directory is not a configuration file")
	}
	if fileExists(filepath.Join(dir, "missing.hcl")) {
		t.Errorf("missing file reported as present")
	}
}
