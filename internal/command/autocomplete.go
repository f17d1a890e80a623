// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"

	"github.com/posener/complete"
)

// This file contains some re-usable predictors for auto-complete. The
// command-specific autocomplete configurations live within each command's
// own source file, as AutocompleteArgs and AutocompleteFlags methods on each
// Command implementation.

var completePredictConfigFile = complete.PredictFiles("*.hcl")

var completeCommonFlags = complete.Flags{
	"-config": completePredictConfigFile,
}

func withCommonFlags(extra complete.Flags) complete.Flags {
	ret := complete.Flags{}
	for k, v := range completeCommonFlags {
		ret[k] = v
	}
	for k, v := range extra {
		ret[k] = v
	}
	return ret
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
