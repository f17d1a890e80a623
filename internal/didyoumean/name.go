// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package didyoumean suggests a known name for a mistyped one.
package didyoumean

import (
	"github.com/agext/levenshtein"
)

// maxDistance is the largest edit distance still treated as a typo.
const maxDistance = 3

// NameSuggestion returns the name from suggestions closest to given, or the
// empty string if none is close enough to be a likely typo.
//
// Ties are resolved in favor of whichever name appears first in
// suggestions.
func NameSuggestion(given string, suggestions []string) string {
	best := ""
	bestDist := maxDistance
	for _, suggestion := range suggestions {
		dist := levenshtein.Distance(given, suggestion, nil)
		if dist < bestDist {
			best = suggestion
			bestDist = dist
		}
	}
	return best
}
