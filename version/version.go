// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package version holds the release version of the keyring tool.
package version

import (
	"fmt"

	version "github.com/hashicorp/go-version"
)

// Version is the main version number of the release. It may be overridden
// at link time with -ldflags.
var Version = "0.3.0"

// Prerelease is a pre-release marker for the version. If this is "" then
// the release is a final release. Otherwise it is a pre-release such as
// "dev" (in development), "beta", "rc1", etc.
var Prerelease = "dev"

// SemVer is an instance of version.Version. This has the secondary benefit
// of verifying during init that the version values are valid.
var SemVer *version.Version

func init() {
	SemVer = version.Must(version.NewVersion(Version))
}

// String returns the complete version string, including prerelease.
func String() string {
	if Prerelease != "" {
		return fmt.Sprintf("%s-%s", Version, Prerelease)
	}
	return Version
}
