// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/fvoncina/dataprotection-gcs/version"
)

var Version = version.Version

var VersionPrerelease = version.Prerelease
