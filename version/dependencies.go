// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package version

import "runtime/debug"

// See the docs for InterestingDependencies to understand what "interesting" is
// intended to mean here. We should keep this set relatively small to avoid
// bloating the logs too much.
var interestingDependencies = map[string]struct{}{
	"cloud.google.com/go/storage":                          {},
	"cloud.google.com/go/kms":                              {},
	"github.com/aws/aws-sdk-go-v2/service/s3":              {},
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob": {},
	"github.com/nats-io/nats.go":                           {},
	"github.com/hashicorp/hcl/v2":                          {},
}

// InterestingDependencies returns the compiled-in module version info for
// the object store SDKs and the few other dependencies whose behavior most
// affects how the key ring is read and written.
//
// This is here only to add a small number of annotations to a debug log so
// that bug reports can be cross-referenced with dependency changelogs.
func InterestingDependencies() []*debug.Module {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		// Weird to not be built in module mode, but not a big deal.
		return nil
	}

	ret := make([]*debug.Module, 0, len(interestingDependencies))

	for _, mod := range info.Deps {
		if _, ok := interestingDependencies[mod.Path]; !ok {
			continue
		}
		if mod.Replace != nil {
			mod = mod.Replace
		}
		ret = append(ret, mod)
	}

	return ret
}
