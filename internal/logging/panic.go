// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"fmt"
	"os"
	"runtime/debug"
)

// This output is shown if a panic happens.
const panicOutput = `
!!!!!!!!!!!!!!!!!!!!!!!!!!! KEYRING CRASH !!!!!!!!!!!!!!!!!!!!!!!!!!!!

The keyring tool crashed! This is always indicative of a bug.

When reporting bugs, please include your keyring version, the stack trace
shown below, and any additional information which may help replicate the
issue. Never include key material in a report.

!!!!!!!!!!!!!!!!!!!!!!!!!!! KEYRING CRASH !!!!!!!!!!!!!!!!!!!!!!!!!!!!

`

// PanicHandler is called to recover from an internal panic, and print out
// panic information as nicely as possible, then exit with a failure status.
//
// This must be called as a deferred function, directly from main. Panics in
// other goroutines are not caught.
func PanicHandler() {
	recovered := recover()
	if recovered == nil {
		return
	}

	fmt.Fprint(os.Stderr, panicOutput)
	fmt.Fprint(os.Stderr, recovered, "\n")

	// When called from a deferred function, debug.PrintStack will include the
	// full stack from the point of the pending panic.
	debug.PrintStack()

	// 11 is the same code as SIGSEGV, which is roughly the same type of
	// condition that causes most panics.
	os.Exit(11)
}
