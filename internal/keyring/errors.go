// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keyring

import (
	"errors"
	"fmt"
)

// ErrAppendFailed is matched by the error [Repository.Append] returns when
// every attempt failed.
var ErrAppendFailed = errors.New("failed to append entry to key ring")

// AppendFailedError is returned by [Repository.Append] once all attempts are
// exhausted. Err is the error from the last attempt, not the first.
type AppendFailedError struct {
	Attempts int
	Err      error
}

func (e *AppendFailedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %s", ErrAppendFailed, e.Attempts, e.Err)
}

func (e *AppendFailedError) Unwrap() error {
	return e.Err
}

func (e *AppendFailedError) Is(target error) bool {
	return target == ErrAppendFailed
}
