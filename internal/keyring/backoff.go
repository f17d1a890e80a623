// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keyring

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	// MaxRetries is the number of upload attempts Append makes before
	// giving up.
	MaxRetries = 5

	// BaseBackoff is the upper bound of the pause before the third and later
	// attempts. Each pause is drawn uniformly from [0.8, 1.0) × BaseBackoff.
	BaseBackoff = 200 * time.Millisecond
)

// backoffFrom returns a pause in [0.8, 1.0) × base, using intn to pick the
// jitter. intn must return a value in [0, n).
func backoffFrom(base time.Duration, intn func(n int64) int64) time.Duration {
	lo := base * 8 / 10
	spread := base - lo
	if spread <= 0 {
		return lo
	}
	return lo + time.Duration(intn(int64(spread)))
}

// jitter is the default source for backoffFrom. It does not need to be
// unpredictable.
func jitter(n int64) int64 {
	return rand.Int64N(n)
}

// sleep pauses for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
