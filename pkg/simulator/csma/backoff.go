// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package csma

import (
	"math/rand"
	"time"
)

// Backoff implements truncated binary exponential backoff for senders finding the medium busy
type Backoff struct {
	SlotTime   time.Duration
	MinSlots   int
	MaxSlots   int
	Ceiling    int
	MaxRetries int

	retries int
}

// DefaultBackoff returns the backoff parameters used by simulated devices unless overridden
func DefaultBackoff() Backoff {
	return Backoff{
		SlotTime:   time.Microsecond,
		MinSlots:   1,
		MaxSlots:   1000,
		Ceiling:    10,
		MaxRetries: 1000,
	}
}

// Exhausted returns true once the maximum number of retries has been attempted
func (b *Backoff) Exhausted() bool {
	return b.retries >= b.MaxRetries
}

// Next records another retry and returns the time to wait before it
func (b *Backoff) Next(rng *rand.Rand) time.Duration {
	b.retries++
	ceiling := b.retries
	if ceiling > b.Ceiling {
		ceiling = b.Ceiling
	}
	maxSlots := (1 << uint(ceiling)) - 1
	if maxSlots > b.MaxSlots {
		maxSlots = b.MaxSlots
	}
	minSlots := b.MinSlots
	if maxSlots < minSlots {
		maxSlots = minSlots
	}
	slots := minSlots + rng.Intn(maxSlots-minSlots+1)
	return time.Duration(slots) * b.SlotTime
}

// Retries returns the number of retries since the last reset
func (b *Backoff) Retries() int {
	return b.retries
}

// Reset clears the retry count after a successful transmission start or a drop
func (b *Backoff) Reset() {
	b.retries = 0
}
