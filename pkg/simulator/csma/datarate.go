// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package csma

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
)

// DataRate is a transmission rate in bits per second
type DataRate uint64

// Common data rates
const (
	BitPerSecond     DataRate = 1
	KilobitPerSecond          = 1000 * BitPerSecond
	MegabitPerSecond          = 1000 * KilobitPerSecond
	GigabitPerSecond          = 1000 * MegabitPerSecond
)

var dataRatePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([a-zA-Z]*)(bps|b/s|Bps|B/s)$`)

var dataRatePrefixes = map[string]float64{
	"":   1,
	"k":  1e3,
	"K":  1e3,
	"M":  1e6,
	"G":  1e9,
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
}

// ParseDataRate parses a rate string such as "100Mbps", "10 Mb/s", "1.5Gbps" or "125KB/s"
func ParseDataRate(s string) (DataRate, error) {
	m := dataRatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, simerrors.NewInvalidChannelParameters("Unable to parse data rate %q", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, simerrors.NewInvalidChannelParameters("Unable to parse data rate %q: %v", s, err)
	}
	multiplier, ok := dataRatePrefixes[m[2]]
	if !ok {
		return 0, simerrors.NewInvalidChannelParameters("Unknown data rate unit prefix %q in %q", m[2], s)
	}
	if strings.HasPrefix(m[3], "B") {
		multiplier *= 8
	}
	bits := value * multiplier
	if bits > math.MaxUint64/2 {
		return 0, simerrors.NewInvalidChannelParameters("Data rate %q is too large", s)
	}
	return DataRate(math.Round(bits)), nil
}

// String returns the rate using the largest SI unit that represents it exactly
func (r DataRate) String() string {
	switch {
	case r != 0 && r%GigabitPerSecond == 0:
		return fmt.Sprintf("%dGbps", r/GigabitPerSecond)
	case r != 0 && r%MegabitPerSecond == 0:
		return fmt.Sprintf("%dMbps", r/MegabitPerSecond)
	case r != 0 && r%KilobitPerSecond == 0:
		return fmt.Sprintf("%dkbps", r/KilobitPerSecond)
	default:
		return fmt.Sprintf("%dbps", uint64(r))
	}
}

// TxTime returns the time needed to serialize the given number of bytes at this rate
func (r DataRate) TxTime(bytes int) time.Duration {
	if r == 0 || bytes <= 0 {
		return 0
	}
	bits := uint64(bytes) * 8
	return time.Duration(bits * uint64(time.Second) / uint64(r))
}
