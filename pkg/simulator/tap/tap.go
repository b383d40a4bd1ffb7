// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package tap provides access to the external virtual network devices that simulated interfaces are
// bridged to. Devices are never created here; they must already exist in the host, set up by the
// invoking environment.
package tap

import (
	"io"

	"github.com/onosproject/onos-lib-go/pkg/logging"
)

var log = logging.GetLogger("simulator", "tap")

// MaxFrameSize is the size of the buffer used to read a single frame from a device
const MaxFrameSize = 65536

// Device is an opened external device; each Read returns one complete Ethernet frame and each
// Write emits one.
type Device interface {
	io.ReadWriteCloser

	// Name returns the host name of the device
	Name() string
}

// Opener opens the named external device
type Opener func(name string) (Device, error)
