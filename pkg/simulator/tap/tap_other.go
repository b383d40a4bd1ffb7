// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package tap

import (
	"runtime"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
)

// Open is not supported on this platform
func Open(name string) (Device, error) {
	return nil, simerrors.NewExternalDeviceUnavailable(nil, "TAP device %s not supported on %s", name, runtime.GOOS)
}
