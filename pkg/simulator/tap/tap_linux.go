// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package tap

import (
	"net"
	"os"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"golang.org/x/sys/unix"
)

const cloneDevice = "/dev/net/tun"

type hostDevice struct {
	*os.File
	name string
}

func (d *hostDevice) Name() string {
	return d.name
}

// Open attaches to an existing TAP device in the host. The device must have been created persistent
// and accessible to this process; attaching never creates a new device.
func Open(name string) (Device, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, simerrors.NewExternalDeviceUnavailable(nil, "Device name %q exceeds %d characters", name, unix.IFNAMSIZ-1)
	}
	// TUNSETIFF silently creates missing devices, so check first
	if _, err := net.InterfaceByName(name); err != nil {
		return nil, simerrors.NewExternalDeviceUnavailable(err, "Device %s not found", name)
	}

	fd, err := unix.Open(cloneDevice, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, simerrors.NewExternalDeviceUnavailable(err, "Unable to open %s", cloneDevice)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		_ = unix.Close(fd)
		return nil, simerrors.NewExternalDeviceUnavailable(err, "Invalid device name %s", name)
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		_ = unix.Close(fd)
		return nil, simerrors.NewExternalDeviceUnavailable(err, "Unable to attach to device %s", name)
	}

	log.Infof("Attached to TAP device %s", name)
	// A non-blocking descriptor lets the runtime poller unblock pending reads on Close
	return &hostDevice{File: os.NewFile(uintptr(fd), cloneDevice), name: name}, nil
}
