// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	goerrors "errors"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/tapbridge-sim/pkg/frame"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/scheduler"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/tap"
)

// Mode selects how a simulated interface is exposed through its external device
type Mode int

const (
	// ModeUseBridge relays frames unmodified between the interface and the device, in both directions
	ModeUseBridge Mode = iota
	// ModeConfigureLocal is reserved for a mode where the device is configured with the interface
	// addressing; it is not supported
	ModeConfigureLocal
)

func (m Mode) String() string {
	switch m {
	case ModeUseBridge:
		return "UseBridge"
	case ModeConfigureLocal:
		return "ConfigureLocal"
	default:
		return "Unknown"
	}
}

// ParseMode parses a bridge mode name; the empty string means ModeUseBridge
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "usebridge", "use_bridge", "bridge":
		return ModeUseBridge, nil
	case "configurelocal", "configure_local", "local":
		return ModeConfigureLocal, nil
	default:
		return 0, errors.NewInvalid("Unknown bridge mode %q", s)
	}
}

// Direction of a bridged frame
type Direction string

const (
	// Ingress is from the external device into the simulation
	Ingress Direction = "ingress"
	// Egress is from the simulation out to the external device
	Egress Direction = "egress"
)

// BridgeBinding is the relay between one simulated interface and the external device it is bound to
type BridgeBinding struct {
	Interface  *Interface
	DeviceName string
	Mode       Mode

	device   tap.Device
	observer Observer
	closing  atomic.Bool
	ingress  atomic.Uint64
	egress   atomic.Uint64
}

// BindingStats holds the frame counters of a binding
type BindingStats struct {
	Ingress uint64
	Egress  uint64
}

// Stats returns the number of frames relayed in each direction
func (b *BridgeBinding) Stats() BindingStats {
	return BindingStats{Ingress: b.ingress.Load(), Egress: b.egress.Load()}
}

// Bind attaches the interface to the named external device. The device must exist; it is opened
// here and relaying starts when the simulation runs.
func (s *Simulation) Bind(ifc *Interface, externalDeviceName string, mode Mode) (*BridgeBinding, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != Configured {
		return nil, simerrors.NewBindingAfterStart("Unable to bind %s to %s; simulation is %s", ifc, externalDeviceName, s.state)
	}
	if !s.graph.owns(ifc) {
		return nil, simerrors.NewInvalidTopology("Interface %v is not part of this simulation", ifc)
	}
	if externalDeviceName == "" {
		return nil, errors.NewInvalid("Device name for interface %s must not be empty", ifc)
	}
	if mode != ModeUseBridge {
		return nil, errors.NewNotSupported("Bridge mode %s is not supported", mode)
	}
	if ifc.binding != nil {
		return nil, simerrors.NewDuplicateBinding("Interface %s is already bound to %s", ifc, ifc.binding.DeviceName)
	}
	if other, ok := s.names[externalDeviceName]; ok {
		return nil, simerrors.NewNameCollision("Device %s is already bound to interface %s", externalDeviceName, other.Interface)
	}

	device, err := s.cfg.OpenDevice(externalDeviceName)
	if err != nil {
		if _, ok := simerrors.KindOf(err); !ok {
			err = simerrors.NewExternalDeviceUnavailable(err, "Unable to open device %s", externalDeviceName)
		}
		return nil, err
	}

	b := &BridgeBinding{
		Interface:  ifc,
		DeviceName: externalDeviceName,
		Mode:       mode,
		device:     device,
		observer:   s.cfg.Observer,
	}
	ifc.binding = b
	ifc.device.SetReceiveCallback(b.deliver)
	s.names[externalDeviceName] = b
	s.bindings = append(s.bindings, b)
	log.Infof("Bound interface %s to %s (%s)", ifc, externalDeviceName, mode)
	return b, nil
}

// deliver forwards a frame received by the interface to the external device; runs on the event loop
func (b *BridgeBinding) deliver(f *frame.Frame) {
	if b.closing.Load() {
		return
	}
	if _, err := b.device.Write(f.Data); err != nil {
		log.Debugf("%s: Unable to write frame: %v", b.DeviceName, err)
		return
	}
	b.egress.Add(1)
	b.observer.BridgeFrame(b.DeviceName, Egress)
}

// inject sends a frame read from the external device out of the interface; runs on the event loop
func (b *BridgeBinding) inject(f *frame.Frame) {
	device := b.Interface.device
	if device == nil {
		return
	}
	b.ingress.Add(1)
	b.observer.BridgeFrame(b.DeviceName, Ingress)
	if log.GetLevel() == logging.DebugLevel {
		log.Debugf("%s: %s", b.DeviceName, f.Summary())
	}
	device.Send(f)
}

// relay reads frames from the external device and hands them to the event loop until the device is
// closed or the loop terminates
func (b *BridgeBinding) relay(sched *scheduler.Scheduler, checksum bool) {
	buf := make([]byte, tap.MaxFrameSize)
	for {
		n, err := b.device.Read(buf)
		if err != nil {
			if !b.closing.Load() && !goerrors.Is(err, io.EOF) && !goerrors.Is(err, os.ErrClosed) {
				log.Warnf("%s: Relay stopped: %v", b.DeviceName, err)
			}
			return
		}
		if n == 0 {
			continue
		}
		f := frame.New(buf[:n], checksum)
		if !sched.Inject(func() { b.inject(f) }) {
			return
		}
	}
}

// close stops relaying and releases the external device; the device itself is left in place
func (b *BridgeBinding) close() {
	if b.closing.Swap(true) {
		return
	}
	if err := b.device.Close(); err != nil {
		log.Warnf("%s: Unable to close device: %v", b.DeviceName, err)
	}
}
