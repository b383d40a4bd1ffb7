// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package simulator realizes a topology of simulated CSMA links, bridges the node interfaces to external
// devices and runs the simulation for a bounded duration
package simulator

import (
	"sync"
	"time"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/csma"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/scheduler"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/tap"
)

var log = logging.GetLogger("simulator")

// DefaultDuration is the default length of a run, in simulated time
const DefaultDuration = 600 * time.Second

// State is the lifecycle state of a simulation
type State int

const (
	// Configured means the graph is built and bindings may be established
	Configured State = iota
	// Running means the event loop is executing
	Running
	// Stopped means the simulation has been torn down; it is terminal
	Stopped
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Observer receives notifications of all simulation activity
type Observer interface {
	csma.Observer
	BridgeFrame(device string, direction Direction)
	RealtimeOverrun(warning *simerrors.RealtimeOverrunWarning)
}

type nopObserver struct{}

func (nopObserver) FrameTransmitted(int, int) {}

func (nopObserver) FrameDelivered(int, int) {}

func (nopObserver) FrameDropped(int, csma.DropReason) {}

func (nopObserver) BridgeFrame(string, Direction) {}

func (nopObserver) RealtimeOverrun(*simerrors.RealtimeOverrunWarning) {}

// RunConfiguration holds the execution parameters of one simulation run
type RunConfiguration struct {
	// Realtime paces simulated time to wall-clock time
	Realtime bool
	// ChecksumEnabled attaches a frame check sequence to every frame, validated on delivery
	ChecksumEnabled bool
	// Duration is the length of the run; DefaultDuration if zero
	Duration time.Duration
	// OverrunSlack is the tolerated real-time lag; scheduler.DefaultOverrunSlack if zero
	OverrunSlack time.Duration
	// Seed seeds channel backoff and receive errors
	Seed int64
	// OpenDevice opens external devices; tap.Open if nil
	OpenDevice tap.Opener
	// Observer is notified of simulation activity; may be nil
	Observer Observer
}

// DefaultRunConfiguration returns a real-time, checksummed configuration attaching to host TAP devices
func DefaultRunConfiguration() RunConfiguration {
	return RunConfiguration{
		Realtime:        true,
		ChecksumEnabled: true,
		Duration:        DefaultDuration,
		OverrunSlack:    scheduler.DefaultOverrunSlack,
		OpenDevice:      tap.Open,
	}
}

// Report summarizes a completed run
type Report struct {
	SimTime           time.Duration
	Events            uint64
	FramesTransmitted uint64
	FramesDelivered   uint64
	FramesDropped     map[csma.DropReason]uint64
	BridgeIngress     uint64
	BridgeEgress      uint64
	Overruns          int
	MaxLag            time.Duration
}

// Dropped returns the total number of dropped frames
func (r *Report) Dropped() uint64 {
	var total uint64
	for _, count := range r.FramesDropped {
		total += count
	}
	return total
}

// Simulation is one run of a realized topology
type Simulation struct {
	lock     sync.RWMutex
	cfg      RunConfiguration
	state    State
	sched    *scheduler.Scheduler
	graph    *Graph
	bindings []*BridgeBinding
	names    map[string]*BridgeBinding
	relays   sync.WaitGroup
}

// NewSimulation builds the graph of the given topology; the simulation is left configured, ready for
// bindings to be established
func NewSimulation(cfg RunConfiguration, nodeCount int, links []LinkSpec) (*Simulation, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.OverrunSlack <= 0 {
		cfg.OverrunSlack = scheduler.DefaultOverrunSlack
	}
	if cfg.OpenDevice == nil {
		cfg.OpenDevice = tap.Open
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	sched := scheduler.New(scheduler.Config{
		Realtime:     cfg.Realtime,
		OverrunSlack: cfg.OverrunSlack,
		OnOverrun:    cfg.Observer.RealtimeOverrun,
	})
	graph, err := BuildGraph(sched, nodeCount, links, GraphOptions{Seed: cfg.Seed, Observer: cfg.Observer})
	if err != nil {
		return nil, err
	}
	return &Simulation{
		cfg:   cfg,
		state: Configured,
		sched: sched,
		graph: graph,
		names: make(map[string]*BridgeBinding),
	}, nil
}

// Config returns the run configuration
func (s *Simulation) Config() RunConfiguration {
	return s.cfg
}

// State returns the lifecycle state
func (s *Simulation) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Graph returns the realized topology; it must not be mutated
func (s *Simulation) Graph() *Graph {
	return s.graph
}

// Interface returns the interface with the given per-node index
func (s *Simulation) Interface(node int, localIndex int) (*Interface, error) {
	return s.graph.Interface(node, localIndex)
}

// Bindings returns all established bindings in the order they were made
func (s *Simulation) Bindings() []*BridgeBinding {
	s.lock.RLock()
	defer s.lock.RUnlock()
	bindings := make([]*BridgeBinding, len(s.bindings))
	copy(bindings, s.bindings)
	return bindings
}

// Run executes the simulation for the configured duration, then tears it down. Expiry of the duration
// is the only stop condition.
func (s *Simulation) Run() (*Report, error) {
	s.lock.Lock()
	if s.state != Configured {
		state := s.state
		s.lock.Unlock()
		return nil, errors.NewConflict("Simulation cannot run; it is %s", state)
	}
	s.state = Running
	bindings := s.bindings
	s.lock.Unlock()

	log.Infof("Running simulation for %s (realtime=%t, checksum=%t, bindings=%d)",
		s.cfg.Duration, s.cfg.Realtime, s.cfg.ChecksumEnabled, len(bindings))
	for _, b := range bindings {
		s.relays.Add(1)
		go func(b *BridgeBinding) {
			defer s.relays.Done()
			b.relay(s.sched, s.cfg.ChecksumEnabled)
		}(b)
	}

	stats := s.sched.Run(s.cfg.Duration)
	report := s.teardown(stats)
	log.Infof("Simulation stopped at %s after %d events; %d frames delivered, %d dropped",
		report.SimTime, report.Events, report.FramesDelivered, report.Dropped())
	return report, nil
}

// Close releases a simulation that will not be run, including the devices of its bindings. It has no
// effect unless the simulation is still configured.
func (s *Simulation) Close() {
	s.lock.Lock()
	if s.state != Configured {
		s.lock.Unlock()
		return
	}
	s.state = Stopped
	s.lock.Unlock()

	for _, b := range s.bindings {
		b.close()
	}
	s.graph.release()
	log.Infof("Simulation closed without running")
}

// teardown releases everything after the event loop terminated: bindings first, so relays stop
// injecting, then channels, then nodes
func (s *Simulation) teardown(stats scheduler.Stats) *Report {
	s.lock.Lock()
	s.state = Stopped
	s.lock.Unlock()

	for _, b := range s.bindings {
		b.close()
	}
	s.relays.Wait()

	report := s.report(stats)
	s.graph.release()
	return report
}

func (s *Simulation) report(stats scheduler.Stats) *Report {
	r := &Report{
		SimTime:       stats.SimTime,
		Events:        stats.Events,
		FramesDropped: make(map[csma.DropReason]uint64),
		Overruns:      stats.Overruns,
		MaxLag:        stats.MaxLag,
	}
	for _, l := range s.graph.Links {
		for _, ifc := range l.Endpoints {
			ds := ifc.device.Stats()
			r.FramesTransmitted += ds.TxFrames
			r.FramesDelivered += ds.RxFrames
			for reason, count := range ds.Dropped {
				r.FramesDropped[reason] += count
			}
		}
	}
	for _, b := range s.bindings {
		bs := b.Stats()
		r.BridgeIngress += bs.Ingress
		r.BridgeEgress += bs.Egress
	}
	return r
}
