// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package manager wires the topology, the simulation and its optional metrics and northbound endpoints
package manager

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/onos-lib-go/pkg/northbound"
	"github.com/onosproject/tapbridge-sim/pkg/metrics"
	nbhealth "github.com/onosproject/tapbridge-sim/pkg/northbound"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/tap"
	"github.com/onosproject/tapbridge-sim/pkg/topo"
	"github.com/prometheus/client_golang/prometheus"
)

var log = logging.GetLogger("manager")

const (
	// DevicesTap attaches to host TAP devices
	DevicesTap = "tap"
	// DevicesMemory uses in-memory devices, for dry runs without host devices
	DevicesMemory = "memory"

	shutdownTimeout = 5 * time.Second
)

// Config is a manager configuration
type Config struct {
	// TopologyPath is the topology YAML file; - for stdin, empty for the built-in topology
	TopologyPath string
	Duration     time.Duration
	Realtime     bool
	Checksum     bool
	OverrunSlack time.Duration
	Seed         int64
	// Devices selects the kind of external devices, DevicesTap or DevicesMemory
	Devices string
	// MetricsAddress is the listen address of the /metrics endpoint; empty disables it
	MetricsAddress string
	// GRPCPort is the port of the northbound server; zero disables it
	GRPCPort int
	CAPath   string
	KeyPath  string
	CertPath string
	NoTLS    bool
}

// Manager single point of entry for the tapbridge-sim
type Manager struct {
	Config     Config
	RunID      uuid.UUID
	Topology   *topo.Topology
	Simulation *simulator.Simulation
	Collector  *metrics.Collector
	Health     *nbhealth.Service
	Report     *simulator.Report

	registry      *prometheus.Registry
	metricsServer *http.Server
	nbServer      *northbound.Server
}

// NewManager initializes the application manager
func NewManager(cfg Config) *Manager {
	log.Infow("Creating manager")
	return &Manager{
		Config:   cfg,
		RunID:    uuid.New(),
		registry: prometheus.NewRegistry(),
	}
}

// Run sets up the simulation, runs it to completion and tears everything down. Any error is a setup
// failure; the simulation itself always runs to the end of its duration.
func (m *Manager) Run() error {
	log.Infow("Starting Manager", "run", m.RunID.String())
	defer m.Close()

	if err := m.Start(); err != nil {
		return err
	}

	m.Health.SetState(simulator.Running)
	report, err := m.Simulation.Run()
	m.Health.SetState(m.Simulation.State())
	if err != nil {
		return err
	}
	m.Report = report
	m.Collector.ObserveReport(report)
	log.Infow("Run completed", "run", m.RunID.String(), "simTime", report.SimTime.String(),
		"events", report.Events, "delivered", report.FramesDelivered, "dropped", report.Dropped(),
		"overruns", report.Overruns, "maxLag", report.MaxLag.String())
	return nil
}

// Start loads the topology, realizes the simulation with all its bindings and starts the metrics and
// northbound endpoints. The simulation is left configured, ready to run.
func (m *Manager) Start() error {
	var err error
	if m.Topology, err = LoadTopology(m.Config.TopologyPath); err != nil {
		return err
	}

	if m.Collector, err = metrics.NewCollector(m.registry); err != nil {
		return err
	}
	m.Health = nbhealth.NewService()

	opener, err := m.deviceOpener()
	if err != nil {
		return err
	}
	cfg := simulator.RunConfiguration{
		Realtime:        m.Config.Realtime,
		ChecksumEnabled: m.Config.Checksum,
		Duration:        m.Config.Duration,
		OverrunSlack:    m.Config.OverrunSlack,
		Seed:            m.Config.Seed,
		OpenDevice:      opener,
		Observer:        m.Collector,
	}
	if m.Simulation, err = m.Topology.Realize(cfg); err != nil {
		return err
	}

	if err := m.startMetricsServer(); err != nil {
		return err
	}
	return m.startNorthboundServer()
}

// LoadTopology loads the topology at the given path; the built-in topology if the path is empty
func LoadTopology(path string) (*topo.Topology, error) {
	if path == "" {
		log.Infof("Using built-in topology")
		return topo.DefaultTopology(), nil
	}
	topology := &topo.Topology{}
	if err := topo.LoadTopologyFile(path, topology); err != nil {
		return nil, err
	}
	return topology, nil
}

func (m *Manager) deviceOpener() (tap.Opener, error) {
	switch m.Config.Devices {
	case "", DevicesTap:
		return tap.Open, nil
	case DevicesMemory:
		bindings, err := m.Topology.ResolveBindings()
		if err != nil {
			return nil, err
		}
		memory := tap.NewMemory()
		for _, b := range bindings {
			memory.Add(b.Device)
		}
		log.Infof("Using %d in-memory devices", len(bindings))
		return memory.Open, nil
	default:
		return nil, errors.NewInvalid("Unknown device kind %q", m.Config.Devices)
	}
}

func (m *Manager) startMetricsServer() error {
	if m.Config.MetricsAddress == "" {
		return nil
	}
	lis, err := net.Listen("tcp", m.Config.MetricsAddress)
	if err != nil {
		return errors.NewUnavailable("Unable to listen on %s: %v", m.Config.MetricsAddress, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Collector.Handler())
	m.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.metricsServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Warnf("Metrics server stopped: %v", err)
		}
	}()
	log.Infof("Serving metrics on %s", lis.Addr())
	return nil
}

// MetricsHandler returns the handler of the /metrics endpoint
func (m *Manager) MetricsHandler() http.Handler {
	return m.Collector.Handler()
}

// startNorthboundServer starts the northbound gRPC server
func (m *Manager) startNorthboundServer() error {
	if m.Config.GRPCPort == 0 {
		return nil
	}
	cfg := northbound.NewInsecureServerConfig(int16(m.Config.GRPCPort))
	if !m.Config.NoTLS {
		cfg = northbound.NewServerCfg(m.Config.CAPath, m.Config.KeyPath, m.Config.CertPath, int16(m.Config.GRPCPort),
			true, northbound.SecurityConfig{})
	}
	s := northbound.NewServer(cfg)
	s.AddService(logging.Service{})
	s.AddService(m.Health)

	doneCh := make(chan error)
	go func() {
		err := s.Serve(func(started string) {
			log.Info("Started NBI on ", started)
			close(doneCh)
		})
		if err != nil {
			doneCh <- err
		}
	}()
	if err := <-doneCh; err != nil {
		return err
	}
	m.nbServer = s
	return nil
}

// Close stops the endpoints and releases a simulation that was never run
func (m *Manager) Close() {
	log.Infow("Closing Manager")
	if m.Simulation != nil {
		m.Simulation.Close()
	}
	if m.Health != nil {
		m.Health.Shutdown()
	}
	if m.nbServer != nil {
		m.nbServer.GracefulStop()
		m.nbServer = nil
	}
	if m.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := m.metricsServer.Shutdown(ctx); err != nil {
			log.Warnf("Unable to stop metrics server: %v", err)
		}
		m.metricsServer = nil
	}
}
