// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package northbound implements the northbound API of the simulator
package northbound

import (
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/onos-lib-go/pkg/northbound"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var log = logging.GetLogger("northbound")

// ServiceName is the name under which the simulation health is reported
const ServiceName = "tapbridge.Simulation"

// Service reports the simulation run state through the standard gRPC health service
type Service struct {
	northbound.Service
	health *health.Server
}

// NewService allocates a Service reporting not serving until the simulation runs
func NewService() *Service {
	s := &Service{health: health.NewServer()}
	s.SetState(simulator.Configured)
	return s
}

// Register registers the server with grpc
func (s *Service) Register(r *grpc.Server) {
	healthpb.RegisterHealthServer(r, s.health)
	log.Debug("Health service registered")
}

// SetState updates the reported health; only a running simulation is serving
func (s *Service) SetState(state simulator.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == simulator.Running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	log.Infof("Simulation is %s; health %s", state, status)
}

// Shutdown reports not serving for good, ignoring later updates
func (s *Service) Shutdown() {
	s.health.Shutdown()
}
