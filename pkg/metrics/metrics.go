// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the simulation activity as Prometheus metrics
package metrics

import (
	"fmt"
	"net/http"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/csma"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records channel, bridge and pacing activity; it implements simulator.Observer
type Collector struct {
	gatherer prometheus.Gatherer

	FramesTransmitted *prometheus.CounterVec
	FramesDelivered   *prometheus.CounterVec
	FramesDropped     *prometheus.CounterVec
	BridgeFrames      *prometheus.CounterVec
	Overruns          prometheus.Counter
	SimulationTime    prometheus.Gauge
}

var _ simulator.Observer = (*Collector)(nil)

// NewCollector registers the simulation metrics against the given registerer; the default registerer
// is used if nil
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error
	if c.FramesTransmitted, err = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "tapbridge_frames_transmitted_total",
		Help: "Frames placed on the medium of each link.",
	}, "link"); err != nil {
		return nil, err
	}
	if c.FramesDelivered, err = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "tapbridge_frames_delivered_total",
		Help: "Frames delivered to the receiving interface of each link.",
	}, "link"); err != nil {
		return nil, err
	}
	if c.FramesDropped, err = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "tapbridge_frames_dropped_total",
		Help: "Frames dropped on each link, by reason.",
	}, "link", "reason"); err != nil {
		return nil, err
	}
	if c.BridgeFrames, err = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "tapbridge_bridge_frames_total",
		Help: "Frames relayed between interfaces and their external devices.",
	}, "device", "direction"); err != nil {
		return nil, err
	}

	overruns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tapbridge_realtime_overruns_total",
		Help: "Episodes of real-time pacing falling behind wall-clock time beyond the allowed slack.",
	})
	if c.Overruns, err = registerCounter(reg, overruns, "tapbridge_realtime_overruns_total"); err != nil {
		return nil, err
	}

	simTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tapbridge_simulation_time_seconds",
		Help: "Simulated time reached by the last completed run.",
	})
	if c.SimulationTime, err = registerGauge(reg, simTime, "tapbridge_simulation_time_seconds"); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// Handler returns the /metrics handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func linkLabel(link int) string {
	return fmt.Sprintf("L%d", link+1)
}

// FrameTransmitted counts a frame placed on the medium
func (c *Collector) FrameTransmitted(link int, bytes int) {
	c.FramesTransmitted.WithLabelValues(linkLabel(link)).Inc()
}

// FrameDelivered counts a frame delivered to an interface
func (c *Collector) FrameDelivered(link int, bytes int) {
	c.FramesDelivered.WithLabelValues(linkLabel(link)).Inc()
}

// FrameDropped counts a dropped frame
func (c *Collector) FrameDropped(link int, reason csma.DropReason) {
	c.FramesDropped.WithLabelValues(linkLabel(link), string(reason)).Inc()
}

// BridgeFrame counts a frame relayed through a binding
func (c *Collector) BridgeFrame(device string, direction simulator.Direction) {
	c.BridgeFrames.WithLabelValues(device, string(direction)).Inc()
}

// RealtimeOverrun counts an overrun episode
func (c *Collector) RealtimeOverrun(*simerrors.RealtimeOverrunWarning) {
	c.Overruns.Inc()
}

// ObserveReport records the outcome of a completed run
func (c *Collector) ObserveReport(report *simulator.Report) {
	c.SimulationTime.Set(report.SimTime.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", opts.Name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
