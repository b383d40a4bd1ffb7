// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package main is the main entry point for running the TAP bridge simulation
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/tapbridge-sim/pkg/manager"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logging.GetLogger()

const (
	envPrefix = "TAPBRIDGE_SIM"

	topologyFlag       = "topology"
	durationFlag       = "duration"
	realtimeFlag       = "realtime"
	checksumFlag       = "checksum"
	overrunSlackFlag   = "overrun-slack"
	seedFlag           = "seed"
	devicesFlag        = "devices"
	metricsAddressFlag = "metrics-address"
	portFlag           = "port"
	caPathFlag         = "caPath"
	keyPathFlag        = "keyPath"
	certPathFlag       = "certPath"
	noTLSFlag          = "no-tls"
)

// The main entry point
func main() {
	if err := getRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tapbridge-sim",
		Short:        "Run a simulated network bridged to host TAP devices",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runRootCommand,
	}
	cmd.Flags().String(topologyFlag, "", "topology YAML file; use - for stdin; built-in three node network if empty")
	cmd.Flags().Duration(durationFlag, simulator.DefaultDuration, "simulated time to run for")
	cmd.Flags().Bool(realtimeFlag, true, "pace simulated time to the wall clock")
	cmd.Flags().Bool(checksumFlag, true, "check frame integrity on receive")
	cmd.Flags().Duration(overrunSlackFlag, scheduler.DefaultOverrunSlack, "lag behind the wall clock reported as an overrun")
	cmd.Flags().Int64(seedFlag, 0, "seed of the per-link error models")
	cmd.Flags().String(devicesFlag, manager.DevicesTap, "external devices: tap, or memory for a dry run")
	cmd.Flags().String(metricsAddressFlag, "", "listen address of the prometheus /metrics endpoint; disabled if empty")
	cmd.Flags().Int(portFlag, 0, "northbound gRPC port; disabled if 0")
	cmd.Flags().String(caPathFlag, "", "path to CA certificate")
	cmd.Flags().String(keyPathFlag, "", "path to client private key")
	cmd.Flags().String(certPathFlag, "", "path to client certificate")
	cmd.Flags().Bool(noTLSFlag, true, "serve the northbound without TLS")
	return cmd
}

// loadConfig overlays TAPBRIDGE_SIM_* environment variables on the command flags
func loadConfig(cmd *cobra.Command) (manager.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return manager.Config{}, err
	}
	return manager.Config{
		TopologyPath:   v.GetString(topologyFlag),
		Duration:       v.GetDuration(durationFlag),
		Realtime:       v.GetBool(realtimeFlag),
		Checksum:       v.GetBool(checksumFlag),
		OverrunSlack:   v.GetDuration(overrunSlackFlag),
		Seed:           v.GetInt64(seedFlag),
		Devices:        v.GetString(devicesFlag),
		MetricsAddress: v.GetString(metricsAddressFlag),
		GRPCPort:       v.GetInt(portFlag),
		CAPath:         v.GetString(caPathFlag),
		KeyPath:        v.GetString(keyPathFlag),
		CertPath:       v.GetString(certPathFlag),
		NoTLS:          v.GetBool(noTLSFlag),
	}, nil
}

func runRootCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.Info("Starting tapbridge-sim")
	return manager.NewManager(cfg).Run()
}
