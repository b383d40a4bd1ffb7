// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/onosproject/tapbridge-sim/pkg/manager"
	"github.com/onosproject/tapbridge-sim/pkg/topo"
	"github.com/spf13/cobra"
)

const (
	topologyFlag = "topology"
	recipeFlag   = "recipe"
	outputFlag   = "output"
	userFlag     = "user"
	teardownFlag = "teardown"
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
		Use:          "tapbridge-topo {validate, bindings, generate}",
		Short:        "Validate, inspect or generate simulated topology",
		SilenceUsage: true,
	}
	cmd.AddCommand(getValidateCommand())
	cmd.AddCommand(getBindingsCommand())
	cmd.AddCommand(getGenerateCommand())
	return cmd
}

func addTopologyFlag(cmd *cobra.Command) {
	cmd.Flags().String(topologyFlag, "-", "topology YAML file; use - for stdin (default); empty for the built-in topology")
}

func loadTopology(cmd *cobra.Command) (*topo.Topology, error) {
	topologyPath, _ := cmd.Flags().GetString(topologyFlag)
	return manager.LoadTopology(topologyPath)
}

func getValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a topology YAML file, including its links and device bindings",
		Args:  cobra.NoArgs,
		RunE:  runValidateCommand,
	}
	addTopologyFlag(cmd)
	return cmd
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	topology, err := loadTopology(cmd)
	if err != nil {
		return err
	}
	if _, err := topology.LinkSpecs(); err != nil {
		return err
	}
	bindings, err := topology.ResolveBindings()
	if err != nil {
		return err
	}
	cmd.Printf("Topology is valid: %d nodes, %d links, %d device bindings\n",
		topology.Nodes, len(topology.Links), len(bindings))
	return nil
}

func getBindingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bindings",
		Aliases: []string{"devices"},
		Short:   "Print the (node, interface) to device binding table of a topology",
		Args:    cobra.NoArgs,
		RunE:    runBindingsCommand,
	}
	addTopologyFlag(cmd)
	return cmd
}

func runBindingsCommand(cmd *cobra.Command, args []string) error {
	topology, err := loadTopology(cmd)
	if err != nil {
		return err
	}
	bindings, err := topology.ResolveBindings()
	if err != nil {
		return err
	}
	for _, b := range bindings {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b, b.Mode)
	}
	return nil
}

func getGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate {topology, setup}",
		Aliases: []string{"gen"},
		Short:   "Generate topology YAML from a recipe, or the script creating its TAP devices",
		Args:    cobra.NoArgs,
	}
	cmd.AddCommand(getGenerateTopoCommand())
	cmd.AddCommand(getGenerateSetupCommand())
	return cmd
}

func getGenerateTopoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "topology",
		Aliases: []string{"topo"},
		Short:   "Generate a line, ring, star or mesh topology from a topology recipe YAML file",
		Args:    cobra.NoArgs,
		RunE:    runGenerateTopoCommand,
	}
	cmd.Flags().String(recipeFlag, "-", "topology recipe YAML file; use - for stdin (default)")
	cmd.Flags().String(outputFlag, "-", "output topology YAML file; use - for stdout (default)")
	return cmd
}

func runGenerateTopoCommand(cmd *cobra.Command, args []string) error {
	recipePath, _ := cmd.Flags().GetString(recipeFlag)
	outputPath, _ := cmd.Flags().GetString(outputFlag)
	return topo.GenerateTopology(recipePath, outputPath)
}

func getGenerateSetupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate a shell script creating the TAP devices the topology binds to",
		Args:  cobra.NoArgs,
		RunE:  runGenerateSetupCommand,
	}
	addTopologyFlag(cmd)
	cmd.Flags().String(userFlag, "", "owner of the created TAP devices")
	cmd.Flags().Bool(teardownFlag, false, "generate the script removing the devices instead")
	return cmd
}

func runGenerateSetupCommand(cmd *cobra.Command, args []string) error {
	topology, err := loadTopology(cmd)
	if err != nil {
		return err
	}
	bindings, err := topology.ResolveBindings()
	if err != nil {
		return err
	}
	user, _ := cmd.Flags().GetString(userFlag)
	teardown, _ := cmd.Flags().GetBool(teardownFlag)
	return topo.WriteSetupScript(cmd.OutOrStdout(), bindings, topo.SetupOptions{User: user, Teardown: teardown})
}
