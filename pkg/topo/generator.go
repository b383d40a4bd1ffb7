// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"io"
	"os"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Recipe is a container for holding one of the supported topology recipes
type Recipe struct {
	Line *Shape `mapstructure:"line" yaml:"line"`
	Ring *Shape `mapstructure:"ring" yaml:"ring"`
	Star *Shape `mapstructure:"star" yaml:"star"`
	Mesh *Shape `mapstructure:"mesh" yaml:"mesh"`
	// Add more recipes here
}

// Shape holds the parameters common to all recipes
type Shape struct {
	Nodes    int    `mapstructure:"nodes" yaml:"nodes"`
	DataRate string `mapstructure:"data_rate" yaml:"data_rate"`
	Delay    string `mapstructure:"delay" yaml:"delay"`
	NodeBase int    `mapstructure:"node_base" yaml:"node_base"`
}

// GenerateTopology loads the specified topology recipe YAML file and uses the recipe to generate a
// fully elaborated topology YAML file that can be loaded via LoadTopologyFile; - writes to stdout
func GenerateTopology(recipePath string, topologyPath string) error {
	log.Infof("Loading topology recipe from %s", recipePath)
	recipe := &Recipe{}
	if err := loadRecipeFile(recipePath, recipe); err != nil {
		return err
	}
	topology, err := GenerateFromRecipe(recipe)
	if err != nil {
		return err
	}
	return saveTopologyFile(topology, topologyPath)
}

// GenerateFromRecipe elaborates the topology described by the recipe
func GenerateFromRecipe(recipe *Recipe) (*Topology, error) {
	switch {
	case recipe.Line != nil:
		return GenerateLine(recipe.Line), nil
	case recipe.Ring != nil:
		return GenerateRing(recipe.Ring), nil
	case recipe.Star != nil:
		return GenerateStar(recipe.Star), nil
	case recipe.Mesh != nil:
		return GenerateMesh(recipe.Mesh), nil
	default:
		return nil, errors.NewInvalid("No supported topology recipe found")
	}
}

// GenerateLine generates nodes connected in a chain
func GenerateLine(shape *Shape) *Topology {
	t := newShapedTopology(shape, 2)
	for i := 0; i+1 < t.Nodes; i++ {
		t.Links = append(t.Links, Link{A: i, B: i + 1})
	}
	return t
}

// GenerateRing generates nodes connected in a chain that closes on the first node
func GenerateRing(shape *Shape) *Topology {
	t := GenerateLine(&Shape{Nodes: defaultCount(shape.Nodes, 3), DataRate: shape.DataRate, Delay: shape.Delay, NodeBase: shape.NodeBase})
	if t.Nodes > 2 {
		t.Links = append(t.Links, Link{A: t.Nodes - 1, B: 0})
	}
	return t
}

// GenerateStar generates a hub, node 0, connected to every other node
func GenerateStar(shape *Shape) *Topology {
	t := newShapedTopology(shape, 4)
	for i := 1; i < t.Nodes; i++ {
		t.Links = append(t.Links, Link{A: 0, B: i})
	}
	return t
}

// GenerateMesh generates nodes connected to every other node
func GenerateMesh(shape *Shape) *Topology {
	t := newShapedTopology(shape, 4)
	for i := 0; i < t.Nodes; i++ {
		for j := i + 1; j < t.Nodes; j++ {
			t.Links = append(t.Links, Link{A: i, B: j})
		}
	}
	return t
}

func newShapedTopology(shape *Shape, nodes int) *Topology {
	return &Topology{
		Nodes: defaultCount(shape.Nodes, nodes),
		Defaults: Defaults{
			DataRate: pick(shape.DataRate, DefaultDataRate),
			Delay:    pick(shape.Delay, DefaultDelay),
		},
		Naming: Naming{Auto: true, Format: DefaultNameFormat, NodeBase: shape.NodeBase},
	}
}

// Loads the specified topology recipe YAML file
func loadRecipeFile(path string, recipe *Recipe) error {
	cfg, err := readConfig(path)
	if err != nil {
		return err
	}
	return cfg.Unmarshal(recipe)
}

// Saves the given topology as YAML in the specified file path; stdout if -
func saveTopologyFile(topology *Topology, path string) error {
	if path == "-" {
		return WriteTopology(os.Stdout, topology)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTopology(f, topology); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteTopology writes the topology in YAML form
func WriteTopology(w io.Writer, topology *Topology) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(topology); err != nil {
		return err
	}
	return encoder.Close()
}

// Returns count or the default count if the count is 0
func defaultCount(count int, defaultCount int) int {
	if count > 0 {
		return count
	}
	return defaultCount
}
