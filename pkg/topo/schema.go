// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"os"
	"path/filepath"

	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/spf13/viper"
)

var log = logging.GetLogger("topo")

// Topology is a description of a simulated network: its nodes, the links between them and the
// external devices their interfaces are bridged to
type Topology struct {
	Nodes    int       `mapstructure:"nodes" yaml:"nodes" validate:"min=1"`
	Defaults Defaults  `mapstructure:"defaults" yaml:"defaults,omitempty"`
	Naming   Naming    `mapstructure:"naming" yaml:"naming,omitempty"`
	Links    []Link    `mapstructure:"links" yaml:"links" validate:"dive"`
	Bindings []Binding `mapstructure:"bindings" yaml:"bindings,omitempty" validate:"dive"`
}

// Defaults holds the parameters used by links and bindings that do not specify their own
type Defaults struct {
	DataRate  string  `mapstructure:"data_rate" yaml:"data_rate,omitempty"`
	Delay     string  `mapstructure:"delay" yaml:"delay,omitempty"`
	MTU       int     `mapstructure:"mtu" yaml:"mtu,omitempty" validate:"gte=0"`
	ErrorRate float64 `mapstructure:"error_rate" yaml:"error_rate,omitempty" validate:"gte=0,lt=1"`
	Mode      string  `mapstructure:"mode" yaml:"mode,omitempty" validate:"omitempty,oneof=UseBridge ConfigureLocal"`
}

// Naming describes how device names are derived for interfaces without an explicit binding
type Naming struct {
	// Auto binds every interface without an explicit binding to a derived device name
	Auto bool `mapstructure:"auto" yaml:"auto"`
	// Format is applied to the node number and the interface local index
	Format string `mapstructure:"format" yaml:"format,omitempty"`
	// NodeBase is added to the node index to form the node number
	NodeBase int `mapstructure:"node_base" yaml:"node_base" validate:"gte=0"`
}

// Link is a description of a simulated link between nodes A and B, in endpoint order
type Link struct {
	A         int     `mapstructure:"a" yaml:"a" validate:"gte=0"`
	B         int     `mapstructure:"b" yaml:"b" validate:"gte=0"`
	DataRate  string  `mapstructure:"data_rate" yaml:"data_rate,omitempty"`
	Delay     string  `mapstructure:"delay" yaml:"delay,omitempty"`
	MTU       int     `mapstructure:"mtu" yaml:"mtu,omitempty" validate:"gte=0"`
	ErrorRate float64 `mapstructure:"error_rate" yaml:"error_rate,omitempty" validate:"gte=0,lt=1"`
	Comment   string  `mapstructure:"comment" yaml:"comment,omitempty"`
}

// Binding names the external device of one node interface, overriding the derived name
type Binding struct {
	Node      int    `mapstructure:"node" yaml:"node" validate:"gte=0"`
	Interface int    `mapstructure:"interface" yaml:"interface" validate:"gte=0"`
	Device    string `mapstructure:"device" yaml:"device" validate:"required,max=15"`
	Mode      string `mapstructure:"mode" yaml:"mode,omitempty" validate:"omitempty,oneof=UseBridge ConfigureLocal"`
}

// Reads configuration from the specified path (- for stdin) via viper; ready to Unmarshal
func readConfig(path string) (*viper.Viper, error) {
	cfg := viper.New()
	cfg.SetConfigType("yaml")
	if path == "-" {
		if err := cfg.ReadConfig(os.Stdin); err != nil {
			return cfg, err
		}
	} else {
		cfg.SetConfigFile(filepath.Clean(path))
		if err := cfg.ReadInConfig(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
