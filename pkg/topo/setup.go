// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"io"
	"text/template"
)

var setupTemplate = template.Must(template.New("setup").Parse(`#!/bin/sh
# Creates the TAP devices bridged to the simulated interfaces; run as root before the simulation
set -e
{{- range .Bindings}}
ip tuntap add dev {{.Device}} mode tap{{if $.User}} user {{$.User}}{{end}}
ip link set dev {{.Device}} promisc on up
{{- end}}
`))

var teardownTemplate = template.Must(template.New("teardown").Parse(`#!/bin/sh
# Removes the TAP devices bridged to the simulated interfaces
{{- range .Bindings}}
ip tuntap del dev {{.Device}} mode tap
{{- end}}
`))

// SetupOptions controls the generated device setup script
type SetupOptions struct {
	// User owns the created devices, so that the simulation can attach without privileges
	User string
	// Teardown generates the script removing the devices instead
	Teardown bool
}

// WriteSetupScript writes a shell script creating, or removing, exactly the devices the bindings expect
func WriteSetupScript(w io.Writer, bindings []DeviceBinding, opts SetupOptions) error {
	data := struct {
		Bindings []DeviceBinding
		User     string
	}{bindings, opts.User}
	if opts.Teardown {
		return teardownTemplate.Execute(w, data)
	}
	return setupTemplate.Execute(w, data)
}
