// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package simerrors defines the failure taxonomy of the topology realization engine
package simerrors

import (
	goerrors "errors"
	"fmt"
	"time"

	"github.com/onosproject/onos-lib-go/pkg/errors"
)

// Kind classifies an engine failure
type Kind int

const (
	// InvalidTopology is a malformed graph reference, e.g. a link citing an unknown node
	InvalidTopology Kind = iota + 1
	// InvalidChannelParameters is a non-positive bandwidth or delay
	InvalidChannelParameters
	// DuplicateBinding is an attempt to bind an already bound interface
	DuplicateBinding
	// NameCollision is an attempt to reuse an external device name
	NameCollision
	// BindingAfterStart is an attempt to bind once the simulation left the configured state
	BindingAfterStart
	// ExternalDeviceUnavailable is a missing or inaccessible host device
	ExternalDeviceUnavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidTopology:
		return "invalid topology"
	case InvalidChannelParameters:
		return "invalid channel parameters"
	case DuplicateBinding:
		return "duplicate binding"
	case NameCollision:
		return "name collision"
	case BindingAfterStart:
		return "binding after start"
	case ExternalDeviceUnavailable:
		return "external device unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is an engine failure of a specific kind. The cause is an onos typed error so that
// callers exposing the failure over gRPC retain the matching status code.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap returns the underlying typed error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for use with errors.Is
var (
	ErrInvalidTopology           = &Error{Kind: InvalidTopology}
	ErrInvalidChannelParameters  = &Error{Kind: InvalidChannelParameters}
	ErrDuplicateBinding          = &Error{Kind: DuplicateBinding}
	ErrNameCollision             = &Error{Kind: NameCollision}
	ErrBindingAfterStart         = &Error{Kind: BindingAfterStart}
	ErrExternalDeviceUnavailable = &Error{Kind: ExternalDeviceUnavailable}
)

// NewInvalidTopology returns an InvalidTopology error
func NewInvalidTopology(msg string, args ...interface{}) error {
	return &Error{Kind: InvalidTopology, Err: errors.NewInvalid(msg, args...)}
}

// NewInvalidChannelParameters returns an InvalidChannelParameters error
func NewInvalidChannelParameters(msg string, args ...interface{}) error {
	return &Error{Kind: InvalidChannelParameters, Err: errors.NewInvalid(msg, args...)}
}

// NewDuplicateBinding returns a DuplicateBinding error
func NewDuplicateBinding(msg string, args ...interface{}) error {
	return &Error{Kind: DuplicateBinding, Err: errors.NewAlreadyExists(msg, args...)}
}

// NewNameCollision returns a NameCollision error
func NewNameCollision(msg string, args ...interface{}) error {
	return &Error{Kind: NameCollision, Err: errors.NewConflict(msg, args...)}
}

// NewBindingAfterStart returns a BindingAfterStart error
func NewBindingAfterStart(msg string, args ...interface{}) error {
	return &Error{Kind: BindingAfterStart, Err: errors.NewConflict(msg, args...)}
}

// NewExternalDeviceUnavailable returns an ExternalDeviceUnavailable error; cause may be nil
func NewExternalDeviceUnavailable(cause error, msg string, args ...interface{}) error {
	if cause != nil {
		msg = fmt.Sprintf(msg, args...) + ": " + cause.Error()
		return &Error{Kind: ExternalDeviceUnavailable, Err: errors.NewUnavailable("%s", msg)}
	}
	return &Error{Kind: ExternalDeviceUnavailable, Err: errors.NewUnavailable(msg, args...)}
}

// KindOf returns the kind of the given engine error, if it is one
func KindOf(err error) (Kind, bool) {
	var e *Error
	if goerrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// RealtimeOverrunWarning reports that real-time pacing fell behind wall-clock time by more than the
// allowed slack. It is never returned as a fatal error.
type RealtimeOverrunWarning struct {
	// SimTime is the simulated time of the event that ran late
	SimTime time.Duration
	// Lag is how far behind wall-clock time the event ran
	Lag time.Duration
	// Slack is the tolerated lag
	Slack time.Duration
}

func (w *RealtimeOverrunWarning) Error() string {
	return fmt.Sprintf("realtime overrun at %s: %s behind wall-clock (slack %s)", w.SimTime, w.Lag, w.Slack)
}
