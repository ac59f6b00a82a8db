// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The Falco Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package loader

import (
	"errors"
	"fmt"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

var (
	// ErrSymbolNotFound is returned by Library.Lookup when the shared
	// library does not export the requested symbol.
	ErrSymbolNotFound = errors.New("symbol not present")
	//
	// ErrNotInitialized is returned when using a plugin before a
	// successful Init, or after Destroy.
	ErrNotInitialized = errors.New("plugin is not initialized")
	//
	// ErrAlreadyInitialized is returned when calling Init twice.
	ErrAlreadyInitialized = errors.New("plugin is already initialized")
	//
	// ErrDestroyed is returned when calling Init on a destroyed plugin.
	ErrDestroyed = errors.New("plugin has been destroyed")
	//
	// ErrNotOpen is returned when streaming from a source with no open
	// instance.
	ErrNotOpen = errors.New("plugin not open()ed")
	//
	// ErrAlreadyOpen is returned when opening a source that already has
	// an open instance.
	ErrAlreadyOpen = errors.New("plugin instance is already open")
	//
	// ErrNoCapability is returned when invoking an optional capability
	// that the plugin does not export.
	ErrNoCapability = errors.New("plugin does not export the required capability")

	errBadSignature = errors.New("symbol has an unexpected signature")
)

// LoadError is returned when a shared library cannot be opened, or when
// a symbol required by the plugin API cannot be resolved from it.
type LoadError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("error loading plugin %s: dynamic library symbol %s: %s", e.Path, e.Symbol, e.Err.Error())
	}
	return fmt.Sprintf("error loading plugin %s: %s", e.Path, e.Err.Error())
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// VersionError is returned when a plugin declares a version string that
// cannot be parsed, or requires a plugin API version that is not
// supported by the host.
type VersionError struct {
	Path string
	// Field is either "required API version" or "plugin version"
	Field string
	// Value is the version string declared by the plugin
	Value string
	// Supported is the API version supported by the host. Only set for
	// incompatible API versions.
	Supported *sdk.Version
	Err       error
}

func (e *VersionError) Error() string {
	if e.Supported != nil {
		return fmt.Sprintf("plugin %s: unsupported plugin api version %s (required), host supports %s", e.Path, e.Value, e.Supported.String())
	}
	return fmt.Sprintf("plugin %s: could not parse %s from %q: %s", e.Path, e.Field, e.Value, e.Err.Error())
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// ConfigError is returned when a plugin rejects its init configuration.
// Err contains the last error text reported by the plugin.
type ConfigError struct {
	Path   string
	Plugin string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("plugin %s (%s): init failed: %s", e.Plugin, e.Path, e.Err.Error())
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SchemaError is returned when a plugin declares a malformed list of
// fields or extraction event sources.
type SchemaError struct {
	Path   string
	Plugin string
	Symbol string
	// Field is the name of the offending field, if known
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("error in plugin %s (%s): %s: field %s: %s", e.Plugin, e.Path, e.Symbol, e.Field, e.Err.Error())
	}
	return fmt.Sprintf("error in plugin %s (%s): %s: %s", e.Plugin, e.Path, e.Symbol, e.Err.Error())
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// StreamError is returned when a source plugin fails to open an
// instance or to produce events. RC is the status code returned by the
// plugin and Msg its last error text.
type StreamError struct {
	Plugin string
	Op     string
	RC     int32
	Msg    string
}

func (e *StreamError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("plugin %s: %s failed (%s)", e.Plugin, e.Op, sdk.RCName(e.RC))
	}
	return fmt.Sprintf("plugin %s: %s failed (%s): %s", e.Plugin, e.Op, sdk.RCName(e.RC), e.Msg)
}

// rcError maps a non-success return code of a streaming call to an error.
// EOF, timeout and not-supported are reported with their sentinels,
// anything else as a *StreamError.
func rcError(plugin, op string, rc int32, lastErr func() string) error {
	switch rc {
	case sdk.SSPluginSuccess:
		return nil
	case sdk.SSPluginEOF:
		return sdk.ErrEOF
	case sdk.SSPluginTimeout:
		return sdk.ErrTimeout
	case sdk.SSPluginNotSupported:
		return sdk.ErrNotSupported
	default:
		return &StreamError{Plugin: plugin, Op: op, RC: rc, Msg: lastErr()}
	}
}
