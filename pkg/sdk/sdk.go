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

package sdk

import (
	"errors"
	"fmt"
)

// Functions that return or update a rc (e.g. plugin_init,
// plugin_open) return one of these values.
const (
	SSPluginSuccess         int32 = 0
	SSPluginFailure         int32 = 1
	SSPluginTimeout         int32 = -1
	SSPluginIllegalInput    int32 = 3
	SSPluginNotFound        int32 = 4
	SSPluginInputTooSmall   int32 = 5
	SSPluginEOF             int32 = 6
	SSPluginUnexpectedBlock int32 = 7
	SSPluginVersionMismatch int32 = 8
	SSPluginNotSupported    int32 = 9
)

// One of these values is returned by plugin_get_type().
const (
	TypeSourcePlugin    uint32 = 1
	TypeExtractorPlugin uint32 = 2
)

// The set of param types that can be declared by plugin fields. Only
// the types that can be produced by plugin_extract_str and
// plugin_extract_u64 are listed here.
const (
	ParamTypeNone    uint32 = 0
	ParamTypeInt64   uint32 = 4
	ParamTypeUint64  uint32 = 8
	ParamTypeCharBuf uint32 = 9  // A printable buffer of bytes, NULL terminated
	ParamTypeDouble  uint32 = 33 // this is a double precision floating point number.
)

// One of these values is set by plugin_get_init_schema() to describe
// the format of the returned schema.
const (
	SchemaTypeNone uint32 = 0
	SchemaTypeJSON uint32 = 1
)

// The data payload returned by a call to plugin_next/plugin_next_batch
// is not expected to be larger than this.
const MaxEvtSize uint32 = 65635

var (
	// ErrEOF is returned when a plugin event source reaches its end.
	// This is not a failure, the capture session is over.
	ErrEOF = errors.New("eof")
	//
	// ErrTimeout is returned when a plugin event source has no event
	// ready yet. Callers should simply retry.
	ErrTimeout = errors.New("timeout")
	//
	// ErrNotSupported is returned when a plugin does not support the
	// requested operation.
	ErrNotSupported = errors.New("not supported")
)

// State is the opaque pointer returned by plugin_init. The zero value
// represents a null pointer.
type State uintptr

// Instance is the opaque pointer returned by plugin_open. The zero value
// represents a null pointer.
type Instance uintptr

// TypeName returns a human-readable name for a plugin type.
func TypeName(t uint32) string {
	switch t {
	case TypeSourcePlugin:
		return "source plugin"
	case TypeExtractorPlugin:
		return "extractor plugin"
	default:
		return fmt.Sprintf("unknown plugin type %d", t)
	}
}

// RCName returns a human-readable name for a return code.
func RCName(rc int32) string {
	switch rc {
	case SSPluginSuccess:
		return "success"
	case SSPluginFailure:
		return "failure"
	case SSPluginTimeout:
		return "timeout"
	case SSPluginIllegalInput:
		return "illegal input"
	case SSPluginNotFound:
		return "not found"
	case SSPluginInputTooSmall:
		return "input too small"
	case SSPluginEOF:
		return "eof"
	case SSPluginUnexpectedBlock:
		return "unexpected block"
	case SSPluginVersionMismatch:
		return "version mismatch"
	case SSPluginNotSupported:
		return "not supported"
	default:
		return fmt.Sprintf("rc %d", rc)
	}
}

// FieldEntry represents a single field entry that a plugin exposes
// through plugin_get_fields().
type FieldEntry struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	ArgRequired bool     `json:"argRequired"`
	Display     string   `json:"display"`
	Desc        string   `json:"desc"`
	Properties  []string `json:"properties"`
}

// ParamType returns the param type corresponding to the declared
// field type, or ParamTypeNone if the type is not supported.
func (f *FieldEntry) ParamType() uint32 {
	return FieldParamType(f.Type)
}

// FieldParamType maps the type names used in the fields JSON schema
// to param types.
func FieldParamType(t string) uint32 {
	switch t {
	case "string":
		return ParamTypeCharBuf
	case "uint64":
		return ParamTypeUint64
	case "int64":
		return ParamTypeInt64
	case "float":
		return ParamTypeDouble
	default:
		return ParamTypeNone
	}
}
