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

package filtercheck

import (
	"fmt"
	"math"
	"strconv"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

// Field describes a field exported by a plugin.
type Field struct {
	Name        string
	Description string
	// Display is an optional human-readable name used when formatting
	Display     string
	Type        uint32
	ArgRequired bool
	Properties  []string
}

// FieldsFromEntries converts the field entries declared by a plugin into
// field descriptors. The index of each field is preserved, as it is used
// as field id during extraction.
func FieldsFromEntries(entries []sdk.FieldEntry) []Field {
	fields := make([]Field, len(entries))
	for i, e := range entries {
		fields[i] = Field{
			Name:        e.Name,
			Description: e.Desc,
			Display:     e.Display,
			Type:        e.ParamType(),
			ArgRequired: e.ArgRequired,
			Properties:  append([]string{}, e.Properties...),
		}
	}
	return fields
}

// TypeName returns the name used in the plugin field schema for the
// given param type.
func TypeName(t uint32) string {
	switch t {
	case sdk.ParamTypeCharBuf:
		return "string"
	case sdk.ParamTypeUint64:
		return "uint64"
	case sdk.ParamTypeInt64:
		return "int64"
	case sdk.ParamTypeDouble:
		return "float"
	default:
		return "unknown"
	}
}

// Value is the typed result of a field extraction.
type Value struct {
	Type uint32
	str  string
	u64  uint64
}

// StringValue returns a value of a string field.
func StringValue(s string) Value {
	return Value{Type: sdk.ParamTypeCharBuf, str: s}
}

// RawValue returns a value of a numeric field from the 64 bits returned
// by plugin_extract_u64. Int64 fields reinterpret the bits as a signed
// integer, float fields as an IEEE-754 double.
func RawValue(t uint32, raw uint64) Value {
	return Value{Type: t, u64: raw}
}

// Raw returns the 64 bits of a numeric value.
func (v Value) Raw() uint64 {
	return v.u64
}

// Uint64 returns the value of an uint64 field.
func (v Value) Uint64() uint64 {
	return v.u64
}

// Int64 returns the value of an int64 field.
func (v Value) Int64() int64 {
	return int64(v.u64)
}

// Float64 returns the value of a float field.
func (v Value) Float64() float64 {
	return math.Float64frombits(v.u64)
}

// Str returns the value of a string field.
func (v Value) Str() string {
	return v.str
}

// Interface returns the value as a string, uint64, int64 or float64
// depending on its type.
func (v Value) Interface() interface{} {
	switch v.Type {
	case sdk.ParamTypeCharBuf:
		return v.str
	case sdk.ParamTypeInt64:
		return v.Int64()
	case sdk.ParamTypeDouble:
		return v.Float64()
	default:
		return v.u64
	}
}

// String formats the value for display.
func (v Value) String() string {
	switch v.Type {
	case sdk.ParamTypeCharBuf:
		return v.str
	case sdk.ParamTypeUint64:
		return strconv.FormatUint(v.u64, 10)
	case sdk.ParamTypeInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case sdk.ParamTypeDouble:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	default:
		return fmt.Sprintf("<unknown type %d>", v.Type)
	}
}
