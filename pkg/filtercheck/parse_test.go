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
	"math"
	"testing"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/stretchr/testify/assert"
)

var testFields = []Field{
	{Name: "foo", Type: sdk.ParamTypeCharBuf},
	{Name: "foo.bar", Type: sdk.ParamTypeUint64},
	{Name: "foo.barbaz", Type: sdk.ParamTypeCharBuf, ArgRequired: true},
}

func TestParseFieldName(t *testing.T) {
	tests := []struct {
		str    string
		ok     bool
		id     uint32
		arg    string
		hasArg bool
		len    int
	}{
		{str: "foo", ok: true, id: 0, len: 3},
		{str: "foo[bar]", ok: true, id: 0, arg: "bar", hasArg: true, len: 8},
		{str: "foo[bar", ok: true, id: 0, len: 3},
		{str: "foo[]", ok: true, id: 0, arg: "", hasArg: true, len: 5},
		{str: "foo.bar", ok: true, id: 1, len: 7},
		{str: "foo.barbaz[x y]", ok: true, id: 2, arg: "x y", hasArg: true, len: 15},
		{str: "foo.bar[1] = 2", ok: true, id: 1, arg: "1", hasArg: true, len: 10},
		{str: "foo.bar = 2", ok: true, id: 1, len: 7},
		{str: "foo.bar[a]b]", ok: true, id: 1, arg: "a", hasArg: true, len: 10},
		{str: "fo", ok: false},
		{str: "", ok: false},
		{str: "bar.foo", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			ref, ok := ParseFieldName(tt.str, testFields)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.id, ref.FieldID)
			assert.Equal(t, testFields[tt.id].Name, ref.Name)
			assert.Equal(t, tt.arg, ref.Arg)
			assert.Equal(t, tt.hasArg, ref.HasArg)
			assert.Equal(t, tt.len, ref.Len)
		})
	}
}

func TestRefString(t *testing.T) {
	ref, ok := ParseFieldName("foo.bar[k]", testFields)
	assert.True(t, ok)
	assert.Equal(t, "foo.bar[k]", ref.String())
	ref, ok = ParseFieldName("foo.bar[k", testFields)
	assert.True(t, ok)
	assert.Equal(t, "foo.bar", ref.String())
}

func TestValue(t *testing.T) {
	v := StringValue("hello")
	assert.Equal(t, "hello", v.String())
	assert.Equal(t, "hello", v.Interface())

	v = RawValue(sdk.ParamTypeUint64, 42)
	assert.Equal(t, "42", v.String())
	assert.Equal(t, uint64(42), v.Interface())

	neg := int64(-7)
	v = RawValue(sdk.ParamTypeInt64, uint64(neg))
	assert.Equal(t, int64(-7), v.Int64())
	assert.Equal(t, "-7", v.String())
	assert.Equal(t, int64(-7), v.Interface())

	v = RawValue(sdk.ParamTypeDouble, math.Float64bits(2.5))
	assert.Equal(t, 2.5, v.Float64())
	assert.Equal(t, "2.5", v.String())
	assert.Equal(t, 2.5, v.Interface())
	assert.Equal(t, math.Float64bits(2.5), v.Raw())
}

func TestFieldsFromEntries(t *testing.T) {
	fields := FieldsFromEntries([]sdk.FieldEntry{
		{Type: "string", Name: "a.b", Desc: "desc", Display: "A B", ArgRequired: true, Properties: []string{"hidden"}},
		{Type: "float", Name: "a.c", Desc: "other"},
	})
	assert.Equal(t, []Field{
		{Name: "a.b", Description: "desc", Display: "A B", Type: sdk.ParamTypeCharBuf, ArgRequired: true, Properties: []string{"hidden"}},
		{Name: "a.c", Description: "other", Type: sdk.ParamTypeDouble, Properties: []string{}},
	}, fields)
	assert.Equal(t, "string", TypeName(fields[0].Type))
	assert.Equal(t, "float", TypeName(fields[1].Type))
}
