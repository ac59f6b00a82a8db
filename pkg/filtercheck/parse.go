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

import "strings"

// Ref is a parsed reference to a plugin field, such as "foo.bar" or
// "foo.bar[arg]".
type Ref struct {
	// FieldID is the index of the field in the field list
	FieldID uint32
	Name    string
	Arg     string
	HasArg  bool
	// Len is the number of bytes of the parsed string consumed by the
	// reference, including the argument brackets
	Len int
}

// ParseFieldName parses a field reference at the beginning of str. The
// longest field name that prefixes str is matched. A bracketed argument
// directly following the name is parsed too, while an unterminated
// bracket is not considered an argument. It returns false if no field
// name matches.
func ParseFieldName(str string, fields []Field) (Ref, bool) {
	var ref Ref
	found := false
	for i, f := range fields {
		if len(f.Name) > len(ref.Name) && strings.HasPrefix(str, f.Name) {
			ref = Ref{FieldID: uint32(i), Name: f.Name, Len: len(f.Name)}
			found = true
		}
	}
	if !found {
		return ref, false
	}

	rest := str[ref.Len:]
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end > 0 {
			ref.Arg = rest[1:end]
			ref.HasArg = true
			ref.Len += end + 1
		}
	}
	return ref, true
}

// String formats the reference back to its textual form.
func (r Ref) String() string {
	if r.HasArg {
		return r.Name + "[" + r.Arg + "]"
	}
	return r.Name
}
