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
	"math/rand"
	"testing"
)

func TestParseVersionRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		v := Version{Major: r.Uint32(), Minor: r.Uint32() % 100, Patch: r.Uint32() % 1000}
		p, err := ParseVersion(v.String())
		if err != nil {
			t.Fatalf("unexpected error for %q: %s", v.String(), err)
		}
		if p != v {
			t.Fatalf("round trip mismatch: expected %v, got %v", v, p)
		}
	}
}

func TestParseVersionInvalid(t *testing.T) {
	invalid := []string{
		"",
		"1",
		"1.2",
		"1.2.3.4",
		"1..3",
		"a.b.c",
		"1.2.x",
		"-1.2.3",
		"+1.2.3",
		"1.2.3 ",
		" 1.2.3",
		"1.2.3-rc1",
		"4294967296.0.0",
	}
	for _, s := range invalid {
		v, err := ParseVersion(s)
		if err == nil {
			t.Fatalf("expected error for %q, got %v", s, v)
		}
		if !errors.Is(err, ErrInvalidVersion) {
			t.Fatalf("expected ErrInvalidVersion for %q, got %s", s, err)
		}
		if v != (Version{}) {
			t.Fatalf("expected zero version for %q, got %v", s, v)
		}
	}
}

func TestVersionCompatibleWith(t *testing.T) {
	host := Version{Major: 3, Minor: 4, Patch: 1}
	for minor := uint32(0); minor <= 10; minor++ {
		for _, patch := range []uint32{0, 1, 99} {
			v := Version{Major: host.Major, Minor: minor, Patch: patch}
			expected := minor <= host.Minor
			if v.CompatibleWith(host) != expected {
				t.Fatalf("%s against host %s: expected compatible=%v", v, host, expected)
			}
		}
	}
	for _, major := range []uint32{0, 2, 4, 100} {
		v := Version{Major: major, Minor: 0, Patch: 0}
		if v.CompatibleWith(host) {
			t.Fatalf("%s must not be compatible with host %s", v, host)
		}
	}
}
