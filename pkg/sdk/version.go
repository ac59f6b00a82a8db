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
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a version string is not in the
// major.minor.patch form.
var ErrInvalidVersion = errors.New("invalid version string")

// APIVersion is the version of the plugin API supported by this host.
var APIVersion = Version{Major: 0, Minor: 2, Patch: 0}

// Version is a major.minor.patch triple, as declared by plugins for both
// the required plugin API version and their own version.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// ParseVersion parses a major.minor.patch version string. Each component
// must be an unsigned decimal integer that fits 32 bits. No partial result
// is returned on failure.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	var nums [3]uint32
	for i, p := range parts {
		// ParseUint also accepts a leading "+", which is not a version
		if len(p) == 0 || p[0] < '0' || p[0] > '9' {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = uint32(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String formats the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CompatibleWith returns true if a plugin requiring version v can be
// served by a host supporting version host. The major versions must be
// equal, and the required minor must not be greater than the host one.
// Patch versions are never considered.
func (v Version) CompatibleWith(host Version) bool {
	return v.Major == host.Major && v.Minor <= host.Minor
}
