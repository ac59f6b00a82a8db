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

package cgo

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoHandles is returned by NewHandle when all the handles are in use.
var ErrNoHandles = errors.New("plugin-host-go/cgo: no more handles available")

// Handle is an integer token representing a Go value that is passed
// through C code as an opaque context pointer, such as the wait context
// of an asynchronous extractor. C code hands the token back to Go, which
// resolves it with Value.
//
// Unlike the handles used inside plugins, host handles are resolved from
// threads owned by plugins, so the table is safe for concurrent use.
// The zero value of a Handle is never valid and can be used as a
// sentinel in C APIs.
type Handle uintptr

// MaxHandle is the largest value that a Handle can hold. Host handles are
// only needed for a few values per loaded plugin.
const MaxHandle = 1024 - 1

var (
	mu      sync.RWMutex
	handles [MaxHandle + 1]interface{}
	used    [MaxHandle + 1]bool
	next    = 1
)

// NewHandle returns a handle for a given value. The handle is valid until
// Delete is called on it.
func NewHandle(v interface{}) (Handle, error) {
	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < MaxHandle; i++ {
		h := next
		next++
		if next > MaxHandle {
			next = 1
		}
		if !used[h] {
			used[h] = true
			handles[h] = v
			return Handle(h), nil
		}
	}
	return 0, ErrNoHandles
}

// Value returns the associated Go value for a valid handle.
//
// The method panics if the handle is invalid.
func (h Handle) Value() interface{} {
	mu.RLock()
	defer mu.RUnlock()
	if h == 0 || h > MaxHandle || !used[h] {
		panic(fmt.Sprintf("plugin-host-go/cgo: misuse (value) of an invalid Handle %d", h))
	}
	return handles[h]
}

// Delete invalidates a handle. This must only be called once C code no
// longer holds a copy of the handle value.
//
// The method panics if the handle is invalid.
func (h Handle) Delete() {
	mu.Lock()
	defer mu.Unlock()
	if h == 0 || h > MaxHandle || !used[h] {
		panic(fmt.Sprintf("plugin-host-go/cgo: misuse (delete) of an invalid Handle %d", h))
	}
	used[h] = false
	handles[h] = nil
}

func inUse() int {
	mu.RLock()
	defer mu.RUnlock()
	n := 0
	for _, u := range used {
		if u {
			n++
		}
	}
	return n
}
