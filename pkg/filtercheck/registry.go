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
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownField is returned when a field reference does not match
	// any registered field.
	ErrUnknownField = errors.New("unknown field")
	//
	// ErrDuplicateCheck is returned when registering two checks with the
	// same name.
	ErrDuplicateCheck = errors.New("check already registered")
)

// Registry holds the plugin checks known to an engine instance.
type Registry struct {
	m      sync.RWMutex
	checks []*PluginCheck
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a check to the registry.
func (r *Registry) Register(c *PluginCheck) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, cur := range r.checks {
		if cur.name == c.name {
			return fmt.Errorf("%w: %s", ErrDuplicateCheck, c.name)
		}
	}
	r.checks = append(r.checks, c)
	return nil
}

// Unregister removes the check with the given name. It returns false if
// no such check is registered.
func (r *Registry) Unregister(name string) bool {
	r.m.Lock()
	defer r.m.Unlock()
	for i, c := range r.checks {
		if c.name == name {
			r.checks = append(r.checks[:i], r.checks[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the check with the given name.
func (r *Registry) Get(name string) (*PluginCheck, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, c := range r.checks {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// List returns the registered checks in registration order.
func (r *Registry) List() []*PluginCheck {
	r.m.RLock()
	defer r.m.RUnlock()
	return append([]*PluginCheck{}, r.checks...)
}

// Resolve parses a full field reference, such as "foo.bar[arg]", and
// returns the check exporting the field. The longest match among all the
// checks is chosen, and ties are resolved in registration order. The
// reference must be consumed entirely.
func (r *Registry) Resolve(field string) (*PluginCheck, Ref, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var best *PluginCheck
	var bestRef Ref
	for _, c := range r.checks {
		ref, ok := c.ParseFieldName(field)
		if !ok || ref.Len != len(field) {
			continue
		}
		if best == nil || len(ref.Name) > len(bestRef.Name) {
			best = c
			bestRef = ref
		}
	}
	if best == nil {
		return nil, Ref{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return best, bestRef, nil
}
