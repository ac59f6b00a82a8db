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

// Event is a non-owning view over an event produced by a source plugin.
// Data points to memory owned by the plugin instance that produced the
// event and is only valid until the next call to plugin_next or
// plugin_next_batch on the same instance, or until the instance is
// closed. Consumers must copy Data if they need to retain it.
type Event struct {
	Data      []byte
	Timestamp uint64
}

// EventKind identifies the family of producers that generated an
// engine event.
type EventKind uint8

const (
	// KindUnknown is used for events of no known producer.
	KindUnknown EventKind = iota
	// KindSyscall is used for events produced by kernel capture or
	// file replay.
	KindSyscall
	// KindPlugin is used for events produced by a source plugin.
	KindPlugin
)

// Envelope is the engine-side representation of an event. Events
// produced by a source plugin carry the id of that plugin, which is
// used to route field extraction requests.
type Envelope struct {
	// Num is the event number assigned by the engine
	Num uint64
	//
	// Kind is the family of producers that generated this event
	Kind EventKind
	//
	// SourceID is the id of the source plugin that produced the event.
	// Only meaningful when Kind is KindPlugin.
	SourceID uint32
	//
	// Event is the payload view of the event
	Event
}

// IsPlugin returns true if the envelope wraps a plugin event.
func (e *Envelope) IsPlugin() bool {
	return e != nil && e.Kind == KindPlugin
}
