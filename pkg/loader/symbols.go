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
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

// Names of the symbols that a plugin shared library can export.
const (
	SymGetRequiredAPIVersion   = "plugin_get_required_api_version"
	SymGetType                 = "plugin_get_type"
	SymGetID                   = "plugin_get_id"
	SymGetName                 = "plugin_get_name"
	SymGetDescription          = "plugin_get_description"
	SymGetContact              = "plugin_get_contact"
	SymGetVersion              = "plugin_get_version"
	SymGetLastError            = "plugin_get_last_error"
	SymGetEventSource          = "plugin_get_event_source"
	SymGetExtractEventSources  = "plugin_get_extract_event_sources"
	SymGetFields               = "plugin_get_fields"
	SymGetInitSchema           = "plugin_get_init_schema"
	SymInit                    = "plugin_init"
	SymDestroy                 = "plugin_destroy"
	SymOpen                    = "plugin_open"
	SymClose                   = "plugin_close"
	SymNext                    = "plugin_next"
	SymNextBatch               = "plugin_next_batch"
	SymGetProgress             = "plugin_get_progress"
	SymEventToString           = "plugin_event_to_string"
	SymExtractStr              = "plugin_extract_str"
	SymExtractU64              = "plugin_extract_u64"
	SymRegisterAsyncExtractor  = "plugin_register_async_extractor"
)

// Typed entry points of the plugin API. A Library resolves each symbol
// into the Go function type matching its C signature. Strings returned by
// these functions are owned by the Go runtime: the underlying plugin
// allocations have already been released.
type (
	// StringInfoFunc is the signature of get_name, get_description,
	// get_contact, get_version, get_required_api_version, get_event_source,
	// get_fields and get_extract_event_sources.
	StringInfoFunc func() string
	//
	// U32InfoFunc is the signature of get_type and get_id.
	U32InfoFunc func() uint32
	//
	// InitSchemaFunc is the signature of get_init_schema.
	InitSchemaFunc func() (schema string, schemaType uint32)
	//
	// InitFunc is the signature of init.
	InitFunc func(config string) (sdk.State, int32)
	//
	// DestroyFunc is the signature of destroy.
	DestroyFunc func(s sdk.State)
	//
	// LastErrorFunc is the signature of get_last_error.
	LastErrorFunc func(s sdk.State) string
	//
	// OpenFunc is the signature of open.
	OpenFunc func(s sdk.State, params string) (sdk.Instance, int32)
	//
	// CloseFunc is the signature of close.
	CloseFunc func(s sdk.State, i sdk.Instance)
	//
	// NextFunc is the signature of next.
	NextFunc func(s sdk.State, i sdk.Instance) (sdk.Event, int32)
	//
	// NextBatchFunc is the signature of next_batch. The returned events
	// are appended to dst.
	NextBatchFunc func(s sdk.State, i sdk.Instance, dst []sdk.Event) ([]sdk.Event, int32)
	//
	// ProgressFunc is the signature of get_progress.
	ProgressFunc func(s sdk.State, i sdk.Instance) (string, uint32)
	//
	// EventToStringFunc is the signature of event_to_string.
	EventToStringFunc func(s sdk.State, data []byte) string
	//
	// ExtractStrFunc is the signature of extract_str. The bool result is
	// false if the plugin returned a null string.
	ExtractStrFunc func(s sdk.State, evtNum uint64, fieldID uint32, arg string, data []byte) (string, bool)
	//
	// ExtractU64Func is the signature of extract_u64. The bool result is
	// the field presence flag set by the plugin.
	ExtractU64Func func(s sdk.State, evtNum uint64, fieldID uint32, arg string, data []byte) (uint64, bool)
	//
	// RegisterAsyncExtractorFunc is the signature of register_async_extractor.
	RegisterAsyncExtractorFunc func(s sdk.State, ch sdk.AsyncChannel) int32
)

// symbolRequirement describes the symbols of one role of the plugin API.
type symbolRequirement struct {
	required []string
	optional []string
}

var (
	// required for any plugin, resolved before the type is known
	commonSymbols = symbolRequirement{
		required: []string{
			SymGetName,
			SymGetDescription,
			SymGetContact,
			SymGetVersion,
			SymGetLastError,
			SymGetType,
		},
		optional: []string{
			SymGetInitSchema,
		},
	}

	sourceSymbols = symbolRequirement{
		required: []string{
			SymGetID,
			SymGetEventSource,
			SymInit,
			SymDestroy,
			SymOpen,
			SymClose,
			SymNext,
			SymEventToString,
		},
		optional: []string{
			SymGetFields,
			SymGetProgress,
			SymNextBatch,
			SymExtractStr,
			SymExtractU64,
			SymRegisterAsyncExtractor,
		},
	}

	extractorSymbols = symbolRequirement{
		required: []string{
			SymInit,
			SymDestroy,
			SymGetFields,
			SymExtractStr,
			SymExtractU64,
		},
		optional: []string{
			SymGetExtractEventSources,
			SymRegisterAsyncExtractor,
		},
	}
)

// symbols is the resolved function table of a plugin. A nil entry means
// that the symbol is not exported by the plugin, which is only possible
// for optional symbols.
type symbols struct {
	getRequiredAPIVersion  StringInfoFunc
	getType                U32InfoFunc
	getID                  U32InfoFunc
	getName                StringInfoFunc
	getDescription         StringInfoFunc
	getContact             StringInfoFunc
	getVersion             StringInfoFunc
	getLastError           LastErrorFunc
	getEventSource         StringInfoFunc
	getExtractEventSources StringInfoFunc
	getFields              StringInfoFunc
	getInitSchema          InitSchemaFunc
	init                   InitFunc
	destroy                DestroyFunc
	open                   OpenFunc
	close                  CloseFunc
	next                   NextFunc
	nextBatch              NextBatchFunc
	getProgress            ProgressFunc
	eventToString          EventToStringFunc
	extractStr             ExtractStrFunc
	extractU64             ExtractU64Func
	registerAsyncExtractor RegisterAsyncExtractorFunc
}

// bind stores a resolved entry point in the table. It returns false if
// the entry point does not have the type expected for the symbol.
func (s *symbols) bind(name string, fn interface{}) bool {
	var ok bool
	switch name {
	case SymGetRequiredAPIVersion:
		s.getRequiredAPIVersion, ok = fn.(StringInfoFunc)
	case SymGetType:
		s.getType, ok = fn.(U32InfoFunc)
	case SymGetID:
		s.getID, ok = fn.(U32InfoFunc)
	case SymGetName:
		s.getName, ok = fn.(StringInfoFunc)
	case SymGetDescription:
		s.getDescription, ok = fn.(StringInfoFunc)
	case SymGetContact:
		s.getContact, ok = fn.(StringInfoFunc)
	case SymGetVersion:
		s.getVersion, ok = fn.(StringInfoFunc)
	case SymGetLastError:
		s.getLastError, ok = fn.(LastErrorFunc)
	case SymGetEventSource:
		s.getEventSource, ok = fn.(StringInfoFunc)
	case SymGetExtractEventSources:
		s.getExtractEventSources, ok = fn.(StringInfoFunc)
	case SymGetFields:
		s.getFields, ok = fn.(StringInfoFunc)
	case SymGetInitSchema:
		s.getInitSchema, ok = fn.(InitSchemaFunc)
	case SymInit:
		s.init, ok = fn.(InitFunc)
	case SymDestroy:
		s.destroy, ok = fn.(DestroyFunc)
	case SymOpen:
		s.open, ok = fn.(OpenFunc)
	case SymClose:
		s.close, ok = fn.(CloseFunc)
	case SymNext:
		s.next, ok = fn.(NextFunc)
	case SymNextBatch:
		s.nextBatch, ok = fn.(NextBatchFunc)
	case SymGetProgress:
		s.getProgress, ok = fn.(ProgressFunc)
	case SymEventToString:
		s.eventToString, ok = fn.(EventToStringFunc)
	case SymExtractStr:
		s.extractStr, ok = fn.(ExtractStrFunc)
	case SymExtractU64:
		s.extractU64, ok = fn.(ExtractU64Func)
	case SymRegisterAsyncExtractor:
		s.registerAsyncExtractor, ok = fn.(RegisterAsyncExtractorFunc)
	}
	return ok
}

// resolve looks up all the symbols of a requirement set. Resolution of
// the required symbols is all-or-nothing: the first missing one makes the
// whole set fail. Missing optional symbols are left nil.
func (s *symbols) resolve(lib Library, req symbolRequirement) error {
	resolved := *s
	for _, name := range req.required {
		fn, err := lib.Lookup(name)
		if err != nil {
			return &LoadError{Path: lib.Path(), Symbol: name, Err: err}
		}
		if !resolved.bind(name, fn) {
			return &LoadError{Path: lib.Path(), Symbol: name, Err: errBadSignature}
		}
	}
	for _, name := range req.optional {
		fn, err := lib.Lookup(name)
		if err != nil {
			continue
		}
		if !resolved.bind(name, fn) {
			return &LoadError{Path: lib.Path(), Symbol: name, Err: errBadSignature}
		}
	}
	*s = resolved
	return nil
}
