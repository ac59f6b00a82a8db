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

	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

// FieldExtractor extracts the value of a plugin field from the payload of
// an event. The boolean is false if the field has no value for the event.
type FieldExtractor interface {
	Extract(evtNum uint64, fieldID uint32, arg string, data []byte) (Value, bool, error)
}

// SourceResolver maps the id of a source plugin to the name of its event
// source.
type SourceResolver interface {
	SourceName(id uint32) (string, bool)
}

// PluginCheck bridges the fields of a plugin to the filter evaluation
// layer.
type PluginCheck struct {
	name      string
	plugin    string
	kind      uint32
	id        uint32
	sources   []string
	fields    []Field
	extractor FieldExtractor
	resolver  SourceResolver
}

// NewPluginCheck returns the check of the given plugin. Extraction is
// delegated to ext. The resolver is used to check the event source of
// the events passed to extractor plugins, and can be nil for source
// plugins.
func NewPluginCheck(p *loader.Plugin, ext FieldExtractor, resolver SourceResolver) *PluginCheck {
	info := p.Info()
	return &PluginCheck{
		name:      info.Name + " (plugin)",
		plugin:    info.Name,
		kind:      info.Type,
		id:        info.ID,
		sources:   info.ExtractEventSources,
		fields:    FieldsFromEntries(p.Fields()),
		extractor: ext,
		resolver:  resolver,
	}
}

// Name returns the name of the check, in the "<plugin> (plugin)" form.
func (c *PluginCheck) Name() string {
	return c.name
}

// Plugin returns the name of the plugin of the check.
func (c *PluginCheck) Plugin() string {
	return c.plugin
}

// Fields returns the fields of the check.
func (c *PluginCheck) Fields() []Field {
	return c.fields
}

// ParseFieldName parses a field reference against the fields of the
// check.
func (c *PluginCheck) ParseFieldName(str string) (Ref, bool) {
	return ParseFieldName(str, c.fields)
}

// Accepts returns true if the plugin can extract fields from the event.
// Events not produced by a plugin are rejected. Source plugins only accept
// the events they produced, and extractor plugins only accept the events
// of their declared event sources.
func (c *PluginCheck) Accepts(evt *sdk.Envelope) bool {
	if !evt.IsPlugin() {
		return false
	}
	switch c.kind {
	case sdk.TypeSourcePlugin:
		return evt.SourceID == c.id
	case sdk.TypeExtractorPlugin:
		if len(c.sources) == 0 {
			return true
		}
		if c.resolver == nil {
			return false
		}
		name, ok := c.resolver.SourceName(evt.SourceID)
		if !ok {
			return false
		}
		for _, s := range c.sources {
			if s == name {
				return true
			}
		}
	}
	return false
}

// Extract returns the value of a field for the given event. The boolean
// is false if the event is not accepted by the check, if the field has no
// value, or if the field requires an argument and none is provided.
func (c *PluginCheck) Extract(evt *sdk.Envelope, fieldID uint32, arg string) (Value, bool, error) {
	if int(fieldID) >= len(c.fields) {
		return Value{}, false, fmt.Errorf("plugin %s: unknown field id %d", c.plugin, fieldID)
	}
	if !c.Accepts(evt) {
		return Value{}, false, nil
	}
	if c.fields[fieldID].ArgRequired && len(arg) == 0 {
		return Value{}, false, nil
	}
	return c.extractor.Extract(evt.Num, fieldID, arg, evt.Data)
}

// ExtractRef is the same as Extract, for a parsed field reference.
func (c *PluginCheck) ExtractRef(evt *sdk.Envelope, ref Ref) (Value, bool, error) {
	return c.Extract(evt, ref.FieldID, ref.Arg)
}
