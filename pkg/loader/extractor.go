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

// Extractor contains the operations specific to the field extraction
// role of a plugin. The extraction functions themselves are available on
// Plugin, since source plugins can export fields too.
type Extractor struct {
	p *Plugin
}

// Plugin returns the plugin owning this extractor.
func (e *Extractor) Plugin() *Plugin {
	return e.p
}

// ExtractEventSources returns the names of the event sources the plugin
// can extract fields from. An empty list means that the plugin is
// compatible with all event sources.
func (e *Extractor) ExtractEventSources() []string {
	return append([]string{}, e.p.info.ExtractEventSources...)
}

// Compatible returns true if the plugin can extract fields from events of
// the given event source.
func (e *Extractor) Compatible(source string) bool {
	if len(e.p.info.ExtractEventSources) == 0 {
		return true
	}
	for _, s := range e.p.info.ExtractEventSources {
		if s == source {
			return true
		}
	}
	return false
}
