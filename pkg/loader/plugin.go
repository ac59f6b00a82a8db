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
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/sirupsen/logrus"
)

// Info contains the static metadata of a plugin.
type Info struct {
	Type                uint32
	Name                string
	Description         string
	Contact             string
	Version             string
	RequiredAPIVersion  string
	ID                  uint32
	EventSource         string
	ExtractEventSources []string
}

type status int

const (
	statusLoaded status = iota
	statusInitialized
	statusDestroyed
)

// Plugin represents a Falcosecurity plugin loaded from a shared library.
//
// A Plugin starts in the loaded state. It transitions to the initialized
// state with a successful Init, and to the destroyed state with Destroy.
// Static metadata is available in any state, while all the operations
// involving the plugin state require an initialized plugin.
type Plugin struct {
	// m protects status and hooks. Calls into the plugin hold a read
	// lock, so that destroy never runs concurrently with them.
	m          sync.RWMutex
	status     status
	unloaded   bool
	lib        Library
	syms       symbols
	log        logrus.FieldLogger
	state      sdk.State
	info       Info
	initSchema *InitSchema
	fields     []sdk.FieldEntry
	hooks      []func()
	source     *Source
	extractor  *Extractor
}

// Path returns the path of the shared library of the plugin.
func (p *Plugin) Path() string {
	return p.lib.Path()
}

// Name returns the name of the plugin.
func (p *Plugin) Name() string {
	return p.info.Name
}

// Kind returns the type of the plugin, either sdk.TypeSourcePlugin or
// sdk.TypeExtractorPlugin.
func (p *Plugin) Kind() uint32 {
	return p.info.Type
}

// Source returns the event sourcing operations of the plugin. The
// boolean is false if the plugin is not a source plugin.
func (p *Plugin) Source() (*Source, bool) {
	return p.source, p.source != nil
}

// Extractor returns the operations specific to extractor plugins. The
// boolean is false if the plugin is not an extractor plugin.
func (p *Plugin) Extractor() (*Extractor, bool) {
	return p.extractor, p.extractor != nil
}

// Info returns the static metadata of the plugin.
func (p *Plugin) Info() Info {
	info := p.info
	info.ExtractEventSources = append([]string{}, p.info.ExtractEventSources...)
	return info
}

// InitSchema returns the schema of the configuration accepted by Init, or
// nil if the plugin declares none.
func (p *Plugin) InitSchema() *InitSchema {
	return p.initSchema
}

// Fields returns the fields exported by the plugin. The index of a field
// in the returned slice is the field id passed to the extraction
// functions.
func (p *Plugin) Fields() []sdk.FieldEntry {
	return p.fields
}

// Logger returns the logger of the plugin.
func (p *Plugin) Logger() logrus.FieldLogger {
	return p.log
}

// Describe returns a human-readable description of the plugin metadata.
func (p *Plugin) Describe() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Name: %s\n", p.info.Name)
	fmt.Fprintf(&buf, "Description: %s\n", p.info.Description)
	fmt.Fprintf(&buf, "Contact: %s\n", p.info.Contact)
	fmt.Fprintf(&buf, "Version: %s\n", p.info.Version)
	if p.info.Type == sdk.TypeSourcePlugin {
		fmt.Fprintf(&buf, "Type: source plugin\n")
		fmt.Fprintf(&buf, "ID: %d\n", p.info.ID)
	} else {
		fmt.Fprintf(&buf, "Type: extractor plugin\n")
	}
	return buf.String()
}

// Init initializes the plugin with the given configuration. If the plugin
// declares an init schema, the configuration is validated against it
// first. On failure, a *ConfigError is returned and the plugin stays in
// the loaded state.
func (p *Plugin) Init(config string) error {
	p.m.Lock()
	defer p.m.Unlock()
	switch p.status {
	case statusInitialized:
		return ErrAlreadyInitialized
	case statusDestroyed:
		return ErrDestroyed
	}

	config, err := validateInitConfig(p.initSchema, config)
	if err != nil {
		return &ConfigError{
			Path:   p.lib.Path(),
			Plugin: p.info.Name,
			Err:    fmt.Errorf("invalid plugin config: %w", err),
		}
	}

	// a null state is a failure even if the plugin reports success
	state, rc := p.syms.init(config)
	if rc != sdk.SSPluginSuccess || state == 0 {
		err := errors.New("unknown initialization error")
		if state != 0 {
			if msg := p.syms.getLastError(state); len(msg) > 0 {
				err = errors.New(msg)
			}
			p.syms.destroy(state)
		}
		return &ConfigError{Path: p.lib.Path(), Plugin: p.info.Name, Err: err}
	}
	p.state = state
	p.status = statusInitialized
	p.log.Debug("plugin initialized")
	return nil
}

// Initialized returns true if the plugin has been successfully
// initialized and not destroyed yet.
func (p *Plugin) Initialized() bool {
	p.m.RLock()
	defer p.m.RUnlock()
	return p.status == statusInitialized
}

// OnDestroy registers a function that is invoked when the plugin gets
// destroyed, right before calling plugin_destroy. Hooks run in
// registration order. Hooks registered on a plugin that is not
// initialized are ignored.
func (p *Plugin) OnDestroy(fn func()) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.status == statusInitialized {
		p.hooks = append(p.hooks, fn)
	}
}

// Destroy destroys the plugin state. All the destroy hooks are invoked
// first, then the open source instance is closed, if any, and finally
// plugin_destroy is called exactly once. Calling Destroy on a
// plugin that is not initialized has no effect.
func (p *Plugin) Destroy() {
	p.m.Lock()
	if p.status != statusInitialized {
		p.m.Unlock()
		return
	}
	p.status = statusDestroyed
	hooks := p.hooks
	p.hooks = nil
	p.m.Unlock()

	// hooks may need to wait for in-flight calls to complete, so they
	// run without holding the lock
	for _, h := range hooks {
		h()
	}
	if p.source != nil {
		p.source.closeOnDestroy()
	}

	// waits for any in-flight call to release the read lock
	p.m.Lock()
	defer p.m.Unlock()
	p.syms.destroy(p.state)
	p.state = 0
	p.log.Debug("plugin destroyed")
}

// Unload destroys the plugin, if initialized, and closes its shared
// library. Calling Unload more than once has no effect.
func (p *Plugin) Unload() error {
	p.Destroy()
	p.m.Lock()
	defer p.m.Unlock()
	if p.unloaded {
		return nil
	}
	p.unloaded = true
	p.status = statusDestroyed
	p.log.Info("plugin unloaded")
	return p.lib.Close()
}

// acquire returns the plugin state and holds a read lock on the plugin,
// which must be released with release. It fails if the plugin is not
// initialized.
func (p *Plugin) acquire() (sdk.State, error) {
	p.m.RLock()
	if p.status != statusInitialized {
		p.m.RUnlock()
		return 0, ErrNotInitialized
	}
	return p.state, nil
}

func (p *Plugin) release() {
	p.m.RUnlock()
}

// lastError returns the last error reported by the plugin. The caller
// must hold the plugin lock.
func (p *Plugin) lastError(s sdk.State) string {
	return p.syms.getLastError(s)
}

// LastError returns the last error reported by the plugin.
func (p *Plugin) LastError() (string, error) {
	s, err := p.acquire()
	if err != nil {
		return "", err
	}
	defer p.release()
	return p.lastError(s), nil
}

// HasExtractStr returns true if the plugin exports plugin_extract_str.
func (p *Plugin) HasExtractStr() bool {
	return p.syms.extractStr != nil
}

// HasExtractU64 returns true if the plugin exports plugin_extract_u64.
func (p *Plugin) HasExtractU64() bool {
	return p.syms.extractU64 != nil
}

// HasAsyncExtractor returns true if the plugin exports
// plugin_register_async_extractor.
func (p *Plugin) HasAsyncExtractor() bool {
	return p.syms.registerAsyncExtractor != nil
}

// ExtractStr extracts the value of a string field from an event with
// plugin_extract_str. The boolean is false if the field is not present.
func (p *Plugin) ExtractStr(evtNum uint64, fieldID uint32, arg string, data []byte) (string, bool, error) {
	if p.syms.extractStr == nil {
		return "", false, fmt.Errorf("%w: %s", ErrNoCapability, SymExtractStr)
	}
	s, err := p.acquire()
	if err != nil {
		return "", false, err
	}
	defer p.release()
	str, ok := p.syms.extractStr(s, evtNum, fieldID, arg, data)
	return str, ok, nil
}

// ExtractU64 extracts the raw 64-bit value of a numeric field from an
// event with plugin_extract_u64. The boolean is false if the field is not
// present.
func (p *Plugin) ExtractU64(evtNum uint64, fieldID uint32, arg string, data []byte) (uint64, bool, error) {
	if p.syms.extractU64 == nil {
		return 0, false, fmt.Errorf("%w: %s", ErrNoCapability, SymExtractU64)
	}
	s, err := p.acquire()
	if err != nil {
		return 0, false, err
	}
	defer p.release()
	v, ok := p.syms.extractU64(s, evtNum, fieldID, arg, data)
	return v, ok, nil
}

// RegisterAsyncExtractor hands an asynchronous extraction channel to the
// plugin with plugin_register_async_extractor. It returns
// sdk.ErrNotSupported if the plugin declines asynchronous extraction.
func (p *Plugin) RegisterAsyncExtractor(ch sdk.AsyncChannel) error {
	if p.syms.registerAsyncExtractor == nil {
		return fmt.Errorf("%w: %s", ErrNoCapability, SymRegisterAsyncExtractor)
	}
	s, err := p.acquire()
	if err != nil {
		return err
	}
	defer p.release()
	rc := p.syms.registerAsyncExtractor(s, ch)
	switch rc {
	case sdk.SSPluginSuccess:
		return nil
	case sdk.SSPluginNotSupported:
		return sdk.ErrNotSupported
	default:
		return &StreamError{
			Plugin: p.info.Name,
			Op:     "register_async_extractor",
			RC:     rc,
			Msg:    p.lastError(s),
		}
	}
}
