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


// Package inspector owns the plugins loaded by a host, together with the
// filter checks of their fields and the producers of their event sources.
package inspector

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/falcosecurity/plugin-host-go/pkg/capture"
	"github.com/falcosecurity/plugin-host-go/pkg/config"
	"github.com/falcosecurity/plugin-host-go/pkg/extract"
	"github.com/falcosecurity/plugin-host-go/pkg/filtercheck"
	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/loader/dynlib"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

var (
	// ErrDuplicateName is returned when a plugin with the same name is
	// already loaded.
	ErrDuplicateName = errors.New("a plugin with the same name is already loaded")
	// ErrDuplicateID is returned when a source plugin with the same id is
	// already loaded.
	ErrDuplicateID = errors.New("a source plugin with the same id is already loaded")
	// ErrUnknownPlugin is returned when a plugin is not loaded.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrNotSource is returned when opening a plugin without the source
	// role.
	ErrNotSource = errors.New("plugin has no source capability")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("inspector is closed")
)

type entry struct {
	plugin     *loader.Plugin
	dispatcher *extract.Dispatcher
	check      *filtercheck.PluginCheck
	openParams string
}

// Inspector is the set of plugins loaded by a host.
type Inspector struct {
	m        sync.RWMutex
	log      logrus.FieldLogger
	opener   loader.Opener
	metrics  *capture.Metrics
	timeout  time.Duration
	noAsync  bool
	registry *filtercheck.Registry
	entries  []*entry
	seq      capture.Sequence
	closed   bool
}

// Option customizes an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger of the inspector and its plugins.
func WithLogger(l logrus.FieldLogger) Option {
	return func(i *Inspector) {
		i.log = l
	}
}

// WithOpener sets the function used to open plugin libraries. The
// default opens shared libraries with dynlib.Open.
func WithOpener(o loader.Opener) Option {
	return func(i *Inspector) {
		i.opener = o
	}
}

// WithMetrics sets the metrics updated by producers and extractions.
func WithMetrics(m *capture.Metrics) Option {
	return func(i *Inspector) {
		i.metrics = m
	}
}

// WithAsyncTimeout bounds the wait of async extractions.
func WithAsyncTimeout(d time.Duration) Option {
	return func(i *Inspector) {
		i.timeout = d
	}
}

// WithoutAsync disables async extraction for all plugins.
func WithoutAsync() Option {
	return func(i *Inspector) {
		i.noAsync = true
	}
}

// New returns an empty inspector.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		log:      logrus.StandardLogger(),
		opener:   dynlib.Open,
		registry: filtercheck.NewRegistry(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry returns the filter checks of the loaded plugins.
func (i *Inspector) Registry() *filtercheck.Registry {
	return i.registry
}

// AddPlugin loads the plugin library at path and initializes it with the
// given configuration. The fields of the plugin, if any, are registered
// as a filter check.
func (i *Inspector) AddPlugin(path, config string) (*loader.Plugin, error) {
	return i.addPlugin(path, config, "")
}

func (i *Inspector) addPlugin(path, config, openParams string) (*loader.Plugin, error) {
	i.m.Lock()
	defer i.m.Unlock()
	if i.closed {
		return nil, ErrClosed
	}

	p, err := loader.Load(path, loader.WithOpener(i.opener), loader.WithLogger(i.log))
	if err != nil {
		return nil, fmt.Errorf("cannot load plugin %s: %w", path, err)
	}
	e, err := i.register(p, config)
	if err != nil {
		if uerr := p.Unload(); uerr != nil {
			p.Logger().WithError(uerr).Warn("could not unload plugin")
		}
		return nil, fmt.Errorf("cannot load plugin %s: %w", path, err)
	}
	e.openParams = openParams
	i.entries = append(i.entries, e)
	return p, nil
}

func (i *Inspector) register(p *loader.Plugin, config string) (*entry, error) {
	src, isSource := p.Source()
	for _, e := range i.entries {
		if e.plugin.Name() == p.Name() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name())
		}
		if other, ok := e.plugin.Source(); ok && isSource && other.ID() == src.ID() {
			return nil, fmt.Errorf("%w: %d (%s)", ErrDuplicateID, src.ID(), e.plugin.Name())
		}
	}
	if err := p.Init(config); err != nil {
		return nil, err
	}

	e := &entry{plugin: p}
	if len(p.Fields()) == 0 {
		return e, nil
	}
	opts := []extract.Option{extract.WithTimeout(i.timeout)}
	if i.noAsync {
		opts = append(opts, extract.WithoutAsync())
	}
	if i.metrics != nil {
		opts = append(opts, extract.WithObserver(i.metrics))
	}
	e.dispatcher = extract.NewDispatcher(p, opts...)
	e.check = filtercheck.NewPluginCheck(p, e.dispatcher, i)
	if err := i.registry.Register(e.check); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadConfig loads the plugins enabled in the configuration, in order.
// The async extraction settings of the configuration apply to the
// plugins loaded from now on.
func (i *Inspector) LoadConfig(cfg *config.Config) error {
	i.m.Lock()
	i.timeout = cfg.AsyncExtractTimeout
	i.noAsync = cfg.DisableAsyncExtract
	i.m.Unlock()

	for _, pc := range cfg.Enabled() {
		if _, err := i.addPlugin(pc.Path(cfg.PluginsDir), string(pc.InitConfig), pc.OpenParams); err != nil {
			return err
		}
	}
	return nil
}

// Plugins returns the loaded plugins, in load order.
func (i *Inspector) Plugins() []*loader.Plugin {
	i.m.RLock()
	defer i.m.RUnlock()
	res := make([]*loader.Plugin, 0, len(i.entries))
	for _, e := range i.entries {
		res = append(res, e.plugin)
	}
	return res
}

// Plugin returns the loaded plugin with the given name.
func (i *Inspector) Plugin(name string) (*loader.Plugin, bool) {
	i.m.RLock()
	defer i.m.RUnlock()
	if e := i.lookup(name); e != nil {
		return e.plugin, true
	}
	return nil, false
}

func (i *Inspector) lookup(name string) *entry {
	for _, e := range i.entries {
		if e.plugin.Name() == name {
			return e
		}
	}
	return nil
}

// PluginInfos returns a human-readable description of all the loaded
// plugins.
func (i *Inspector) PluginInfos() string {
	var b strings.Builder
	for n, p := range i.Plugins() {
		if n > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Describe())
	}
	return b.String()
}

// SourceName implements filtercheck.SourceResolver.
func (i *Inspector) SourceName(id uint32) (string, bool) {
	i.m.RLock()
	defer i.m.RUnlock()
	for _, e := range i.entries {
		if src, ok := e.plugin.Source(); ok && src.ID() == id {
			return src.EventSource(), true
		}
	}
	return "", false
}

// OpenSource opens the event source of the named plugin and returns a
// producer reading from it. If params is empty, the open parameters of
// the plugin configuration are used. Events of all the producers of an
// inspector share the same numbering.
func (i *Inspector) OpenSource(name, params string) (*capture.PluginProducer, error) {
	i.m.RLock()
	defer i.m.RUnlock()
	if i.closed {
		return nil, ErrClosed
	}
	e := i.lookup(name)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	src, ok := e.plugin.Source()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSource, name)
	}
	if params == "" {
		params = e.openParams
	}
	if err := src.Open(params); err != nil {
		return nil, err
	}
	opts := []capture.ProducerOption{capture.WithSequence(&i.seq)}
	if i.metrics != nil {
		opts = append(opts, capture.WithMetrics(i.metrics))
	}
	return capture.NewPluginProducer(src, opts...), nil
}

// Extract resolves the field reference and extracts its value from the
// event. The boolean is false if the field has no value for the event.
func (i *Inspector) Extract(evt *sdk.Envelope, field string) (filtercheck.Value, bool, error) {
	check, ref, err := i.registry.Resolve(field)
	if err != nil {
		return filtercheck.Value{}, false, err
	}
	return check.ExtractRef(evt, ref)
}

// Close unloads all the plugins in reverse load order. Open sources are
// closed as part of the plugin destruction.
func (i *Inspector) Close() error {
	i.m.Lock()
	defer i.m.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	var errs []error
	for n := len(i.entries) - 1; n >= 0; n-- {
		e := i.entries[n]
		if e.check != nil {
			i.registry.Unregister(e.check.Name())
		}
		if err := e.plugin.Unload(); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", e.plugin.Name(), err))
		}
	}
	i.entries = nil
	i.log.Info("all plugins unloaded")
	return errors.Join(errs...)
}
