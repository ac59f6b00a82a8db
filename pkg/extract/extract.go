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

// Package extract dispatches field extraction requests to plugins, either
// by calling their extraction functions directly or through the
// asynchronous extraction handshake, when the plugin supports it.
package extract

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/falcosecurity/plugin-host-go/pkg/filtercheck"
	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/sirupsen/logrus"
)

// Outcomes of an extraction, as reported to an Observer.
const (
	OutcomePresent = "present"
	OutcomeAbsent  = "absent"
	OutcomeError   = "error"
)

// Observer is notified of the extraction activity of a Dispatcher.
type Observer interface {
	// ObserveExtraction is called after each extraction
	ObserveExtraction(plugin, outcome string)
	//
	// ObserveAsync is called once the extraction mode of a plugin is
	// decided
	ObserveAsync(plugin string, async bool)
}

// ExtractionError is returned when a plugin fails to extract a field.
type ExtractionError struct {
	Plugin string
	Field  string
	// RC is the status code returned by the plugin through the async
	// handshake, if any
	RC  int32
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: extract error on field %s: %s", e.Plugin, e.Field, e.Err.Error())
	}
	return fmt.Sprintf("plugin %s: extract error on field %s: %s", e.Plugin, e.Field, sdk.RCName(e.RC))
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Dispatcher extracts the fields of one plugin. It implements
// filtercheck.FieldExtractor.
//
// Extractions are serialized, since the async handshake supports only one
// request in flight. On the first extraction, the dispatcher registers an
// async channel if the plugin supports it, and falls back to the
// synchronous extraction functions permanently otherwise.
type Dispatcher struct {
	p        *loader.Plugin
	log      logrus.FieldLogger
	obs      Observer
	timeout  time.Duration
	noAsync  bool
	m        sync.Mutex
	resolved bool
	ch       atomic.Pointer[Channel]
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds the time waited for an async reply. Zero, the
// default, means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Dispatcher) {
		e.timeout = d
	}
}

// WithoutAsync disables the async extraction handshake.
func WithoutAsync() Option {
	return func(e *Dispatcher) {
		e.noAsync = true
	}
}

// WithObserver sets the observer of the dispatcher.
func WithObserver(o Observer) Option {
	return func(e *Dispatcher) {
		e.obs = o
	}
}

// WithLogger sets the logger of the dispatcher. Defaults to the logger of
// the plugin.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Dispatcher) {
		e.log = l
	}
}

// NewDispatcher returns a dispatcher for the given plugin.
func NewDispatcher(p *loader.Plugin, opts ...Option) *Dispatcher {
	d := &Dispatcher{p: p, log: p.Logger()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Async returns true if the dispatcher uses the async handshake. It
// returns false until the first extraction.
func (d *Dispatcher) Async() bool {
	return d.ch.Load() != nil
}

// Extract implements filtercheck.FieldExtractor.
func (d *Dispatcher) Extract(evtNum uint64, fieldID uint32, arg string, data []byte) (filtercheck.Value, bool, error) {
	v, ok, err := d.extract(evtNum, fieldID, arg, data)
	if d.obs != nil {
		switch {
		case err != nil:
			d.obs.ObserveExtraction(d.p.Name(), OutcomeError)
		case ok:
			d.obs.ObserveExtraction(d.p.Name(), OutcomePresent)
		default:
			d.obs.ObserveExtraction(d.p.Name(), OutcomeAbsent)
		}
	}
	return v, ok, err
}

func (d *Dispatcher) extract(evtNum uint64, fieldID uint32, arg string, data []byte) (filtercheck.Value, bool, error) {
	fields := d.p.Fields()
	if int(fieldID) >= len(fields) {
		return filtercheck.Value{}, false, fmt.Errorf("plugin %s: unknown field id %d", d.p.Name(), fieldID)
	}
	field := &fields[fieldID]
	ftype := field.ParamType()

	d.m.Lock()
	defer d.m.Unlock()
	if !d.resolved {
		if err := d.resolveMode(); err != nil {
			return filtercheck.Value{}, false, err
		}
	}

	// each path requires its own extraction function
	if ftype == sdk.ParamTypeCharBuf {
		if !d.p.HasExtractStr() {
			return filtercheck.Value{}, false, d.error(field, 0, fmt.Errorf("%w: %s", loader.ErrNoCapability, loader.SymExtractStr))
		}
	} else if !d.p.HasExtractU64() {
		return filtercheck.Value{}, false, d.error(field, 0, fmt.Errorf("%w: %s", loader.ErrNoCapability, loader.SymExtractU64))
	}

	if ch := d.ch.Load(); ch != nil {
		return d.extractAsync(ch, evtNum, fieldID, ftype, arg, data, field)
	}
	if ftype == sdk.ParamTypeCharBuf {
		s, ok, err := d.p.ExtractStr(evtNum, fieldID, arg, data)
		if err != nil || !ok {
			return filtercheck.Value{}, false, d.error(field, 0, err)
		}
		return filtercheck.StringValue(s), true, nil
	}
	raw, ok, err := d.p.ExtractU64(evtNum, fieldID, arg, data)
	if err != nil || !ok {
		return filtercheck.Value{}, false, d.error(field, 0, err)
	}
	return filtercheck.RawValue(ftype, raw), true, nil
}

func (d *Dispatcher) extractAsync(ch *Channel, evtNum uint64, fieldID, ftype uint32, arg string, data []byte, field *sdk.FieldEntry) (filtercheck.Value, bool, error) {
	res, err := ch.Do(&sdk.AsyncRequest{
		EvtNum:    evtNum,
		FieldID:   fieldID,
		FieldType: ftype,
		Arg:       arg,
		Data:      data,
	})
	if err != nil {
		return filtercheck.Value{}, false, d.error(field, 0, err)
	}
	switch res.RC {
	case sdk.SSPluginSuccess:
	case sdk.SSPluginNotSupported:
		return filtercheck.Value{}, false, d.error(field, res.RC, sdk.ErrNotSupported)
	default:
		return filtercheck.Value{}, false, d.error(field, res.RC, nil)
	}
	if !res.Present {
		return filtercheck.Value{}, false, nil
	}
	if ftype == sdk.ParamTypeCharBuf {
		return filtercheck.StringValue(res.Str), true, nil
	}
	return filtercheck.RawValue(ftype, res.U64), true, nil
}

// error wraps an extraction failure. A nil err with a success rc is an
// absent value, and is not an error.
func (d *Dispatcher) error(field *sdk.FieldEntry, rc int32, err error) error {
	if err == nil && rc == sdk.SSPluginSuccess {
		return nil
	}
	return &ExtractionError{Plugin: d.p.Name(), Field: field.Name, RC: rc, Err: err}
}

// resolveMode decides between async and sync extraction. The decision is
// not cached while the plugin is not initialized. The caller must hold
// the dispatcher lock.
func (d *Dispatcher) resolveMode() error {
	if !d.p.Initialized() {
		return loader.ErrNotInitialized
	}
	d.resolved = true
	if d.noAsync || !d.p.HasAsyncExtractor() {
		d.observeAsync(false)
		return nil
	}

	ch := NewChannel(d.timeout)
	// the hook is registered first, so that the resolver loop is always
	// released on destroy
	d.p.OnDestroy(ch.Close)
	if err := d.p.RegisterAsyncExtractor(ch); err != nil {
		ch.Close()
		if errors.Is(err, sdk.ErrNotSupported) {
			d.log.Debug("async extraction not supported, using sync extraction")
		} else {
			d.log.WithError(err).Warn("could not register async extractor, using sync extraction")
		}
		d.observeAsync(false)
		return nil
	}
	d.ch.Store(ch)
	d.log.Debug("async extraction enabled")
	d.observeAsync(true)
	return nil
}

func (d *Dispatcher) observeAsync(async bool) {
	if d.obs != nil {
		d.obs.ObserveAsync(d.p.Name(), async)
	}
}

// Close shuts the async channel down, if any. Extractions in progress
// fail with ErrAsyncClosed. The plugin does this automatically on
// destroy.
func (d *Dispatcher) Close() {
	if ch := d.ch.Load(); ch != nil {
		ch.Close()
	}
}
