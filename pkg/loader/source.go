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
	"fmt"
	"sync"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

// Source contains the operations of the event sourcing role of a plugin.
// A Source has at most one open instance at a time.
//
// Events returned by Next and NextBatch are views over memory owned by
// the plugin instance, and are valid only until the next call to Next,
// NextBatch, or Close.
type Source struct {
	p    *Plugin
	m    sync.Mutex
	inst sdk.Instance
	open bool
}

// ID returns the event source id of the plugin.
func (s *Source) ID() uint32 {
	return s.p.info.ID
}

// EventSource returns the name of the event source of the plugin.
func (s *Source) EventSource() string {
	return s.p.info.EventSource
}

// Plugin returns the plugin owning this source.
func (s *Source) Plugin() *Plugin {
	return s.p
}

// IsOpen returns true if the source has an open instance.
func (s *Source) IsOpen() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.open
}

// Open opens a new instance of the event source with the given
// parameters. The instance gets closed automatically when the plugin is
// destroyed.
func (s *Source) Open(params string) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.open {
		return ErrAlreadyOpen
	}
	st, err := s.p.acquire()
	if err != nil {
		return err
	}
	defer s.p.release()

	inst, rc := s.p.syms.open(st, params)
	if rc != sdk.SSPluginSuccess {
		return &StreamError{
			Plugin: s.p.info.Name,
			Op:     "open",
			RC:     rc,
			Msg:    s.p.lastError(st),
		}
	}
	s.inst = inst
	s.open = true
	return nil
}

// Close closes the open instance of the event source.
func (s *Source) Close() error {
	s.m.Lock()
	defer s.m.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	st, err := s.p.acquire()
	if err != nil {
		return err
	}
	defer s.p.release()
	s.p.syms.close(st, s.inst)
	s.inst = 0
	s.open = false
	return nil
}

// closeOnDestroy is invoked by Plugin.Destroy after the destroy hooks.
// The plugin is already marked as destroyed, so the state is accessed
// directly.
func (s *Source) closeOnDestroy() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.open {
		s.p.syms.close(s.p.state, s.inst)
		s.inst = 0
		s.open = false
		s.p.log.Debug("open source instance closed on destroy")
	}
}

// Next returns the next event of the open instance. It returns sdk.ErrEOF
// when the source has no more events, sdk.ErrTimeout when no event is
// ready yet, and a *StreamError on failure.
func (s *Source) Next() (sdk.Event, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if !s.open {
		return sdk.Event{}, ErrNotOpen
	}
	st, err := s.p.acquire()
	if err != nil {
		return sdk.Event{}, err
	}
	defer s.p.release()
	evt, rc := s.p.syms.next(st, s.inst)
	if rc != sdk.SSPluginSuccess {
		return sdk.Event{}, s.rcError("next", st, rc)
	}
	return evt, nil
}

// NextBatch reads a batch of events from the open instance and appends
// them to dst[:0]. If the plugin does not export plugin_next_batch, the
// batch contains a single event obtained with plugin_next. Errors are the
// same as for Next. Events are appended even when the plugin returns
// sdk.ErrEOF or sdk.ErrTimeout together with a partial batch.
func (s *Source) NextBatch(dst []sdk.Event) ([]sdk.Event, error) {
	dst = dst[:0]
	s.m.Lock()
	defer s.m.Unlock()
	if !s.open {
		return dst, ErrNotOpen
	}
	st, err := s.p.acquire()
	if err != nil {
		return dst, err
	}
	defer s.p.release()

	var rc int32
	if s.p.syms.nextBatch != nil {
		dst, rc = s.p.syms.nextBatch(st, s.inst, dst)
	} else {
		var evt sdk.Event
		evt, rc = s.p.syms.next(st, s.inst)
		if rc == sdk.SSPluginSuccess {
			dst = append(dst, evt)
		}
	}
	if rc != sdk.SSPluginSuccess {
		return dst, s.rcError("next_batch", st, rc)
	}
	return dst, nil
}

func (s *Source) rcError(op string, st sdk.State, rc int32) error {
	return rcError(s.p.info.Name, op, rc, func() string {
		return s.p.lastError(st)
	})
}

// Progress returns the progress of the open instance as a percentage
// multiplied by 100, together with a human-readable representation. A
// plugin not exporting plugin_get_progress reports zero and an empty
// string.
func (s *Source) Progress() (uint32, string, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if !s.open {
		return 0, "", ErrNotOpen
	}
	if s.p.syms.getProgress == nil {
		return 0, "", nil
	}
	st, err := s.p.acquire()
	if err != nil {
		return 0, "", err
	}
	defer s.p.release()
	str, pct := s.p.syms.getProgress(st, s.inst)
	return pct, str, nil
}

// EventToString returns a human-readable representation of the given
// event data.
func (s *Source) EventToString(data []byte) (string, error) {
	st, err := s.p.acquire()
	if err != nil {
		return "", err
	}
	defer s.p.release()
	return s.p.syms.eventToString(st, data), nil
}

// String implements fmt.Stringer.
func (s *Source) String() string {
	return fmt.Sprintf("%s (id=%d, source=%s)", s.p.info.Name, s.p.info.ID, s.p.info.EventSource)
}
