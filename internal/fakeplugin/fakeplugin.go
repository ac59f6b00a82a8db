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

// Package fakeplugin provides in-memory implementations of
// loader.Library, used to test the plugin host without building and
// loading native shared libraries.
package fakeplugin

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

// CounterFields is the field list of the counter plugins.
const CounterFields = `[
	{"type": "uint64", "name": "example.count", "display": "Counter value", "desc": "Current value of the internal counter"},
	{"type": "string", "name": "example.countstr", "display": "Counter string value", "desc": "String representation of current value of the internal counter"},
	{"type": "int64", "name": "example.neg", "desc": "Negated value of the internal counter"},
	{"type": "float", "name": "example.half", "desc": "Half of the value of the internal counter"},
	{"type": "string", "name": "example.arg", "argRequired": true, "desc": "Echoes the field argument"}
]`

// Plugin is a configurable in-memory plugin. The zero value is not
// usable, use NewSource or NewExtractor.
type Plugin struct {
	LibPath             string
	RequiredAPIVersion  string
	Type                uint32
	ID                  uint32
	Name                string
	Description         string
	Contact             string
	Version             string
	EventSource         string
	Fields              string
	ExtractEventSources string
	InitSchema          string

	// NumEvents is the number of events produced by an open instance
	// before returning EOF. Zero means no limit.
	NumEvents uint64
	// BatchSize is the max number of events returned by next_batch
	BatchSize int
	// TimeoutEvery makes the instance return a timeout every n calls
	TimeoutEvery int
	// FailAfter makes the instance fail after producing n events
	FailAfter uint64

	// InitError makes init fail with the given last error
	InitError string
	// InitNullState makes a failing init return a null state
	InitNullState bool
	// OpenError makes open fail with the given last error
	OpenError string
	// AsyncRC is the return code of register_async_extractor
	AsyncRC int32

	// Missing lists the symbols that are not exported
	Missing []string
	// Override replaces the entry point of a symbol
	Override map[string]interface{}

	Inits        int32
	Destroys     int32
	Opens        int32
	Closes       int32
	LibCloses    int32
	AsyncServed  int64
	AsyncStopped int32
	LastConfig   string

	m       sync.Mutex
	nextID  uintptr
	states  map[sdk.State]*state
	insts   map[sdk.Instance]*instance
	asyncWg sync.WaitGroup
}

type state struct {
	config  string
	lastErr string
}

type instance struct {
	params  string
	counter uint64
	calls   int
}

// NewSource returns a source plugin producing events that encode an
// incrementing counter.
func NewSource(name string, id uint32, source string) *Plugin {
	return &Plugin{
		LibPath:            "/usr/share/falco/plugins/lib" + name + ".so",
		RequiredAPIVersion: sdk.APIVersion.String(),
		Type:               sdk.TypeSourcePlugin,
		ID:                 id,
		Name:               name,
		Description:        "A fake source plugin producing a counter",
		Contact:            "github.com/falcosecurity/plugin-host-go",
		Version:            "0.1.0",
		EventSource:        source,
		Fields:             CounterFields,
		BatchSize:          4,
		AsyncRC:            sdk.SSPluginSuccess,
	}
}

// NewExtractor returns an extractor plugin exporting the counter fields.
// The extract event sources list is omitted if sources is empty.
func NewExtractor(name string, sources ...string) *Plugin {
	p := &Plugin{
		LibPath:            "/usr/share/falco/plugins/lib" + name + ".so",
		RequiredAPIVersion: sdk.APIVersion.String(),
		Type:               sdk.TypeExtractorPlugin,
		Name:               name,
		Description:        "A fake extractor plugin for counter events",
		Contact:            "github.com/falcosecurity/plugin-host-go",
		Version:            "0.1.0",
		Fields:             CounterFields,
		AsyncRC:            sdk.SSPluginSuccess,
	}
	if len(sources) > 0 {
		p.ExtractEventSources = `[`
		for i, s := range sources {
			if i > 0 {
				p.ExtractEventSources += `,`
			}
			p.ExtractEventSources += strconv.Quote(s)
		}
		p.ExtractEventSources += `]`
	}
	return p
}

// Encode returns the event payload for the given counter value.
func Encode(counter uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, counter)
	return b
}

// Decode returns the counter value of an event payload.
func Decode(data []byte) (uint64, bool) {
	if len(data) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data), true
}

// Opener is a loader.Opener that opens the fake plugin regardless of
// the requested path.
func (p *Plugin) Opener(path string) (loader.Library, error) {
	return &library{p: p, path: path}, nil
}

// Registry maps library paths to fake plugins.
type Registry map[string]*Plugin

// Opener is a loader.Opener opening the fake plugin registered for the
// requested path.
func (r Registry) Opener(path string) (loader.Library, error) {
	p, ok := r[path]
	if !ok {
		return nil, fmt.Errorf("%s: cannot open shared object file: No such file or directory", path)
	}
	return &library{p: p, path: path}, nil
}

// Add registers the plugin under its library path.
func (r Registry) Add(p *Plugin) Registry {
	r[p.LibPath] = p
	return r
}

// WaitAsync waits for all the asynchronous extraction loops of the
// plugin to terminate.
func (p *Plugin) WaitAsync() {
	p.asyncWg.Wait()
}

// OpenInstances returns the number of instances currently open.
func (p *Plugin) OpenInstances() int {
	p.m.Lock()
	defer p.m.Unlock()
	return len(p.insts)
}

// LiveStates returns the number of states not destroyed yet.
func (p *Plugin) LiveStates() int {
	p.m.Lock()
	defer p.m.Unlock()
	return len(p.states)
}

type library struct {
	p      *Plugin
	path   string
	closed bool
}

func (l *library) Path() string {
	return l.path
}

func (l *library) Close() error {
	if l.closed {
		return fmt.Errorf("%s: library already closed", l.path)
	}
	l.closed = true
	atomic.AddInt32(&l.p.LibCloses, 1)
	return nil
}

func (l *library) Lookup(symbol string) (interface{}, error) {
	p := l.p
	for _, m := range p.Missing {
		if m == symbol {
			return nil, fmt.Errorf("%w: %s", loader.ErrSymbolNotFound, symbol)
		}
	}
	if fn, ok := p.Override[symbol]; ok {
		return fn, nil
	}
	str := func(v string) loader.StringInfoFunc {
		return func() string { return v }
	}
	switch symbol {
	case loader.SymGetRequiredAPIVersion:
		return str(p.RequiredAPIVersion), nil
	case loader.SymGetType:
		return loader.U32InfoFunc(func() uint32 { return p.Type }), nil
	case loader.SymGetName:
		return str(p.Name), nil
	case loader.SymGetDescription:
		return str(p.Description), nil
	case loader.SymGetContact:
		return str(p.Contact), nil
	case loader.SymGetVersion:
		return str(p.Version), nil
	case loader.SymGetLastError:
		return loader.LastErrorFunc(p.lastError), nil
	case loader.SymInit:
		return loader.InitFunc(p.init), nil
	case loader.SymDestroy:
		return loader.DestroyFunc(p.destroy), nil
	case loader.SymGetFields:
		if len(p.Fields) > 0 {
			return str(p.Fields), nil
		}
	case loader.SymGetInitSchema:
		if len(p.InitSchema) > 0 {
			return loader.InitSchemaFunc(func() (string, uint32) {
				return p.InitSchema, sdk.SchemaTypeJSON
			}), nil
		}
	case loader.SymExtractStr:
		return loader.ExtractStrFunc(p.extractStr), nil
	case loader.SymExtractU64:
		return loader.ExtractU64Func(p.extractU64), nil
	case loader.SymRegisterAsyncExtractor:
		return loader.RegisterAsyncExtractorFunc(p.registerAsync), nil
	}

	if p.Type == sdk.TypeExtractorPlugin {
		if symbol == loader.SymGetExtractEventSources && len(p.ExtractEventSources) > 0 {
			return str(p.ExtractEventSources), nil
		}
	} else {
		switch symbol {
		case loader.SymGetID:
			return loader.U32InfoFunc(func() uint32 { return p.ID }), nil
		case loader.SymGetEventSource:
			return str(p.EventSource), nil
		case loader.SymOpen:
			return loader.OpenFunc(p.open), nil
		case loader.SymClose:
			return loader.CloseFunc(p.close), nil
		case loader.SymNext:
			return loader.NextFunc(p.next), nil
		case loader.SymNextBatch:
			if p.BatchSize > 0 {
				return loader.NextBatchFunc(p.nextBatch), nil
			}
		case loader.SymGetProgress:
			return loader.ProgressFunc(p.progress), nil
		case loader.SymEventToString:
			return loader.EventToStringFunc(p.eventToString), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", loader.ErrSymbolNotFound, symbol)
}

func (p *Plugin) lastError(s sdk.State) string {
	p.m.Lock()
	defer p.m.Unlock()
	if st, ok := p.states[s]; ok {
		return st.lastErr
	}
	return ""
}

func (p *Plugin) init(config string) (sdk.State, int32) {
	p.m.Lock()
	defer p.m.Unlock()
	p.LastConfig = config
	if len(p.InitError) > 0 && p.InitNullState {
		return 0, sdk.SSPluginFailure
	}
	if p.states == nil {
		p.states = make(map[sdk.State]*state)
		p.insts = make(map[sdk.Instance]*instance)
	}
	p.nextID++
	s := sdk.State(p.nextID)
	p.states[s] = &state{config: config}
	atomic.AddInt32(&p.Inits, 1)
	if len(p.InitError) > 0 {
		p.states[s].lastErr = p.InitError
		return s, sdk.SSPluginFailure
	}
	return s, sdk.SSPluginSuccess
}

func (p *Plugin) destroy(s sdk.State) {
	p.m.Lock()
	defer p.m.Unlock()
	if _, ok := p.states[s]; !ok {
		panic(fmt.Sprintf("destroying unknown state %d", s))
	}
	delete(p.states, s)
	atomic.AddInt32(&p.Destroys, 1)
}

func (p *Plugin) open(s sdk.State, params string) (sdk.Instance, int32) {
	p.m.Lock()
	defer p.m.Unlock()
	st, ok := p.states[s]
	if !ok {
		panic(fmt.Sprintf("opening with unknown state %d", s))
	}
	if len(p.OpenError) > 0 {
		st.lastErr = p.OpenError
		return 0, sdk.SSPluginFailure
	}
	p.nextID++
	i := sdk.Instance(p.nextID)
	p.insts[i] = &instance{params: params}
	atomic.AddInt32(&p.Opens, 1)
	return i, sdk.SSPluginSuccess
}

func (p *Plugin) close(s sdk.State, i sdk.Instance) {
	p.m.Lock()
	defer p.m.Unlock()
	if _, ok := p.insts[i]; !ok {
		panic(fmt.Sprintf("closing unknown instance %d", i))
	}
	delete(p.insts, i)
	atomic.AddInt32(&p.Closes, 1)
}

// produce generates the next event of an instance. The caller must hold
// the plugin lock.
func (p *Plugin) produce(s sdk.State, inst *instance) (sdk.Event, int32) {
	if p.NumEvents > 0 && inst.counter >= p.NumEvents {
		return sdk.Event{}, sdk.SSPluginEOF
	}
	if p.FailAfter > 0 && inst.counter >= p.FailAfter {
		p.states[s].lastErr = fmt.Sprintf("counter overflow at %d", inst.counter)
		return sdk.Event{}, sdk.SSPluginFailure
	}
	inst.counter++
	return sdk.Event{Data: Encode(inst.counter), Timestamp: inst.counter * 1000}, sdk.SSPluginSuccess
}

func (p *Plugin) lookupInstance(i sdk.Instance) *instance {
	inst, ok := p.insts[i]
	if !ok {
		panic(fmt.Sprintf("reading from unknown instance %d", i))
	}
	inst.calls++
	return inst
}

func (p *Plugin) next(s sdk.State, i sdk.Instance) (sdk.Event, int32) {
	p.m.Lock()
	defer p.m.Unlock()
	inst := p.lookupInstance(i)
	if p.TimeoutEvery > 0 && inst.calls%p.TimeoutEvery == 0 {
		return sdk.Event{}, sdk.SSPluginTimeout
	}
	return p.produce(s, inst)
}

func (p *Plugin) nextBatch(s sdk.State, i sdk.Instance, dst []sdk.Event) ([]sdk.Event, int32) {
	p.m.Lock()
	defer p.m.Unlock()
	inst := p.lookupInstance(i)
	if p.TimeoutEvery > 0 && inst.calls%p.TimeoutEvery == 0 {
		return dst, sdk.SSPluginTimeout
	}
	for n := 0; n < p.BatchSize; n++ {
		evt, rc := p.produce(s, inst)
		if rc != sdk.SSPluginSuccess {
			if n > 0 && rc == sdk.SSPluginEOF {
				// the partial batch is returned, EOF is hit next time
				return dst, sdk.SSPluginSuccess
			}
			return dst, rc
		}
		dst = append(dst, evt)
	}
	return dst, sdk.SSPluginSuccess
}

func (p *Plugin) progress(s sdk.State, i sdk.Instance) (string, uint32) {
	p.m.Lock()
	defer p.m.Unlock()
	inst := p.lookupInstance(i)
	if p.NumEvents == 0 {
		return "", 0
	}
	pct := uint32(inst.counter * 10000 / p.NumEvents)
	return fmt.Sprintf("%.2f", float64(pct)/100), pct
}

func (p *Plugin) eventToString(s sdk.State, data []byte) string {
	v, ok := Decode(data)
	if !ok {
		return "<invalid>"
	}
	return fmt.Sprintf("counter: %d", v)
}

func (p *Plugin) extractStr(s sdk.State, evtNum uint64, fieldID uint32, arg string, data []byte) (string, bool) {
	v, ok := Decode(data)
	if !ok {
		return "", false
	}
	switch fieldID {
	case 1:
		return strconv.FormatUint(v, 10), true
	case 4:
		if len(arg) == 0 {
			return "", false
		}
		return arg, true
	}
	return "", false
}

func (p *Plugin) extractU64(s sdk.State, evtNum uint64, fieldID uint32, arg string, data []byte) (uint64, bool) {
	v, ok := Decode(data)
	if !ok {
		return 0, false
	}
	switch fieldID {
	case 0:
		return v, true
	case 2:
		return uint64(-int64(v)), true
	case 3:
		return math.Float64bits(float64(v) / 2), true
	}
	return 0, false
}

func (p *Plugin) registerAsync(s sdk.State, ch sdk.AsyncChannel) int32 {
	if p.AsyncRC != sdk.SSPluginSuccess {
		p.m.Lock()
		p.states[s].lastErr = "async extraction unavailable"
		p.m.Unlock()
		return p.AsyncRC
	}
	p.asyncWg.Add(1)
	go func() {
		defer p.asyncWg.Done()
		defer atomic.AddInt32(&p.AsyncStopped, 1)
		for {
			req, ok := ch.Wait()
			if !ok {
				return
			}
			res := sdk.AsyncResult{RC: sdk.SSPluginSuccess}
			if req.FieldType == sdk.ParamTypeCharBuf {
				res.Str, res.Present = p.extractStr(s, req.EvtNum, req.FieldID, req.Arg, req.Data)
			} else {
				res.U64, res.Present = p.extractU64(s, req.EvtNum, req.FieldID, req.Arg, req.Data)
			}
			atomic.AddInt64(&p.AsyncServed, 1)
			ch.Reply(res)
		}
	}()
	return sdk.SSPluginSuccess
}
