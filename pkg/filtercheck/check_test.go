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
	"io"
	"testing"

	"github.com/falcosecurity/plugin-host-go/internal/fakeplugin"
	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingExtractor answers with the event number and records the
// requests it receives.
type recordingExtractor struct {
	calls []uint32
	err   error
}

func (r *recordingExtractor) Extract(evtNum uint64, fieldID uint32, arg string, data []byte) (Value, bool, error) {
	r.calls = append(r.calls, fieldID)
	if r.err != nil {
		return Value{}, false, r.err
	}
	return RawValue(sdk.ParamTypeUint64, evtNum), true, nil
}

type sourceMap map[uint32]string

func (s sourceMap) SourceName(id uint32) (string, bool) {
	name, ok := s[id]
	return name, ok
}

func loadPlugin(t *testing.T, f *fakeplugin.Plugin) *loader.Plugin {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	p, err := loader.Load(f.LibPath, loader.WithOpener(f.Opener), loader.WithLogger(l))
	require.NoError(t, err)
	t.Cleanup(func() { p.Unload() })
	return p
}

func pluginEvent(num uint64, source uint32) *sdk.Envelope {
	return &sdk.Envelope{
		Num:      num,
		Kind:     sdk.KindPlugin,
		SourceID: source,
		Event:    sdk.Event{Data: fakeplugin.Encode(num)},
	}
}

func TestPluginCheckSource(t *testing.T) {
	p := loadPlugin(t, fakeplugin.NewSource("dummy", 3, "dummy"))
	ext := &recordingExtractor{}
	c := NewPluginCheck(p, ext, nil)

	assert.Equal(t, "dummy (plugin)", c.Name())
	assert.Equal(t, "dummy", c.Plugin())
	assert.Len(t, c.Fields(), 5)

	v, ok, err := c.Extract(pluginEvent(10, 3), 0, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(10), v.Uint64())

	// events of other sources are rejected
	_, ok, err = c.Extract(pluginEvent(11, 4), 0, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// non-plugin events are rejected
	evt := pluginEvent(12, 3)
	evt.Kind = sdk.KindSyscall
	_, ok, err = c.Extract(evt, 0, "")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = c.Extract(nil, 0, "")
	assert.False(t, ok)

	assert.Equal(t, []uint32{0}, ext.calls)
}

func TestPluginCheckExtractor(t *testing.T) {
	sources := sourceMap{1: "dummy", 2: "aws_cloudtrail", 3: "k8s_audit"}

	p := loadPlugin(t, fakeplugin.NewExtractor("ext", "dummy", "k8s_audit"))
	ext := &recordingExtractor{}
	c := NewPluginCheck(p, ext, sources)

	_, ok, err := c.Extract(pluginEvent(1, 1), 0, "")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = c.Extract(pluginEvent(1, 3), 0, "")
	assert.True(t, ok)
	_, ok, _ = c.Extract(pluginEvent(1, 2), 0, "")
	assert.False(t, ok)
	_, ok, _ = c.Extract(pluginEvent(1, 99), 0, "")
	assert.False(t, ok)
	assert.Len(t, ext.calls, 2)

	// no declared sources means all the plugin events are accepted
	p = loadPlugin(t, fakeplugin.NewExtractor("any"))
	c = NewPluginCheck(p, ext, nil)
	assert.True(t, c.Accepts(pluginEvent(1, 2)))
	assert.True(t, c.Accepts(pluginEvent(1, 99)))
	evt := pluginEvent(1, 2)
	evt.Kind = sdk.KindUnknown
	assert.False(t, c.Accepts(evt))
}

func TestPluginCheckArgRequired(t *testing.T) {
	p := loadPlugin(t, fakeplugin.NewSource("dummy", 3, "dummy"))
	ext := &recordingExtractor{}
	c := NewPluginCheck(p, ext, nil)

	ref, ok := c.ParseFieldName("example.arg")
	require.True(t, ok)
	_, ok, err := c.ExtractRef(pluginEvent(1, 3), ref)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, ext.calls)

	ref, ok = c.ParseFieldName("example.arg[x]")
	require.True(t, ok)
	_, ok, err = c.ExtractRef(pluginEvent(1, 3), ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []uint32{4}, ext.calls)
}

func TestPluginCheckErrors(t *testing.T) {
	p := loadPlugin(t, fakeplugin.NewSource("dummy", 3, "dummy"))
	ext := &recordingExtractor{err: errors.New("boom")}
	c := NewPluginCheck(p, ext, nil)

	_, _, err := c.Extract(pluginEvent(1, 3), 0, "")
	assert.EqualError(t, err, "boom")
	_, _, err = c.Extract(pluginEvent(1, 3), 5, "")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	src := NewPluginCheck(loadPlugin(t, fakeplugin.NewSource("dummy", 3, "dummy")), &recordingExtractor{}, nil)
	ext := fakeplugin.NewExtractor("ext")
	ext.Fields = `[
		{"type": "string", "name": "example.countstring", "desc": "d"},
		{"type": "uint64", "name": "ext.value", "desc": "d"}
	]`
	other := NewPluginCheck(loadPlugin(t, ext), &recordingExtractor{}, nil)

	require.NoError(t, r.Register(src))
	require.NoError(t, r.Register(other))
	assert.ErrorIs(t, r.Register(src), ErrDuplicateCheck)
	assert.Equal(t, []*PluginCheck{src, other}, r.List())

	c, ok := r.Get("ext (plugin)")
	require.True(t, ok)
	assert.Same(t, other, c)
	_, ok = r.Get("ext")
	assert.False(t, ok)

	c, ref, err := r.Resolve("example.count")
	require.NoError(t, err)
	assert.Same(t, src, c)
	assert.Equal(t, uint32(0), ref.FieldID)

	c, ref, err = r.Resolve("example.countstring")
	require.NoError(t, err)
	assert.Same(t, other, c)
	assert.Equal(t, uint32(0), ref.FieldID)

	c, ref, err = r.Resolve("example.countstr")
	require.NoError(t, err)
	assert.Same(t, src, c)
	assert.Equal(t, uint32(1), ref.FieldID)

	c, ref, err = r.Resolve("example.arg[key]")
	require.NoError(t, err)
	assert.Same(t, src, c)
	assert.Equal(t, "key", ref.Arg)

	_, _, err = r.Resolve("example.counter")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, _, err = r.Resolve("example.arg[key")
	assert.ErrorIs(t, err, ErrUnknownField)

	assert.True(t, r.Unregister("dummy (plugin)"))
	assert.False(t, r.Unregister("dummy (plugin)"))
	_, _, err = r.Resolve("example.count")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, []*PluginCheck{other}, r.List())
}
