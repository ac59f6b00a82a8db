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

package loader_test

import (
	"errors"
	"testing"

	"github.com/falcosecurity/plugin-host-go/internal/fakeplugin"
	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSource(t *testing.T, f *fakeplugin.Plugin) *loader.Source {
	t.Helper()
	p := mustLoad(t, f)
	require.NoError(t, p.Init(""))
	src, ok := p.Source()
	require.True(t, ok)
	require.NoError(t, src.Open(""))
	return src
}

func TestSourceNext(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.NumEvents = 3
	src := openSource(t, f)
	assert.True(t, src.IsOpen())

	for i := uint64(1); i <= 3; i++ {
		evt, err := src.Next()
		require.NoError(t, err)
		v, ok := fakeplugin.Decode(evt.Data)
		require.True(t, ok)
		assert.Equal(t, i, v)
		assert.Equal(t, i*1000, evt.Timestamp)
	}
	_, err := src.Next()
	assert.ErrorIs(t, err, sdk.ErrEOF)

	s, err := src.EventToString(fakeplugin.Encode(7))
	require.NoError(t, err)
	assert.Equal(t, "counter: 7", s)
}

func TestSourceOpenClose(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	p := mustLoad(t, f)
	src, _ := p.Source()

	assert.ErrorIs(t, src.Open(""), loader.ErrNotInitialized)
	require.NoError(t, p.Init(""))

	_, err := src.Next()
	assert.ErrorIs(t, err, loader.ErrNotOpen)
	_, err = src.NextBatch(nil)
	assert.ErrorIs(t, err, loader.ErrNotOpen)
	assert.ErrorIs(t, src.Close(), loader.ErrNotOpen)

	require.NoError(t, src.Open("params"))
	assert.ErrorIs(t, src.Open("params"), loader.ErrAlreadyOpen)
	assert.Equal(t, 1, f.OpenInstances())

	require.NoError(t, src.Close())
	assert.False(t, src.IsOpen())
	assert.Equal(t, 0, f.OpenInstances())
	_, err = src.Next()
	assert.ErrorIs(t, err, loader.ErrNotOpen)

	// a new instance can be opened after close
	require.NoError(t, src.Open(""))
	require.NoError(t, src.Close())
	assert.Equal(t, int32(2), f.Opens)
	assert.Equal(t, int32(2), f.Closes)
}

func TestSourceOpenFailure(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.OpenError = "cannot connect to endpoint"
	p := mustLoad(t, f)
	require.NoError(t, p.Init(""))
	src, _ := p.Source()

	err := src.Open("")
	var serr *loader.StreamError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "open", serr.Op)
	assert.Equal(t, sdk.SSPluginFailure, serr.RC)
	assert.Equal(t, "cannot connect to endpoint", serr.Msg)
	assert.False(t, src.IsOpen())
}

func TestSourceNextFailure(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.FailAfter = 1
	src := openSource(t, f)

	_, err := src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	var serr *loader.StreamError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "next", serr.Op)
	assert.Equal(t, "counter overflow at 1", serr.Msg)
	assert.Contains(t, err.Error(), "dummy")
}

func TestSourceTimeout(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.TimeoutEvery = 2
	src := openSource(t, f)

	_, err := src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	assert.ErrorIs(t, err, sdk.ErrTimeout)
	_, err = src.Next()
	require.NoError(t, err)
}

func TestSourceNextBatch(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.NumEvents = 6
	f.BatchSize = 4
	src := openSource(t, f)

	batch := make([]sdk.Event, 0, 4)
	batch, err := src.NextBatch(batch)
	require.NoError(t, err)
	require.Len(t, batch, 4)
	v, _ := fakeplugin.Decode(batch[3].Data)
	assert.Equal(t, uint64(4), v)

	// the destination slice is reset on each call
	batch, err = src.NextBatch(batch)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	v, _ = fakeplugin.Decode(batch[0].Data)
	assert.Equal(t, uint64(5), v)

	batch, err = src.NextBatch(batch)
	assert.ErrorIs(t, err, sdk.ErrEOF)
	assert.Empty(t, batch)
}

func TestSourceNextBatchFallback(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.NumEvents = 2
	f.BatchSize = 0
	src := openSource(t, f)

	var batch []sdk.Event
	var total int
	var err error
	for {
		batch, err = src.NextBatch(batch)
		if err != nil {
			break
		}
		require.Len(t, batch, 1)
		total++
	}
	assert.True(t, errors.Is(err, sdk.ErrEOF))
	assert.Equal(t, 2, total)
}

func TestSourceProgress(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	f.NumEvents = 4
	src := openSource(t, f)

	_, err := src.Next()
	require.NoError(t, err)
	pct, str, err := src.Progress()
	require.NoError(t, err)
	assert.Equal(t, uint32(2500), pct)
	assert.Equal(t, "25.00", str)

	f = fakeplugin.NewSource("noprogress", 2, "dummy")
	f.Missing = []string{loader.SymGetProgress}
	src = openSource(t, f)
	pct, str, err = src.Progress()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), pct)
	assert.Equal(t, "", str)

	require.NoError(t, src.Close())
	_, _, err = src.Progress()
	assert.ErrorIs(t, err, loader.ErrNotOpen)
}

func TestDestroyClosesOpenInstance(t *testing.T) {
	f := fakeplugin.NewSource("dummy", 1, "dummy")
	src := openSource(t, f)
	p := src.Plugin()

	var order []string
	p.OnDestroy(func() {
		order = append(order, "hook")
		assert.Equal(t, 1, f.OpenInstances())
	})
	p.Destroy()
	assert.Equal(t, []string{"hook"}, order)
	assert.False(t, src.IsOpen())
	assert.Equal(t, 0, f.OpenInstances())
	assert.Equal(t, int32(1), f.Closes)
	assert.Equal(t, int32(1), f.Destroys)

	_, err := src.Next()
	assert.ErrorIs(t, err, loader.ErrNotOpen)
	assert.ErrorIs(t, src.Open(""), loader.ErrNotInitialized)
}
