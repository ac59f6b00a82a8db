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


package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falcosecurity/plugin-host-go/internal/fakeplugin"
	"github.com/falcosecurity/plugin-host-go/pkg/filtercheck"
	"github.com/falcosecurity/plugin-host-go/pkg/inspector"
	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

func TestFormat(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	f := fakeplugin.NewSource("dummy", 3, "dummy")
	insp := inspector.New(inspector.WithLogger(l), inspector.WithOpener(f.Opener))
	defer insp.Close()
	_, err := insp.AddPlugin(f.LibPath, "")
	require.NoError(t, err)

	fields, err := resolveFields(insp.Registry(), "example.count, example.arg,example.arg[x],")
	require.NoError(t, err)
	require.Len(t, fields, 3)

	_, err = resolveFields(insp.Registry(), "example.nope")
	assert.ErrorIs(t, err, filtercheck.ErrUnknownField)

	prod, err := insp.OpenSource("dummy", "")
	require.NoError(t, err)
	defer prod.Close()
	evt, err := prod.Next(context.Background())
	require.NoError(t, err)

	line, err := format(evt, prod.Source(), fields, l)
	require.NoError(t, err)
	assert.Equal(t, "1 1970-01-01T00:00:00.000001Z dummy counter: 1 example.count=1 example.arg=<NA> example.arg[x]=x", line)
}

func TestFormatExtractionFailure(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	f := fakeplugin.NewSource("dummy", 3, "dummy")

	// the resolver fails on the string field only
	var wg sync.WaitGroup
	f.Override = map[string]interface{}{
		loader.SymRegisterAsyncExtractor: loader.RegisterAsyncExtractorFunc(func(s sdk.State, ch sdk.AsyncChannel) int32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					req, ok := ch.Wait()
					if !ok {
						return
					}
					if req.FieldID == 1 {
						ch.Reply(sdk.AsyncResult{RC: sdk.SSPluginFailure})
						continue
					}
					v, ok := fakeplugin.Decode(req.Data)
					ch.Reply(sdk.AsyncResult{RC: sdk.SSPluginSuccess, U64: v, Present: ok})
				}
			}()
			return sdk.SSPluginSuccess
		}),
	}
	insp := inspector.New(inspector.WithLogger(l), inspector.WithOpener(f.Opener))
	_, err := insp.AddPlugin(f.LibPath, "")
	require.NoError(t, err)

	fields, err := resolveFields(insp.Registry(), "example.countstr,example.count")
	require.NoError(t, err)

	prod, err := insp.OpenSource("dummy", "")
	require.NoError(t, err)
	for i := 1; i <= 2; i++ {
		evt, err := prod.Next(context.Background())
		require.NoError(t, err)
		line, err := format(evt, prod.Source(), fields, l)
		require.NoError(t, err)
		assert.Contains(t, line, fmt.Sprintf("example.countstr=<NA> example.count=%d", i))
	}

	var failures []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "field extraction failed" {
			failures = append(failures, e)
		}
	}
	require.Len(t, failures, 2)
	assert.Equal(t, logrus.WarnLevel, failures[1].Level)
	assert.Equal(t, "example.countstr", failures[1].Data["field"])
	assert.Equal(t, uint64(2), failures[1].Data["event"])

	require.NoError(t, prod.Close())
	require.NoError(t, insp.Close())
	wg.Wait()
}
