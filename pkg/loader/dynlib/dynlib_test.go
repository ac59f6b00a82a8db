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


package dynlib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falcosecurity/plugin-host-go/pkg/loader"
)

func TestOpenMissingLibrary(t *testing.T) {
	lib, err := Open("/nonexistent/libmissing.so")
	require.Error(t, err)
	assert.Nil(t, lib)

	var lerr *loader.LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "/nonexistent/libmissing.so", lerr.Path)
	assert.Contains(t, err.Error(), "error loading plugin /nonexistent/libmissing.so")
}

func TestLoadMissingLibrary(t *testing.T) {
	_, err := loader.Load("/nonexistent/libmissing.so", loader.WithOpener(Open))
	var lerr *loader.LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "", lerr.Symbol)
}
