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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
async_extract_timeout: 500ms
metrics:
  enabled: true
  listen_address: 127.0.0.1:9000
load_plugins: [cloudtrail, json]
plugins:
  - name: cloudtrail
    library_path: libcloudtrail.so
    init_config:
      sqsDelete: true
      s3DownloadConcurrency: 64
    open_params: "s3://bucket/AWSLogs"
  - name: json
    library_path: /opt/plugins/libjson.so
    init_config: ""
  - name: dummy
    library_path: libdummy.so
    init_config: '{"jitter": 10}'
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, 500*time.Millisecond, cfg.AsyncExtractTimeout)
	assert.False(t, cfg.DisableAsyncExtract)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9000", cfg.Metrics.ListenAddress)
	assert.Equal(t, DefaultPluginsDir, cfg.PluginsDir)
	require.Len(t, cfg.Plugins, 3)

	ct := cfg.Plugins[0]
	assert.Equal(t, "cloudtrail", ct.Name)
	assert.JSONEq(t, `{"sqsDelete": true, "s3DownloadConcurrency": 64}`, string(ct.InitConfig))
	assert.Equal(t, "s3://bucket/AWSLogs", ct.OpenParams)
	assert.Equal(t, filepath.Join(DefaultPluginsDir, "libcloudtrail.so"), ct.Path(cfg.PluginsDir))

	assert.Equal(t, InitConfig(""), cfg.Plugins[1].InitConfig)
	assert.Equal(t, "/opt/plugins/libjson.so", cfg.Plugins[1].Path(cfg.PluginsDir))
	assert.Equal(t, InitConfig(`{"jitter": 10}`), cfg.Plugins[2].InitConfig)

	enabled := cfg.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "cloudtrail", enabled[0].Name)
	assert.Equal(t, "json", enabled[1].Name)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`plugins: [{name: a, library_path: liba.so}]`))
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Zero(t, cfg.AsyncExtractTimeout)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":8765", cfg.Metrics.ListenAddress)
	// all the plugins are enabled without load_plugins
	assert.Len(t, cfg.Enabled(), 1)

	cfg, err = Parse([]byte("load_plugins: []\nplugins: [{name: a, library_path: liba.so}]"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Enabled())
}

func TestInitConfigSequence(t *testing.T) {
	cfg, err := Parse([]byte(`
plugins:
  - name: a
    library_path: liba.so
    init_config: [1, "two"]
  - name: b
    library_path: libb.so
    init_config:
`))
	require.NoError(t, err)
	assert.Equal(t, InitConfig(`[1,"two"]`), cfg.Plugins[0].InitConfig)
	assert.Equal(t, InitConfig(""), cfg.Plugins[1].InitConfig)
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"bad yaml":          "plugins: [",
		"bad level":         "log_level: loud",
		"negative timeout":  "async_extract_timeout: -1s",
		"bad timeout":       "async_extract_timeout: soon",
		"empty name":        "plugins: [{library_path: liba.so}]",
		"empty path":        "plugins: [{name: a}]",
		"duplicate":         "plugins: [{name: a, library_path: liba.so}, {name: a, library_path: libb.so}]",
		"unknown load":      "load_plugins: [b]\nplugins: [{name: a, library_path: liba.so}]",
		"metrics no listen": "metrics: {enabled: true, listen_address: ''}",
		"bad init config":   "plugins: [{name: a, library_path: liba.so, init_config: {1: {2: 3}}}]",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Plugins, 3)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("log_level: loud"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, path)
}
