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

// Package config loads the configuration of the plugin host from YAML,
// using the same layout of the plugins section of the Falco
// configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPluginsDir is the directory against which relative library paths
// are resolved.
const DefaultPluginsDir = "/usr/share/falco/plugins"

// Config is the configuration of the plugin host.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	PluginsDir string `yaml:"plugins_dir"`
	//
	// AsyncExtractTimeout bounds the time waited for an async extraction
	// result. Zero means no limit.
	AsyncExtractTimeout time.Duration `yaml:"async_extract_timeout"`
	DisableAsyncExtract bool          `yaml:"disable_async_extract"`
	//
	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics"`
	//
	// LoadPlugins lists the names of the plugins to load. All the
	// configured plugins are loaded if the key is missing, and none if
	// the list is empty.
	LoadPlugins []string       `yaml:"load_plugins"`
	Plugins     []PluginConfig `yaml:"plugins"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
}

// PluginConfig is the configuration of a single plugin.
type PluginConfig struct {
	Name        string     `yaml:"name"`
	LibraryPath string     `yaml:"library_path"`
	InitConfig  InitConfig `yaml:"init_config"`
	OpenParams  string     `yaml:"open_params"`
}

// InitConfig is the init configuration string of a plugin. In YAML, it
// can be either a string, passed as-is, or a mapping or sequence, encoded
// as JSON.
type InitConfig string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *InitConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*c = ""
			return nil
		}
		*c = InitConfig(value.Value)
		return nil
	case yaml.MappingNode, yaml.SequenceNode:
		var v interface{}
		if err := value.Decode(&v); err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: init_config cannot be encoded as JSON: %w", value.Line, err)
		}
		*c = InitConfig(b)
		return nil
	default:
		return fmt.Errorf("line %d: init_config must be a string or a mapping", value.Line)
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		PluginsDir: DefaultPluginsDir,
		Metrics: MetricsConfig{
			ListenAddress: ":8765",
		},
	}
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration. Missing keys take
// their default value.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.AsyncExtractTimeout < 0 {
		return errors.New("async_extract_timeout cannot be negative")
	}
	names := make(map[string]bool, len(c.Plugins))
	for i, p := range c.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugins[%d]: name cannot be empty", i)
		}
		if names[p.Name] {
			return fmt.Errorf("plugins[%d]: plugin %s is configured more than once", i, p.Name)
		}
		names[p.Name] = true
		if p.LibraryPath == "" {
			return fmt.Errorf("plugin %s: library_path cannot be empty", p.Name)
		}
	}
	for _, name := range c.LoadPlugins {
		if !names[name] {
			return fmt.Errorf("load_plugins: plugin %s is not configured", name)
		}
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return errors.New("metrics: listen_address cannot be empty")
	}
	return nil
}

// Level returns the configured logrus level.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Enabled returns the plugins to load, in the order of load_plugins if
// present, and in configuration order otherwise.
func (c *Config) Enabled() []PluginConfig {
	if c.LoadPlugins == nil {
		return append([]PluginConfig{}, c.Plugins...)
	}
	res := make([]PluginConfig, 0, len(c.LoadPlugins))
	for _, name := range c.LoadPlugins {
		for _, p := range c.Plugins {
			if p.Name == name {
				res = append(res, p)
				break
			}
		}
	}
	return res
}

// Path returns the library path of the plugin. Relative paths are
// resolved against dir.
func (p PluginConfig) Path(dir string) string {
	if filepath.IsAbs(p.LibraryPath) || dir == "" {
		return p.LibraryPath
	}
	return filepath.Join(dir, p.LibraryPath)
}
