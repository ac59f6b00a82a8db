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
	"errors"
	"fmt"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/sirupsen/logrus"
)

// ErrNoOpener is returned by Load when no library opener is configured.
var ErrNoOpener = errors.New("no dynamic library opener configured")

// Library is a shared library opened by an Opener.
type Library interface {
	// Path returns the filesystem path of the library
	Path() string
	//
	// Lookup resolves an exported symbol into the typed entry point
	// declared for it in this package (e.g. StringInfoFunc for
	// plugin_get_name). It returns an error wrapping ErrSymbolNotFound
	// if the symbol is not exported.
	Lookup(symbol string) (interface{}, error)
	//
	// Close releases the library. No entry point obtained through
	// Lookup can be invoked after Close.
	Close() error
}

// Opener opens the shared library at the given path.
type Opener func(path string) (Library, error)

type options struct {
	opener     Opener
	logger     logrus.FieldLogger
	apiVersion sdk.Version
}

// Option customizes the behavior of Load.
type Option func(*options)

// WithOpener sets the function used to open shared libraries.
func WithOpener(o Opener) Option {
	return func(opts *options) {
		opts.opener = o
	}
}

// WithLogger sets the logger used by the loaded plugin.
func WithLogger(l logrus.FieldLogger) Option {
	return func(opts *options) {
		opts.logger = l
	}
}

// WithAPIVersion overrides the plugin API version supported by the host.
// Defaults to sdk.APIVersion.
func WithAPIVersion(v sdk.Version) Option {
	return func(opts *options) {
		opts.apiVersion = v
	}
}

// Load opens the shared library at the given path and loads it as a
// Falcosecurity plugin. The required plugin API version is checked before
// resolving any other symbol. All the symbols required by the plugin type
// are resolved at once, and the static metadata of the plugin is read and
// validated. On success, the returned Plugin is in the loaded state and
// must be initialized with Plugin.Init. On failure, the library is closed
// and a *LoadError, *VersionError, or *SchemaError is returned.
func Load(path string, opts ...Option) (*Plugin, error) {
	o := options{
		logger:     logrus.StandardLogger(),
		apiVersion: sdk.APIVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.opener == nil {
		return nil, &LoadError{Path: path, Err: ErrNoOpener}
	}

	lib, err := o.opener(path)
	if err != nil {
		var lerr *LoadError
		if errors.As(err, &lerr) {
			return nil, err
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	p, err := newPlugin(lib, &o)
	if err != nil {
		if cerr := lib.Close(); cerr != nil {
			o.logger.WithField("path", path).WithError(cerr).Warn("could not close plugin library")
		}
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"type":    sdk.TypeName(p.info.Type),
		"version": p.info.Version,
	}).Info("plugin loaded")
	return p, nil
}

func newPlugin(lib Library, o *options) (*Plugin, error) {
	p := &Plugin{
		lib: lib,
		log: o.logger.WithField("path", lib.Path()),
	}

	// the required api version is checked before anything else, so that
	// plugins built for another api version are rejected with a
	// meaningful error even if their symbol set differs
	required := []string{SymGetRequiredAPIVersion}
	if err := p.syms.resolve(lib, symbolRequirement{required: required}); err != nil {
		return nil, err
	}
	p.info.RequiredAPIVersion = p.syms.getRequiredAPIVersion()
	reqVersion, err := sdk.ParseVersion(p.info.RequiredAPIVersion)
	if err != nil {
		return nil, &VersionError{
			Path:  lib.Path(),
			Field: "required API version",
			Value: p.info.RequiredAPIVersion,
			Err:   err,
		}
	}
	if !reqVersion.CompatibleWith(o.apiVersion) {
		supported := o.apiVersion
		return nil, &VersionError{
			Path:      lib.Path(),
			Field:     "required API version",
			Value:     p.info.RequiredAPIVersion,
			Supported: &supported,
		}
	}

	if err := p.syms.resolve(lib, commonSymbols); err != nil {
		return nil, err
	}
	p.info.Type = p.syms.getType()
	switch p.info.Type {
	case sdk.TypeSourcePlugin:
		err = p.syms.resolve(lib, sourceSymbols)
	case sdk.TypeExtractorPlugin:
		err = p.syms.resolve(lib, extractorSymbols)
	default:
		err = &LoadError{
			Path:   lib.Path(),
			Symbol: SymGetType,
			Err:    fmt.Errorf("wrong plugin type %d", p.info.Type),
		}
	}
	if err != nil {
		return nil, err
	}
	p.log.Debug("plugin symbols resolved")

	if err := p.readInfo(); err != nil {
		return nil, err
	}
	p.log = p.log.WithField("plugin", p.info.Name)

	switch p.info.Type {
	case sdk.TypeSourcePlugin:
		p.source = &Source{p: p}
	case sdk.TypeExtractorPlugin:
		p.extractor = &Extractor{p: p}
	}
	return p, nil
}

// readInfo copies the static metadata of the plugin and parses its
// field schema and extraction event sources.
func (p *Plugin) readInfo() error {
	path := p.lib.Path()
	p.info.Name = p.syms.getName()
	p.info.Description = p.syms.getDescription()
	p.info.Contact = p.syms.getContact()
	p.info.Version = p.syms.getVersion()
	if _, err := sdk.ParseVersion(p.info.Version); err != nil {
		return &VersionError{
			Path:  path,
			Field: "plugin version",
			Value: p.info.Version,
			Err:   err,
		}
	}

	if p.syms.getInitSchema != nil {
		schema, schemaType := p.syms.getInitSchema()
		if schemaType == sdk.SchemaTypeJSON {
			p.initSchema = &InitSchema{Type: schemaType, Schema: schema}
		}
	}

	if p.info.Type == sdk.TypeSourcePlugin {
		p.info.ID = p.syms.getID()
		p.info.EventSource = p.syms.getEventSource()
	}

	if p.syms.getFields != nil {
		fields, err := parseFields(p.syms.getFields())
		if err != nil {
			return p.schemaError(SymGetFields, err)
		}
		p.fields = fields
		p.log.WithField("fields", len(fields)).Debug("plugin fields parsed")
	}

	p.info.ExtractEventSources = []string{}
	if p.syms.getExtractEventSources != nil {
		sources, err := parseEventSources(p.syms.getExtractEventSources())
		if err != nil {
			return p.schemaError(SymGetExtractEventSources, err)
		}
		p.info.ExtractEventSources = sources
	}
	return nil
}

func (p *Plugin) schemaError(symbol string, err error) error {
	serr := &SchemaError{
		Path:   p.lib.Path(),
		Plugin: p.info.Name,
		Symbol: symbol,
		Err:    err,
	}
	var ferr *fieldError
	if errors.As(err, &ferr) {
		serr.Field = ferr.name
		serr.Err = ferr.err
	}
	return serr
}
