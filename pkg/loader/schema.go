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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed fields.schema.json
var fieldsSchemaJSON string

var fieldsSchema = gojsonschema.NewStringLoader(fieldsSchemaJSON)

// fieldError is an error related to a specific field entry.
type fieldError struct {
	name string
	err  error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.name, e.err.Error())
}

func (e *fieldError) Unwrap() error {
	return e.err
}

// InitSchema describes the format of the configuration accepted by a
// plugin in Plugin.Init.
type InitSchema struct {
	Type   uint32
	Schema string
}

// schemaErrors joins the validation errors of a gojsonschema result.
func schemaErrors(result *gojsonschema.Result) error {
	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// parseFields parses the JSON field list returned by get_fields.
func parseFields(str string) ([]sdk.FieldEntry, error) {
	if len(str) == 0 {
		return nil, errors.New("returned an empty string")
	}
	result, err := gojsonschema.Validate(fieldsSchema, gojsonschema.NewStringLoader(str))
	if err != nil {
		return nil, fmt.Errorf("returned an invalid JSON: %w", err)
	}
	if !result.Valid() {
		return nil, schemaErrors(result)
	}

	var fields []sdk.FieldEntry
	if err := json.Unmarshal([]byte(str), &fields); err != nil {
		return nil, fmt.Errorf("returned an invalid JSON: %w", err)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, &fieldError{name: f.Name, err: errors.New("declared more than once")}
		}
		seen[f.Name] = true
	}
	return fields, nil
}

// parseEventSources parses the JSON array returned by
// get_extract_event_sources.
func parseEventSources(str string) ([]string, error) {
	if len(str) == 0 {
		return nil, errors.New("returned an empty string")
	}
	var root []interface{}
	if err := json.Unmarshal([]byte(str), &root); err != nil {
		return nil, errors.New("did not return a json array")
	}
	res := make([]string, 0, len(root))
	for _, v := range root {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("did not return a json array of strings")
		}
		res = append(res, s)
	}
	return res, nil
}

// validateInitConfig checks the config against the init schema of the
// plugin, if any. An empty config is replaced with an empty JSON object
// when a schema is present.
func validateInitConfig(schema *InitSchema, config string) (string, error) {
	if schema == nil || schema.Type != sdk.SchemaTypeJSON {
		return config, nil
	}
	if len(config) == 0 {
		config = "{}"
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema.Schema),
		gojsonschema.NewStringLoader(config))
	if err != nil {
		return "", err
	}
	if !result.Valid() {
		return "", schemaErrors(result)
	}
	return config, nil
}
