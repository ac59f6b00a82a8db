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

// Package sdk provides the Go definitions of the Falcosecurity plugin API
// as seen from the host side: return codes, plugin types, field types,
// API versions and the shapes of the data exchanged with a plugin.
//
// The values in this package mirror the ones documented in the plugin
// developer's guide (https://falco.org/docs/plugins/developers_guide/)
// for the API generation hosted by this module. Packages loader and
// dynlib build on top of these definitions to load and drive plugins
// packaged as shared libraries.
package sdk
