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

package sdk

// AsyncRequest is a single field extraction request sent to the
// asynchronous extractor of a plugin.
type AsyncRequest struct {
	EvtNum    uint64
	FieldID   uint32
	FieldType uint32
	Arg       string
	Data      []byte
}

// AsyncResult is the answer of the asynchronous extractor of a plugin
// to an AsyncRequest. Str is meaningful for ParamTypeCharBuf fields,
// U64 for all the other types. Present is false if the field has no
// value for the requested event.
type AsyncResult struct {
	RC      int32
	Str     string
	U64     uint64
	Present bool
}

// AsyncChannel is the plugin-facing half of the asynchronous extraction
// handshake. It is handed to plugin_register_async_extractor, and the
// plugin resolver loop uses it to wait for requests and to send back
// results.
type AsyncChannel interface {
	// Wait blocks until a new request is available. It returns false
	// when the channel has been shut down, in which case the resolver
	// loop must terminate.
	Wait() (*AsyncRequest, bool)
	//
	// Reply sends back the result of the last request returned by Wait.
	Reply(res AsyncResult)
}
