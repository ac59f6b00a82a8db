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

//go:build cgo

package dynlib

/*
#include <stdlib.h>
#include <string.h>
#include "plugin_api.h"
*/
import "C"
import (
	"unsafe"

	"github.com/falcosecurity/plugin-host-go/pkg/cgo"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

// asyncBridge connects the async_extractor_info slot shared with a plugin
// to the sdk.AsyncChannel of the host. The slot and the buffers it points
// to live in C memory, since the plugin retains them across calls.
type asyncBridge struct {
	ch      sdk.AsyncChannel
	info    *C.async_extractor_info
	handle  cgo.Handle
	pending bool
	arg     *C.char
	data    unsafe.Pointer
	datacap int
}

func newAsyncBridge(ch sdk.AsyncChannel) (*asyncBridge, error) {
	b := &asyncBridge{ch: ch}
	h, err := cgo.NewHandle(b)
	if err != nil {
		return nil, err
	}
	b.handle = h
	b.info = (*C.async_extractor_info)(C.calloc(1, C.sizeof_async_extractor_info))
	return b, nil
}

func (b *asyncBridge) release() {
	if b.info == nil {
		return
	}
	b.handle.Delete()
	C.free(unsafe.Pointer(b.arg))
	C.free(b.data)
	C.free(unsafe.Pointer(b.info))
	b.arg, b.data, b.info = nil, nil, nil
}

func (b *asyncBridge) result() sdk.AsyncResult {
	res := sdk.AsyncResult{
		RC:      int32(b.info.rc),
		U64:     uint64(b.info.res_u64),
		Present: b.info.field_present != 0,
	}
	res.Str, _ = takeString(b.info.res_str)
	b.info.res_str = nil
	return res
}

func (b *asyncBridge) setRequest(req *sdk.AsyncRequest) {
	C.free(unsafe.Pointer(b.arg))
	b.arg = C.CString(req.Arg)
	if len(req.Data) > b.datacap {
		C.free(b.data)
		b.data = C.malloc(C.size_t(len(req.Data)))
		b.datacap = len(req.Data)
	}
	if len(req.Data) > 0 {
		C.memcpy(b.data, unsafe.Pointer(&req.Data[0]), C.size_t(len(req.Data)))
	}
	b.info.evtnum = C.uint64_t(req.EvtNum)
	b.info.id = C.uint32_t(req.FieldID)
	b.info.ftype = C.uint32_t(req.FieldType)
	b.info.arg = b.arg
	b.info.data = (*C.uint8_t)(b.data)
	b.info.datalen = C.uint32_t(len(req.Data))
	b.info.field_present = 0
	b.info.res_str = nil
	b.info.res_u64 = 0
	b.info.rc = C.int32_t(sdk.SSPluginSuccess)
}

// wait publishes the result of the pending request, if any, and blocks
// until the next request is available.
func (b *asyncBridge) wait() bool {
	if b.pending {
		b.pending = false
		b.ch.Reply(b.result())
	}
	req, ok := b.ch.Wait()
	if !ok {
		return false
	}
	b.setRequest(req)
	b.pending = true
	return true
}

//export hostAsyncWait
func hostAsyncWait(ctx C.uintptr_t) C.bool {
	return C.bool(cgo.Handle(ctx).Value().(*asyncBridge).wait())
}
