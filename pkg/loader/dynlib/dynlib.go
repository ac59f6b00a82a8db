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

// Package dynlib implements loader.Library on top of the dynamic linking
// loader of the operating system.
package dynlib

// note: cgo does not support calling function pointers, so each plugin
// API signature has a trampoline below. Plugin state and instance
// pointers are passed as uintptr_t, since they are opaque to the host.

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include "plugin_api.h"

extern bool hostAsyncWait(uintptr_t ctx);

static void* __dl_open(const char* path)
{
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static void* __dl_sym(void* h, const char* name)
{
	dlerror();
	return dlsym(h, name);
}

static const char* __dl_error()
{
	return dlerror();
}

static int __dl_close(void* h)
{
	return dlclose(h);
}

static char* __str_info(void* f)
{
	return ((char* (*)())f)();
}

static uint32_t __u32_info(void* f)
{
	return ((uint32_t (*)())f)();
}

static const char* __get_init_schema(void* f, uint32_t* t)
{
	return ((const char* (*)(uint32_t*))f)(t);
}

static uintptr_t __init(void* f, const char* config, int32_t* rc)
{
	return (uintptr_t)((ss_plugin_t* (*)(const char*, int32_t*))f)(config, rc);
}

static void __destroy(void* f, uintptr_t s)
{
	((void (*)(ss_plugin_t*))f)((ss_plugin_t*)s);
}

static char* __get_last_error(void* f, uintptr_t s)
{
	return ((char* (*)(ss_plugin_t*))f)((ss_plugin_t*)s);
}

static uintptr_t __open(void* f, uintptr_t s, const char* params, int32_t* rc)
{
	return (uintptr_t)((ss_instance_t* (*)(ss_plugin_t*, const char*, int32_t*))f)((ss_plugin_t*)s, params, rc);
}

static void __close(void* f, uintptr_t s, uintptr_t h)
{
	((void (*)(ss_plugin_t*, ss_instance_t*))f)((ss_plugin_t*)s, (ss_instance_t*)h);
}

static int32_t __next(void* f, uintptr_t s, uintptr_t h, uint8_t** data, uint32_t* datalen, uint64_t* ts)
{
	return ((int32_t (*)(ss_plugin_t*, ss_instance_t*, uint8_t**, uint32_t*, uint64_t*))f)((ss_plugin_t*)s, (ss_instance_t*)h, data, datalen, ts);
}

static int32_t __next_batch(void* f, uintptr_t s, uintptr_t h, uint32_t* nevts, uint8_t*** data, uint32_t** datalen, uint64_t** ts)
{
	return ((int32_t (*)(ss_plugin_t*, ss_instance_t*, uint32_t*, uint8_t***, uint32_t**, uint64_t**))f)((ss_plugin_t*)s, (ss_instance_t*)h, nevts, data, datalen, ts);
}

static char* __get_progress(void* f, uintptr_t s, uintptr_t h, uint32_t* pct)
{
	return ((char* (*)(ss_plugin_t*, ss_instance_t*, uint32_t*))f)((ss_plugin_t*)s, (ss_instance_t*)h, pct);
}

static char* __event_to_string(void* f, uintptr_t s, const uint8_t* data, uint32_t datalen)
{
	return ((char* (*)(ss_plugin_t*, const uint8_t*, uint32_t))f)((ss_plugin_t*)s, data, datalen);
}

static char* __extract_str(void* f, uintptr_t s, uint64_t evtnum, uint32_t id, const char* arg, const uint8_t* data, uint32_t datalen)
{
	return ((char* (*)(ss_plugin_t*, uint64_t, uint32_t, const char*, const uint8_t*, uint32_t))f)((ss_plugin_t*)s, evtnum, id, arg, data, datalen);
}

static uint64_t __extract_u64(void* f, uintptr_t s, uint64_t evtnum, uint32_t id, const char* arg, const uint8_t* data, uint32_t datalen, uint32_t* present)
{
	return ((uint64_t (*)(ss_plugin_t*, uint64_t, uint32_t, const char*, const uint8_t*, uint32_t, uint32_t*))f)((ss_plugin_t*)s, evtnum, id, arg, data, datalen, present);
}

static bool __wait_bridge(void* wait_ctx)
{
	return hostAsyncWait((uintptr_t)wait_ctx);
}

static int32_t __register_async_extractor(void* f, uintptr_t s, async_extractor_info* info, uintptr_t ctx)
{
	info->cb_wait = __wait_bridge;
	info->wait_ctx = (void*)ctx;
	return ((int32_t (*)(ss_plugin_t*, async_extractor_info*))f)((ss_plugin_t*)s, info);
}
*/
import "C"
import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

var errClosed = errors.New("library is closed")

// Library is a shared library opened with dlopen.
type Library struct {
	m       sync.Mutex
	path    string
	handle  unsafe.Pointer
	bridges []*asyncBridge
}

// Open opens the shared library at the given path. It can be used as a
// loader.Opener.
func Open(path string) (loader.Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	h := C.__dl_open(cpath)
	if h == nil {
		return nil, &loader.LoadError{Path: path, Err: errors.New(dlError())}
	}
	return &Library{path: path, handle: h}, nil
}

func dlError() string {
	if msg := C.__dl_error(); msg != nil {
		return C.GoString(msg)
	}
	return "unknown dynamic loader error"
}

// takeString copies a string allocated by the plugin and releases it. The
// boolean is false if str is a null pointer.
func takeString(str *C.char) (string, bool) {
	if str == nil {
		return "", false
	}
	res := C.GoString(str)
	C.free(unsafe.Pointer(str))
	return res, true
}

// cBytes returns a pointer to the first byte of b, or nil if b is empty.
func cBytes(b []byte) *C.uint8_t {
	if len(b) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&b[0]))
}

// view returns a slice over plugin-owned memory.
func view(data *C.uint8_t, datalen C.uint32_t) []byte {
	if data == nil || datalen == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), int(datalen))
}

// Path implements loader.Library.
func (l *Library) Path() string {
	return l.path
}

// Close implements loader.Library. The async extraction slots registered
// by the plugin are released too, so the plugin must be destroyed first.
func (l *Library) Close() error {
	l.m.Lock()
	defer l.m.Unlock()
	if l.handle == nil {
		return errClosed
	}
	for _, b := range l.bridges {
		b.release()
	}
	l.bridges = nil
	if C.__dl_close(l.handle) != 0 {
		return fmt.Errorf("%s: %s", l.path, dlError())
	}
	l.handle = nil
	return nil
}

// Lookup implements loader.Library.
func (l *Library) Lookup(symbol string) (interface{}, error) {
	l.m.Lock()
	defer l.m.Unlock()
	if l.handle == nil {
		return nil, errClosed
	}
	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))
	f := C.__dl_sym(l.handle, csym)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", loader.ErrSymbolNotFound, dlError())
	}
	return l.wrap(symbol, f)
}

func (l *Library) wrap(symbol string, f unsafe.Pointer) (interface{}, error) {
	switch symbol {
	case loader.SymGetRequiredAPIVersion,
		loader.SymGetName,
		loader.SymGetDescription,
		loader.SymGetContact,
		loader.SymGetVersion,
		loader.SymGetEventSource,
		loader.SymGetFields,
		loader.SymGetExtractEventSources:
		return loader.StringInfoFunc(func() string {
			s, _ := takeString(C.__str_info(f))
			return s
		}), nil
	case loader.SymGetType, loader.SymGetID:
		return loader.U32InfoFunc(func() uint32 {
			return uint32(C.__u32_info(f))
		}), nil
	case loader.SymGetInitSchema:
		return loader.InitSchemaFunc(func() (string, uint32) {
			var t C.uint32_t
			// the schema is a static string owned by the plugin
			s := C.__get_init_schema(f, &t)
			if s == nil {
				return "", sdk.SchemaTypeNone
			}
			return C.GoString(s), uint32(t)
		}), nil
	case loader.SymInit:
		return loader.InitFunc(func(config string) (sdk.State, int32) {
			cconfig := C.CString(config)
			defer C.free(unsafe.Pointer(cconfig))
			var rc C.int32_t
			s := C.__init(f, cconfig, &rc)
			return sdk.State(s), int32(rc)
		}), nil
	case loader.SymDestroy:
		return loader.DestroyFunc(func(s sdk.State) {
			C.__destroy(f, C.uintptr_t(s))
		}), nil
	case loader.SymGetLastError:
		return loader.LastErrorFunc(func(s sdk.State) string {
			str, _ := takeString(C.__get_last_error(f, C.uintptr_t(s)))
			return str
		}), nil
	case loader.SymOpen:
		return loader.OpenFunc(func(s sdk.State, params string) (sdk.Instance, int32) {
			cparams := C.CString(params)
			defer C.free(unsafe.Pointer(cparams))
			var rc C.int32_t
			h := C.__open(f, C.uintptr_t(s), cparams, &rc)
			return sdk.Instance(h), int32(rc)
		}), nil
	case loader.SymClose:
		return loader.CloseFunc(func(s sdk.State, i sdk.Instance) {
			C.__close(f, C.uintptr_t(s), C.uintptr_t(i))
		}), nil
	case loader.SymNext:
		return loader.NextFunc(func(s sdk.State, i sdk.Instance) (sdk.Event, int32) {
			var data *C.uint8_t
			var datalen C.uint32_t
			var ts C.uint64_t
			rc := C.__next(f, C.uintptr_t(s), C.uintptr_t(i), &data, &datalen, &ts)
			if rc != C.int32_t(sdk.SSPluginSuccess) {
				return sdk.Event{}, int32(rc)
			}
			return sdk.Event{Data: view(data, datalen), Timestamp: uint64(ts)}, int32(rc)
		}), nil
	case loader.SymNextBatch:
		return loader.NextBatchFunc(func(s sdk.State, i sdk.Instance, dst []sdk.Event) ([]sdk.Event, int32) {
			var nevts C.uint32_t
			var data **C.uint8_t
			var datalen *C.uint32_t
			var ts *C.uint64_t
			rc := C.__next_batch(f, C.uintptr_t(s), C.uintptr_t(i), &nevts, &data, &datalen, &ts)
			if nevts == 0 || data == nil {
				return dst, int32(rc)
			}
			n := int(nevts)
			datas := unsafe.Slice(data, n)
			lens := unsafe.Slice(datalen, n)
			tss := unsafe.Slice(ts, n)
			for j := 0; j < n; j++ {
				dst = append(dst, sdk.Event{Data: view(datas[j], lens[j]), Timestamp: uint64(tss[j])})
			}
			return dst, int32(rc)
		}), nil
	case loader.SymGetProgress:
		return loader.ProgressFunc(func(s sdk.State, i sdk.Instance) (string, uint32) {
			var pct C.uint32_t
			str, _ := takeString(C.__get_progress(f, C.uintptr_t(s), C.uintptr_t(i), &pct))
			return str, uint32(pct)
		}), nil
	case loader.SymEventToString:
		return loader.EventToStringFunc(func(s sdk.State, data []byte) string {
			str, _ := takeString(C.__event_to_string(f, C.uintptr_t(s), cBytes(data), C.uint32_t(len(data))))
			return str
		}), nil
	case loader.SymExtractStr:
		return loader.ExtractStrFunc(func(s sdk.State, evtNum uint64, fieldID uint32, arg string, data []byte) (string, bool) {
			carg := C.CString(arg)
			defer C.free(unsafe.Pointer(carg))
			return takeString(C.__extract_str(f, C.uintptr_t(s), C.uint64_t(evtNum), C.uint32_t(fieldID), carg, cBytes(data), C.uint32_t(len(data))))
		}), nil
	case loader.SymExtractU64:
		return loader.ExtractU64Func(func(s sdk.State, evtNum uint64, fieldID uint32, arg string, data []byte) (uint64, bool) {
			carg := C.CString(arg)
			defer C.free(unsafe.Pointer(carg))
			var present C.uint32_t
			v := C.__extract_u64(f, C.uintptr_t(s), C.uint64_t(evtNum), C.uint32_t(fieldID), carg, cBytes(data), C.uint32_t(len(data)), &present)
			return uint64(v), present != 0
		}), nil
	case loader.SymRegisterAsyncExtractor:
		return loader.RegisterAsyncExtractorFunc(func(s sdk.State, ch sdk.AsyncChannel) int32 {
			return l.registerAsync(f, s, ch)
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown plugin api symbol %s", loader.ErrSymbolNotFound, symbol)
	}
}

func (l *Library) registerAsync(f unsafe.Pointer, s sdk.State, ch sdk.AsyncChannel) int32 {
	b, err := newAsyncBridge(ch)
	if err != nil {
		return sdk.SSPluginFailure
	}
	rc := int32(C.__register_async_extractor(f, C.uintptr_t(s), b.info, C.uintptr_t(b.handle)))
	if rc != sdk.SSPluginSuccess {
		b.release()
		return rc
	}
	l.m.Lock()
	l.bridges = append(l.bridges, b)
	l.m.Unlock()
	return rc
}
