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

// Package cplugin is a small extractor plugin written in C, used to test
// the native trampolines of dynlib without a shared library on disk.
package cplugin

/*
#cgo LDFLAGS: -lpthread
#include <pthread.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include "../../plugin_api.h"

typedef struct cp_state
{
	char* config;
	char* lasterr;
	pthread_t resolver;
	int resolving;
} cp_state;

char* cp_required_api_version() { return strdup("0.2.0"); }
uint32_t cp_type() { return 2; }
char* cp_name() { return strdup("cplugin"); }
char* cp_description() { return strdup("A native test extractor"); }
char* cp_contact() { return strdup("github.com/falcosecurity/plugin-host-go"); }
char* cp_version() { return strdup("1.2.3"); }
char* cp_fields()
{
	return strdup("[{\"type\":\"uint64\",\"name\":\"cp.len\",\"desc\":\"Payload length\"},"
		"{\"type\":\"string\",\"name\":\"cp.echo\",\"desc\":\"Event number, argument and payload\"}]");
}
char* cp_extract_event_sources() { return strdup("[\"dummy\"]"); }

// the schema is static, the host must not free it
const char* cp_init_schema(uint32_t* t)
{
	*t = 1;
	return "{\"type\":\"object\"}";
}

ss_plugin_t* cp_init(const char* config, int32_t* rc)
{
	cp_state* s = calloc(1, sizeof(cp_state));
	s->config = strdup(config);
	s->lasterr = strdup("");
	if (strstr(config, "fail") != NULL)
	{
		free(s->lasterr);
		s->lasterr = strdup("config rejected");
		*rc = 1;
		return s;
	}
	*rc = 0;
	return s;
}

void cp_destroy(ss_plugin_t* p)
{
	cp_state* s = p;
	if (s->resolving)
	{
		pthread_join(s->resolver, NULL);
	}
	free(s->config);
	free(s->lasterr);
	free(s);
}

char* cp_last_error(ss_plugin_t* p)
{
	return strdup(((cp_state*)p)->lasterr);
}

char* cp_extract_str(ss_plugin_t* p, uint64_t evtnum, uint32_t id, const char* arg, const uint8_t* data, uint32_t datalen)
{
	if (id != 1)
	{
		return NULL;
	}
	size_t n = strlen(arg) + datalen + 32;
	char* res = malloc(n);
	snprintf(res, n, "%llu:%s:%.*s", (unsigned long long)evtnum, arg, (int)datalen, (const char*)data);
	return res;
}

uint64_t cp_extract_u64(ss_plugin_t* p, uint64_t evtnum, uint32_t id, const char* arg, const uint8_t* data, uint32_t datalen, uint32_t* present)
{
	*present = id == 0 && datalen > 0;
	return datalen;
}

void* cp_resolve(void* arg)
{
	async_extractor_info* info = arg;
	while (info->cb_wait(info->wait_ctx))
	{
		if (info->ftype == 9)
		{
			info->res_str = cp_extract_str(NULL, info->evtnum, info->id, info->arg, info->data, info->datalen);
			info->field_present = info->res_str != NULL;
		}
		else
		{
			info->res_u64 = cp_extract_u64(NULL, info->evtnum, info->id, info->arg, info->data, info->datalen, &info->field_present);
		}
		info->rc = 0;
	}
	return NULL;
}

int32_t cp_register_async_extractor(ss_plugin_t* p, async_extractor_info* info)
{
	cp_state* s = p;
	if (pthread_create(&s->resolver, NULL, cp_resolve, info) != 0)
	{
		return 1;
	}
	s->resolving = 1;
	return 0;
}
*/
import "C"
import "unsafe"

// Symbols returns the entry points of the plugin, keyed by symbol name.
func Symbols() map[string]unsafe.Pointer {
	return map[string]unsafe.Pointer{
		"plugin_get_required_api_version":  unsafe.Pointer(C.cp_required_api_version),
		"plugin_get_type":                  unsafe.Pointer(C.cp_type),
		"plugin_get_name":                  unsafe.Pointer(C.cp_name),
		"plugin_get_description":           unsafe.Pointer(C.cp_description),
		"plugin_get_contact":               unsafe.Pointer(C.cp_contact),
		"plugin_get_version":               unsafe.Pointer(C.cp_version),
		"plugin_get_fields":                unsafe.Pointer(C.cp_fields),
		"plugin_get_extract_event_sources": unsafe.Pointer(C.cp_extract_event_sources),
		"plugin_get_init_schema":           unsafe.Pointer(C.cp_init_schema),
		"plugin_init":                      unsafe.Pointer(C.cp_init),
		"plugin_destroy":                   unsafe.Pointer(C.cp_destroy),
		"plugin_get_last_error":            unsafe.Pointer(C.cp_last_error),
		"plugin_extract_str":               unsafe.Pointer(C.cp_extract_str),
		"plugin_extract_u64":               unsafe.Pointer(C.cp_extract_u64),
		"plugin_register_async_extractor":  unsafe.Pointer(C.cp_register_async_extractor),
	}
}
