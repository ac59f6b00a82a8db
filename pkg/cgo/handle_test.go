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

package cgo

import (
	"reflect"
	"sync"
	"testing"
)

func TestHandle(t *testing.T) {
	v := 42

	tests := []struct {
		v1 interface{}
		v2 interface{}
	}{
		{v1: v, v2: v},
		{v1: &v, v2: &v},
		{v1: nil, v2: nil},
	}

	for _, tt := range tests {
		h1, err := NewHandle(tt.v1)
		if err != nil {
			t.Fatal(err)
		}
		h2, err := NewHandle(tt.v2)
		if err != nil {
			t.Fatal(err)
		}

		if uintptr(h1) == 0 || uintptr(h2) == 0 {
			t.Fatalf("NewHandle returns zero")
		}

		if uintptr(h1) == uintptr(h2) {
			t.Fatalf("Duplicated Go values should have different handles, but got equal")
		}

		h1v := h1.Value()
		h2v := h2.Value()
		if !reflect.DeepEqual(h1v, h2v) || !reflect.DeepEqual(h1v, tt.v1) {
			t.Fatalf("Value of a Handle got wrong, got %+v %+v, want %+v", h1v, h2v, tt.v1)
		}

		h1.Delete()
		h2.Delete()
	}

	if n := inUse(); n != 0 {
		t.Fatalf("handles are not cleared, got %d, want %d", n, 0)
	}
}

func TestInvalidHandle(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				return
			}
			t.Fatalf("Delete of zero handle did not trigger a panic")
		}()
		Handle(0).Delete()
	})

	t.Run("zero-value", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				return
			}
			t.Fatalf("Value of zero handle did not trigger a panic")
		}()
		Handle(0).Value()
	})

	t.Run("deleted", func(t *testing.T) {
		h, err := NewHandle(42)
		if err != nil {
			t.Fatal(err)
		}
		h.Delete()
		defer func() {
			if r := recover(); r != nil {
				return
			}
			t.Fatalf("Deleted handle did not trigger a panic")
		}()
		h.Value()
	})
}

func TestMaxHandle(t *testing.T) {
	hs := make([]Handle, 0, MaxHandle)
	for i := 1; i <= MaxHandle; i++ {
		h, err := NewHandle(i)
		if err != nil {
			t.Fatalf("NewHandle failed at handle #%d: %s", i, err)
		}
		hs = append(hs, h)
	}
	if _, err := NewHandle(0); err != ErrNoHandles {
		t.Fatalf("expected ErrNoHandles, got %v", err)
	}

	// deleting one handle makes room for a new one
	hs[10].Delete()
	h, err := NewHandle("reused")
	if err != nil {
		t.Fatal(err)
	}
	if h.Value() != "reused" {
		t.Fatalf("unexpected value %v", h.Value())
	}
	hs[10] = h

	for _, h := range hs {
		h.Delete()
	}
}

func TestHandleConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h, err := NewHandle(g)
				if err != nil {
					t.Error(err)
					return
				}
				if h.Value() != g {
					t.Errorf("unexpected value %v", h.Value())
				}
				h.Delete()
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkHandle(b *testing.B) {
	for i := 0; i < b.N; i++ {
		h, _ := NewHandle(i)
		_ = h.Value()
		h.Delete()
	}
}
