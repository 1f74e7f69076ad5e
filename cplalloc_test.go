// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cplalloc

import (
	"testing"
)

func TestNewPoolDispatchesThroughAllocator(t *testing.T) {
	a, err := NewPool(64, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer DestroyPool(a)

	p, err := Allocate(a, 64)
	if err != nil || p == nil {
		t.Fatal(err)
	}
	Free(a, p)
}

func TestNewHeapDispatchesThroughAllocator(t *testing.T) {
	a, err := NewHeap(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer DestroyHeap(a)

	p, err := Allocate(a, 128)
	if err != nil || p == nil {
		t.Fatal(err)
	}

	q, err := Reallocate(a, p, 256)
	if err != nil || q == nil {
		t.Fatal(err)
	}

	Free(a, q)
}

func TestDestroyPoolRejectsWrongHandle(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected DestroyPool to panic on a non-pool handle")
		}
	}()
	DestroyPool(Default())
}

func TestDestroyHeapRejectsWrongHandle(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected DestroyHeap to panic on a non-heap handle")
		}
	}()
	DestroyHeap(Default())
}

func TestDestroyPoolRejectsHeapHandle(t *testing.T) {
	h, err := NewHeap(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer DestroyHeap(h)

	defer func() {
		if recover() == nil {
			t.Fatal("expected DestroyPool to panic when given a heap handle")
		}
	}()
	DestroyPool(h)
}
