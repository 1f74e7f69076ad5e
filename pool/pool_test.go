// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import (
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
)

func TestNewRejectsBadChunkSize(t *testing.T) {
	if _, err := New(16, 4); err != ErrChunkSize {
		t.Fatalf("chunkSize == 16 must be rejected, got %v", err)
	}
	if _, err := New(8192, 4); err != ErrChunkSize {
		t.Fatalf("chunkSize == 8192 must be rejected, got %v", err)
	}
	if _, err := New(64, 0); err != ErrChunkCount {
		t.Fatalf("nChunks == 0 must be rejected, got %v", err)
	}
}

// TestExhaustionAndRestore drives a 4-chunk pool of 64-byte chunks to
// exhaustion: 4 distinct non-nil pointers at stride 64 from the pool
// base, then nil; freeing any one restores capacity for exactly one
// more allocation.
func TestExhaustionAndRestore(t *testing.T) {
	p, err := New(64, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	var got []unsafe.Pointer
	for i := 0; i < 4; i++ {
		ptr, err := p.Allocate(64)
		if err != nil {
			t.Fatal(err)
		}
		if ptr == nil {
			t.Fatalf("allocation %d: expected non-nil", i)
		}
		got = append(got, ptr)
	}

	for i, p1 := range got {
		for j, p2 := range got {
			if i != j && p1 == p2 {
				t.Fatalf("chunks %d and %d alias: %p", i, j, p1)
			}
		}
	}

	for i := 1; i < len(got); i++ {
		stride := uintptr(got[i]) - uintptr(got[i-1])
		if stride != 64 {
			t.Fatalf("expected 64-byte stride between consecutive chunks, got %d", stride)
		}
	}

	if ptr, err := p.Allocate(64); err != nil || ptr != nil {
		t.Fatalf("5th allocation from a 4-chunk pool must be nil, got %p, %v", ptr, err)
	}

	p.Free(got[2])

	ptr, err := p.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if ptr != got[2] {
		t.Fatalf("freeing a chunk must restore exactly one more allocation at its address, got %p want %p", ptr, got[2])
	}

	if ptr, err := p.Allocate(64); err != nil || ptr != nil {
		t.Fatalf("pool must be exhausted again, got %p, %v", ptr, err)
	}
}

func TestAllocateWrongSizePanics(t *testing.T) {
	p, err := New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched allocation size")
		}
	}()
	p.Allocate(32)
}

func TestFreeNilIsNoOp(t *testing.T) {
	p, err := New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Free(nil)
}

func TestReallocateCopiesAndFrees(t *testing.T) {
	p, err := New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	a, err := p.Allocate(64)
	if err != nil || a == nil {
		t.Fatal(err)
	}
	src := unsafe.Slice((*byte)(a), 64)
	for i := range src {
		src[i] = byte(i)
	}

	b, err := p.Reallocate(a, 64)
	if err != nil || b == nil {
		t.Fatal(err)
	}

	dst := unsafe.Slice((*byte)(b), 64)
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("byte %d: got %d want %d", i, dst[i], byte(i))
		}
	}

	// The old slot (a) must be back on the free list: with only 2
	// chunks and b now occupying one, allocating once more must reuse a.
	c, err := p.Allocate(64)
	if err != nil || c != a {
		t.Fatalf("expected reallocate to free the old chunk, got c=%p a=%p err=%v", c, a, err)
	}
}

func TestReallocateNilIsAllocate(t *testing.T) {
	p, err := New(64, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ptr, err := p.Reallocate(nil, 64)
	if err != nil || ptr == nil {
		t.Fatalf("Reallocate(nil, size) must behave like Allocate(size), got %p, %v", ptr, err)
	}
}

// TestRandomAllocFreeSequence drives the pool with cznic/mathutil's
// FC32 permuted generator, checking that Allocate never hands out a
// pointer that is already live.
func TestRandomAllocFreeSequence(t *testing.T) {
	const n = 37
	p, err := New(48, n)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	rng, err := mathutil.NewFC32(0, 1<<20, true)
	if err != nil {
		t.Fatal(err)
	}

	live := map[unsafe.Pointer]bool{}
	for i := 0; i < 5000; i++ {
		if len(live) == 0 || rng.Next()%2 == 0 {
			ptr, err := p.Allocate(48)
			if err != nil {
				t.Fatal(err)
			}
			if ptr == nil {
				continue
			}
			if live[ptr] {
				t.Fatalf("Allocate returned a pointer already live: %p", ptr)
			}
			live[ptr] = true
			continue
		}

		for k := range live {
			p.Free(k)
			delete(live, k)
			break
		}
	}
}
