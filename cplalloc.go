// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cplalloc provides a uniform allocation interface over three
// allocator implementations: a pass-through default that delegates to
// Go's own runtime allocator, a fixed-size pool (package pool), and a
// boundary-tag heap that splits and coalesces variable-size chunks
// (package dlheap).
//
// Where the original C library dispatched through a vtable of three
// leading function-pointer struct fields, here each concrete allocator
// simply implements the Allocator interface; Go's interface method
// table already is that vtable.
package cplalloc

import (
	"unsafe"

	"github.com/interfere/cplalloc/dlheap"
	"github.com/interfere/cplalloc/pool"
)

const trace = false

// Allocator is the uniform handle every allocation call in this
// package dispatches through.
type Allocator interface {
	Allocate(size int) (unsafe.Pointer, error)
	Reallocate(p unsafe.Pointer, size int) (unsafe.Pointer, error)
	Free(p unsafe.Pointer)
}

// Allocate requests size bytes from a. A nil result with a nil error
// means the allocator could not satisfy the request; a non-nil error
// means the underlying OS collaborator failed.
func Allocate(a Allocator, size int) (unsafe.Pointer, error) {
	return a.Allocate(size)
}

// Free returns p to a. Every Allocator accepts a nil p as a no-op.
func Free(a Allocator, p unsafe.Pointer) {
	a.Free(p)
}

// Reallocate resizes the allocation at p, previously obtained from a,
// to size bytes, preserving its contents up to the smaller of the old
// and new sizes.
func Reallocate(a Allocator, p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	return a.Reallocate(p, size)
}

// NewPool creates a fixed-size-chunk allocator of nChunks chunks, each
// chunkSize bytes. See package pool for the chunk size contract.
func NewPool(chunkSize, nChunks int) (Allocator, error) {
	p, err := pool.New(chunkSize, nChunks)
	if err != nil {
		return nil, err
	}
	if trace {
		tracef("NewPool(%d, %d)", chunkSize, nChunks)
	}
	return p, nil
}

// DestroyPool releases a pool allocator's reservation. a must be a
// handle returned by NewPool; passing any other handle, including the
// default allocator, is a programmer error and panics.
func DestroyPool(a Allocator) error {
	p, ok := a.(*pool.Pool)
	if !ok {
		panic("cplalloc: DestroyPool: handle was not created by NewPool")
	}
	if trace {
		tracef("DestroyPool")
	}
	return p.Close()
}

// NewHeap creates a boundary-tag allocator over a reservation of up to
// maxSize bytes. See package dlheap for the splitting and coalescing
// policy.
func NewHeap(maxSize int) (Allocator, error) {
	h, err := dlheap.New(maxSize)
	if err != nil {
		return nil, err
	}
	if trace {
		tracef("NewHeap(%d)", maxSize)
	}
	return h, nil
}

// DestroyHeap releases a heap allocator's reservation. a must be a
// handle returned by NewHeap; passing any other handle, including the
// default allocator, is a programmer error and panics.
func DestroyHeap(a Allocator) error {
	h, ok := a.(*dlheap.Heap)
	if !ok {
		panic("cplalloc: DestroyHeap: handle was not created by NewHeap")
	}
	if trace {
		tracef("DestroyHeap")
	}
	return h.Close()
}
