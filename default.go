// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cplalloc

import "unsafe"

// defaultAllocator is a thin pass-through over Go's own runtime
// allocator: Allocate backs every request with a freshly made byte
// slice and Free simply drops cplalloc's own reference to it. Neither
// splits nor coalesces nor has a size limit of its own; Go's garbage
// collector and runtime allocator do that work.
//
// Because Allocate hands out unsafe.Pointer rather than a Go slice
// value, the garbage collector has no reachable reference to keep the
// backing array alive once the caller only holds the bare pointer.
// live pins every outstanding allocation's slice header so the backing
// memory survives until Free (or never, if the caller leaks it), the
// same role a mapped-region registry plays for OS-backed pages, just
// over Go-heap memory instead.
type defaultAllocator struct {
	live map[unsafe.Pointer][]byte
}

var defaultInstance = &defaultAllocator{live: map[unsafe.Pointer][]byte{}}

// Default returns the process-wide pass-through allocator. It is a
// singleton: NewPool and NewHeap create independent handles, but there
// is only ever one default allocator, and it cannot be destroyed.
func Default() Allocator { return defaultInstance }

// Allocate returns size bytes of zeroed storage. Unlike the pool and
// heap allocators, size == 0 and size > 0 are both always satisfiable;
// Default never returns a nil pointer with a nil error.
func (d *defaultAllocator) Allocate(size int) (unsafe.Pointer, error) {
	if size < 0 {
		panic("cplalloc: Allocate: negative size")
	}

	backing := size
	if backing == 0 {
		backing = 1
	}
	b := make([]byte, backing)
	p := unsafe.Pointer(&b[0])
	d.live[p] = b

	if trace {
		tracef("Default.Allocate(%d) -> %#x", size, uintptr(p))
	}
	return p, nil
}

// Free releases p, previously returned by Allocate. Passing nil is a
// no-op; passing any pointer not currently tracked is a programmer
// error and panics.
func (d *defaultAllocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	if _, ok := d.live[p]; !ok {
		panic("cplalloc: Default.Free: pointer not owned by the default allocator")
	}
	delete(d.live, p)

	if trace {
		tracef("Default.Free(%#x)", uintptr(p))
	}
}

// Reallocate resizes the allocation at p to size bytes, preserving its
// contents up to the smaller of the old and new sizes. A nil p behaves
// like Allocate.
func (d *defaultAllocator) Reallocate(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if p == nil {
		return d.Allocate(size)
	}

	old, ok := d.live[p]
	if !ok {
		panic("cplalloc: Default.Reallocate: pointer not owned by the default allocator")
	}

	newPtr, err := d.Allocate(size)
	if err != nil {
		return nil, err
	}

	n := len(old)
	if size < n {
		n = size
	}
	if n > 0 {
		dst := unsafe.Slice((*byte)(newPtr), n)
		copy(dst, old[:n])
	}

	d.Free(p)
	return newPtr, nil
}
