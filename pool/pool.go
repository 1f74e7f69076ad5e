// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool implements a fixed-size-chunk allocator: every chunk in
// a Pool has the same size, carved up front from one contiguous
// mapping, and handed out/taken back through a LIFO free list. There is
// no splitting, no coalescing, and no search: allocation and free are
// both O(1).
package pool

import (
	"errors"
	"unsafe"

	"github.com/interfere/cplalloc/internal/list"
	"github.com/interfere/cplalloc/internal/sysmem"
)

const trace = false

// ErrChunkSize is returned when New is asked for a chunk size outside
// the allocator's supported range (16, 8192).
var ErrChunkSize = errors.New("pool: chunk size must satisfy 16 < chunkSize < 8192")

// ErrChunkCount is returned when New is asked for fewer than one chunk.
var ErrChunkCount = errors.New("pool: chunk count must be >= 1")

// errWrongSize is the fatal, programmer-error condition: a pool
// allocation whose requested size does not equal the pool's configured
// chunk size.
const errWrongSize = "pool: requested size does not match configured chunk size"

// Pool is a fixed-chunk-size allocator over one contiguous, page-backed
// mapping. Its zero value is not usable; construct with New.
type Pool struct {
	mem       []byte // the full reservation: N*chunkSize bytes of chunks
	base      uintptr
	chunkSize int
	nChunks   int
	free      list.SList // LIFO free list, chunk addresses linked in place
}

// New reserves N*chunkSize bytes in one mapping and seeds the free list
// so that the first N calls to Allocate return chunks at index
// 0, 1, 2, … in order.
//
// chunkSize must satisfy 16 < chunkSize < 8192; nChunks must be >= 1.
func New(chunkSize, nChunks int) (*Pool, error) {
	if chunkSize <= 16 || chunkSize >= 8192 {
		return nil, ErrChunkSize
	}
	if nChunks < 1 {
		return nil, ErrChunkCount
	}

	// The C original places its header struct at the tail of the mapped
	// buffer, since C has no separate managed heap to keep bookkeeping
	// on. Go does: *Pool lives on the Go heap like any other value, and
	// only the chunk storage itself needs to come from the OS mapping.
	mem, err := sysmem.Reserve(chunkSize * nChunks)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		mem:       mem,
		base:      uintptr(unsafe.Pointer(&mem[0])),
		chunkSize: chunkSize,
		nChunks:   nChunks,
	}

	// Seed the free list in descending index order so the first pops
	// return index 0, 1, 2, … in ascending address order.
	for i := nChunks - 1; i >= 0; i-- {
		entry := (*list.SList)(unsafe.Pointer(p.base + uintptr(i*chunkSize)))
		list.Push(&p.free, entry)
	}

	if trace {
		tracef("New(%d, %d) base=%#x", chunkSize, nChunks, p.base)
	}
	return p, nil
}

// ChunkSize reports the pool's fixed chunk size, the only size
// Allocate accepts.
func (p *Pool) ChunkSize() int { return p.chunkSize }

// Allocate pops the head of the free list. size must equal ChunkSize();
// passing any other value is a programmer error and panics. Allocate
// returns nil when the pool is exhausted, never an error: exhaustion is
// the only recoverable outcome this allocator has.
func (p *Pool) Allocate(size int) (unsafe.Pointer, error) {
	if size != p.chunkSize {
		panic(errWrongSize)
	}

	entry := list.Pop(&p.free)
	if entry == nil {
		if trace {
			tracef("Allocate(%d) exhausted", size)
		}
		return nil, nil
	}

	if trace {
		tracef("Allocate(%d) -> %#x", size, uintptr(unsafe.Pointer(entry)))
	}
	return unsafe.Pointer(entry), nil
}

// Free pushes ptr back onto the free list. Free does not validate that
// ptr belongs to this pool; that responsibility rests with the caller.
// Passing nil is a no-op.
func (p *Pool) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	entry := (*list.SList)(ptr)
	list.Push(&p.free, entry)
	if trace {
		tracef("Free(%#x)", uintptr(ptr))
	}
}

// Reallocate allocates a new chunk, copies min(size, ChunkSize()) bytes
// from the old one, and frees the old chunk. The new chunk comes from
// this same pool, and since every chunk in a pool is the same size,
// reallocation never changes capacity; it is observable only as a new
// address.
func (p *Pool) Reallocate(ptr unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if ptr == nil {
		return p.Allocate(size)
	}

	newPtr, err := p.Allocate(size)
	if err != nil || newPtr == nil {
		return newPtr, err
	}

	n := size
	if p.chunkSize < n {
		n = p.chunkSize
	}
	src := unsafe.Slice((*byte)(ptr), n)
	dst := unsafe.Slice((*byte)(newPtr), n)
	copy(dst, src)

	p.Free(ptr)
	return newPtr, nil
}

// Close releases the pool's entire reservation. Any pointer previously
// returned by Allocate becomes dangling.
func (p *Pool) Close() error {
	if trace {
		tracef("Close() base=%#x", p.base)
	}
	mem := p.mem
	*p = Pool{}
	return sysmem.Release(mem)
}
