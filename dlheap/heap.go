// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dlheap implements a Doug Lea style boundary-tag allocator: a
// single reserved address range, carved into variable-size chunks that
// split and coalesce on demand, with a size-sorted free list searched
// first-fit. Among a non-decreasing sorted list, first-fit is best-fit.
package dlheap

import (
	"errors"
	"unsafe"

	"github.com/interfere/cplalloc/internal/list"
	"github.com/interfere/cplalloc/internal/sysmem"
)

const trace = false

// ErrMaxSize is returned when New is asked for a non-positive maximum size.
var ErrMaxSize = errors.New("dlheap: maxSize must be > 0")

// initialCommitPages bounds how much of the reservation is actually
// committed (tracked as heap space) before the first expansion; it is
// expressed in pages rather than a raw byte count so it scales with
// whatever the host's page size turns out to be.
const initialCommitPages = 16

// Heap is a boundary-tag allocator over one reserved virtual address
// range. Its zero value is not usable; construct with New.
type Heap struct {
	mem       []byte
	startAddr uintptr
	endAddr   uintptr // one past the last committed byte
	maxAddr   uintptr // one past the last byte of the reservation
	head      list.DList
}

func chunkFromLink(n *list.DList) *chunk {
	return (*chunk)(list.Entry(n, chunkLinkOffset))
}

// New reserves maxSize bytes (rounded up to a whole number of pages) of
// address space and commits an initial window of it as one large free
// chunk. The committed window grows on demand, up to the full
// reservation, as allocations require it.
func New(maxSize int) (*Heap, error) {
	if maxSize <= 0 {
		return nil, ErrMaxSize
	}

	mem, err := sysmem.Reserve(maxSize)
	if err != nil {
		return nil, err
	}

	h := &Heap{mem: mem}
	h.startAddr = uintptr(unsafe.Pointer(&mem[0]))
	h.maxAddr = h.startAddr + uintptr(len(mem))
	h.endAddr = h.startAddr
	h.head.Init()

	commit := sysmem.PageSize() * initialCommitPages
	if uintptr(commit) > h.maxAddr-h.startAddr {
		commit = int(h.maxAddr - h.startAddr)
	}
	h.endAddr = h.startAddr + uintptr(commit)

	first := chunkAt(h.startAddr)
	first.head = uintptr(commit) | pinuseBit
	h.linkFree(first)

	if trace {
		tracef("New(%d) start=%#x end=%#x max=%#x", maxSize, h.startAddr, h.endAddr, h.maxAddr)
	}
	return h, nil
}

// Close releases the heap's entire reservation. Any pointer previously
// returned by Allocate becomes dangling.
func (h *Heap) Close() error {
	mem := h.mem
	if trace {
		tracef("Close() start=%#x", h.startAddr)
	}
	*h = Heap{}
	return sysmem.Release(mem)
}

func (h *Heap) okAddress(addr uintptr) bool {
	return addr >= h.startAddr && addr < h.endAddr
}

// insert places c into the free list in non-decreasing size order: the
// first entry whose size is >= c's size, or the tail if none is.
func (h *Heap) insert(c *chunk) {
	pos := &h.head
	for n := h.head.Next; n != &h.head; n = n.Next {
		if chunkFromLink(n).size() >= c.size() {
			pos = n
			break
		}
	}
	list.AddTail(&c.link, pos)
}

func (h *Heap) removeFree(c *chunk) {
	list.Del(&c.link)
}

// linkFree makes c (already sized and flagged as free) visible to the
// allocator: it stamps the chunk immediately following c, if any lies
// within the committed range, with c's size in prevFoot, and inserts c
// into the sorted free list. Every site where a chunk becomes free (or
// a free chunk's size changes) goes through linkFree, which keeps the
// prev_foot-equals-predecessor's-size invariant true unconditionally.
func (h *Heap) linkFree(c *chunk) {
	if follower := chunkPlusOffset(c, c.size()); addrOf(follower) != h.endAddr {
		follower.prevFoot = c.size()
	}
	h.insert(c)
}

func (h *Heap) findSmallest(need uintptr) *chunk {
	for n := h.head.Next; n != &h.head; n = n.Next {
		if c := chunkFromLink(n); c.size() >= need {
			return c
		}
	}
	return nil
}

// expandTo grows the committed window so it is exactly min(desired,
// the full reservation), rounded up to a page boundary. It reports
// whether the committed window actually grew.
func (h *Heap) expandTo(desired uintptr) bool {
	limit := h.maxAddr - h.startAddr
	rounded := uintptr(sysmem.RoundUpToPage(int(desired)))
	if rounded > limit {
		rounded = limit
	}
	if rounded <= h.endAddr-h.startAddr {
		return false
	}
	h.endAddr = h.startAddr + rounded
	return true
}

// absorbOrCreateTop folds newly committed space, ending at h.endAddr
// and starting at oldEnd, into the heap: if a free chunk already abuts
// oldEnd (the previous top of the heap was free), it is extended;
// otherwise a brand new free chunk is created to cover exactly the new
// bytes.
func (h *Heap) absorbOrCreateTop(oldEnd uintptr) {
	extra := h.endAddr - oldEnd

	var top *chunk
	list.ForEach(&h.head, func(n *list.DList) {
		if c := chunkFromLink(n); addrOf(c)+c.size() == oldEnd {
			top = c
		}
	})

	if top != nil {
		h.removeFree(top)
		top.head += extra
	} else {
		top = chunkAt(oldEnd)
		top.head = extra | pinuseBit
	}
	h.linkFree(top)
}

// Allocate returns a pointer to size bytes of usable storage, growing
// the committed window as needed, up to the full reservation. It
// returns a nil pointer (no error) if the request cannot be satisfied
// within the reservation's bound.
func (h *Heap) Allocate(size int) (unsafe.Pointer, error) {
	if size < 0 {
		panic("dlheap: Allocate: negative size")
	}
	ptr := h.allocateChunk(requestToChunkSize(uintptr(size)))
	if trace {
		tracef("Allocate(%d) -> %#x", size, uintptr(ptr))
	}
	return ptr, nil
}

func (h *Heap) allocateChunk(req uintptr) unsafe.Pointer {
	hole := h.findSmallest(req)
	if hole == nil {
		oldEnd := h.endAddr
		if !h.expandTo(h.endAddr - h.startAddr + req) {
			return nil
		}
		h.absorbOrCreateTop(oldEnd)
		return h.allocateChunk(req)
	}

	h.removeFree(hole)
	holeSize := hole.size()
	remainder := holeSize - req

	var chunkSize uintptr
	if remainder < minChunkSize {
		chunkSize = holeSize
		if next := chunkPlusOffset(hole, chunkSize); addrOf(next) != h.endAddr {
			next.setPinuse()
		}
	} else {
		chunkSize = req
		next := chunkPlusOffset(hole, chunkSize)
		next.head = remainder | pinuseBit
		h.linkFree(next)
	}

	hole.head = (hole.head & pinuseBit) | cinuseBit | chunkSize
	return chunk2ptr(hole)
}

// Free releases the chunk at ptr, coalescing with free neighbors on
// either side. Free accepts nil as a no-op; any other pointer not
// currently allocated from this heap is a fatal programmer error.
func (h *Heap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	addr := uintptr(ptr)
	if !h.okAddress(addr) {
		panic("dlheap: Free: pointer out of range")
	}

	c := ptr2chunk(addr)
	if c.head&inuseBits == pinuseBit {
		panic("dlheap: Free: double free")
	}

	size := c.size()

	if !c.pinuse() {
		leftSize := c.prevFoot
		left := chunkMinusOffset(c, leftSize)
		if !h.okAddress(addrOf(left)) {
			panic("dlheap: Free: corrupt left neighbor")
		}
		size += leftSize
		c = left
		h.removeFree(c)
	}

	if right := chunkPlusOffset(c, size); h.okAddress(addrOf(right)) {
		if !right.pinuse() {
			panic("dlheap: Free: right neighbor invariant violated")
		}
		if right.cinuse() {
			right.clearPinuse()
		} else {
			rightSize := right.size()
			if addrOf(right)+rightSize > h.endAddr {
				panic("dlheap: Free: right neighbor extends past end of heap")
			}
			h.removeFree(right)
			size += rightSize
		}
	}

	c.head = size | pinuseBit
	h.linkFree(c)

	if trace {
		tracef("Free(%#x)", addr)
	}
}

// Reallocate resizes the chunk at ptr to size bytes, preserving its
// contents up to the smaller of the old and new sizes. A nil ptr
// behaves like Allocate; a nil result (no error) means the request
// could not be satisfied and ptr is left unchanged.
func (h *Heap) Reallocate(ptr unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if ptr == nil {
		return h.Allocate(size)
	}
	if size < 0 {
		panic("dlheap: Reallocate: negative size")
	}

	addr := uintptr(ptr)
	if !h.okAddress(addr) {
		panic("dlheap: Reallocate: pointer out of range")
	}
	c := ptr2chunk(addr)
	if c.head&inuseBits == pinuseBit {
		panic("dlheap: Reallocate: chunk is not allocated")
	}

	curSize := c.size()
	reqSize := requestToChunkSize(uintptr(size))

	if reqSize <= curSize {
		return h.reallocShrink(c, curSize, reqSize), nil
	}

	right := chunkPlusOffset(c, curSize)
	if addrOf(right) == h.endAddr {
		return h.reallocGrowAtTop(c, curSize, reqSize)
	}
	if right.cinuse() {
		return h.reallocCopy(ptr, curSize, size)
	}
	return h.reallocAbsorbRight(c, curSize, reqSize, right, ptr, size)
}

func (h *Heap) reallocShrink(c *chunk, curSize, reqSize uintptr) unsafe.Pointer {
	rsize := curSize - reqSize
	if rsize < minChunkSize {
		return chunk2ptr(c)
	}

	if right := chunkPlusOffset(c, curSize); addrOf(right) != h.endAddr {
		if !right.pinuse() {
			panic("dlheap: Reallocate: right neighbor invariant violated")
		}
		if right.cinuse() {
			right.clearPinuse()
		} else {
			h.removeFree(right)
			rsize += right.size()
		}
	}

	top := chunkPlusOffset(c, reqSize)
	top.head = rsize | pinuseBit
	h.linkFree(top)

	c.head = (c.head & pinuseBit) | cinuseBit | reqSize
	return chunk2ptr(c)
}

func (h *Heap) reallocGrowAtTop(c *chunk, curSize, reqSize uintptr) (unsafe.Pointer, error) {
	deficit := reqSize - curSize
	oldEnd := h.endAddr
	oldCommitted := h.endAddr - h.startAddr
	if !h.expandTo(oldCommitted + deficit) {
		return nil, nil
	}

	grown := h.endAddr - oldEnd
	if grown < deficit {
		// The reservation's cap was reached before the full deficit
		// could be committed. The bytes that did get committed still
		// need to become a valid free chunk, or the heap is left with
		// committed address space no chunk accounts for.
		top := chunkAt(oldEnd)
		top.head = grown | pinuseBit
		h.linkFree(top)
		return nil, nil
	}

	topSize := grown - deficit
	if topSize < minChunkSize {
		reqSize += topSize
		c.head = (c.head & pinuseBit) | cinuseBit | reqSize
		return chunk2ptr(c), nil
	}

	top := chunkPlusOffset(c, reqSize)
	top.head = topSize | pinuseBit
	h.linkFree(top)

	c.head = (c.head & pinuseBit) | cinuseBit | reqSize
	return chunk2ptr(c), nil
}

func (h *Heap) reallocCopy(ptr unsafe.Pointer, curSize uintptr, newSize int) (unsafe.Pointer, error) {
	newPtr, err := h.Allocate(newSize)
	if err != nil || newPtr == nil {
		return newPtr, err
	}

	payload := int(curSize - chunkOverhead)
	n := payload
	if newSize < n {
		n = newSize
	}
	if n > 0 {
		src := unsafe.Slice((*byte)(ptr), n)
		dst := unsafe.Slice((*byte)(newPtr), n)
		copy(dst, src)
	}

	h.Free(ptr)
	return newPtr, nil
}

func (h *Heap) reallocAbsorbRight(c *chunk, curSize, reqSize uintptr, right *chunk, ptr unsafe.Pointer, newSize int) (unsafe.Pointer, error) {
	if !right.pinuse() {
		panic("dlheap: Reallocate: right neighbor invariant violated")
	}

	rs := right.size()
	deficit := reqSize - curSize
	afterRight := chunkPlusOffset(right, rs)

	switch {
	case rs < deficit:
		if addrOf(afterRight) == h.endAddr {
			h.removeFree(right)
			c.head += rs
			return h.Reallocate(ptr, newSize)
		}
		return h.reallocCopy(ptr, curSize, newSize)

	case rs > deficit+minChunkSize:
		h.removeFree(right)
		newRight := chunkPlusOffset(right, deficit)
		newRight.head = (rs - deficit) | pinuseBit
		h.linkFree(newRight)
		c.head = (c.head & pinuseBit) | cinuseBit | reqSize
		return chunk2ptr(c), nil

	default:
		h.removeFree(right)
		if addrOf(afterRight) != h.endAddr {
			afterRight.setPinuse()
		}
		c.head = (c.head & pinuseBit) | cinuseBit | (curSize + rs)
		return chunk2ptr(c), nil
	}
}
