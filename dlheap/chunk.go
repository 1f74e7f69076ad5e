// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dlheap

import (
	"unsafe"

	"github.com/interfere/cplalloc/internal/list"
)

// Each chunk begins with two words of bookkeeping (prevFoot, head)
// followed by the same two-word span used either as payload (while the
// chunk is in use) or as free-list link pointers (while it is free).
// The boundary-tag trick is the overlap itself: prevFoot physically
// occupies the last word of whatever chunk precedes it, valid only
// when that predecessor is free.
type chunk struct {
	prevFoot uintptr
	head     uintptr
	link     list.DList
}

const (
	pinuseBit = uintptr(1)
	cinuseBit = uintptr(2)
	reservBit = uintptr(4)
	inuseBits = pinuseBit | cinuseBit
	flagsMask = inuseBits | reservBit
)

const wordSize = unsafe.Sizeof(uintptr(0))

// chunkOverhead is the bookkeeping cost charged against every request:
// one word, the head field. prevFoot is never charged against a live
// chunk's payload because it overlaps the previous chunk's tail.
const chunkOverhead = wordSize

var minChunkSize = unsafe.Sizeof(chunk{})

// padRequest rounds a raw byte request up to a chunk size: room for
// the header plus the request, rounded up so the low flag bits of the
// resulting size are always zero.
func padRequest(n uintptr) uintptr {
	return (n + chunkOverhead + flagsMask) &^ flagsMask
}

// requestToChunkSize is the size actually carved out of the heap for a
// request of n bytes: always at least minChunkSize, always a multiple
// of the flag-bit alignment.
func requestToChunkSize(n uintptr) uintptr {
	padded := padRequest(n)
	if padded < minChunkSize {
		return minChunkSize
	}
	return padded
}

func (c *chunk) size() uintptr { return c.head &^ flagsMask }
func (c *chunk) pinuse() bool  { return c.head&pinuseBit != 0 }
func (c *chunk) cinuse() bool  { return c.head&cinuseBit != 0 }
func (c *chunk) setPinuse()    { c.head |= pinuseBit }
func (c *chunk) clearPinuse()  { c.head &^= pinuseBit }

func addrOf(c *chunk) uintptr { return uintptr(unsafe.Pointer(c)) }

func chunkAt(addr uintptr) *chunk {
	return (*chunk)(unsafe.Pointer(addr))
}

func chunkPlusOffset(c *chunk, off uintptr) *chunk {
	return chunkAt(addrOf(c) + off)
}

func chunkMinusOffset(c *chunk, off uintptr) *chunk {
	return chunkAt(addrOf(c) - off)
}

var chunkLinkOffset = unsafe.Offsetof(chunk{}.link)

// chunk2ptr returns the payload pointer a caller sees for an allocated
// chunk: the address immediately after head, where the link field
// begins.
func chunk2ptr(c *chunk) unsafe.Pointer {
	return unsafe.Pointer(addrOf(c) + chunkLinkOffset)
}

// ptr2chunk is chunk2ptr's inverse.
func ptr2chunk(addr uintptr) *chunk {
	return chunkAt(addr - chunkLinkOffset)
}
