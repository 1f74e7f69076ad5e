// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package list implements the two intrusive linked lists cplalloc's
// allocators thread their free chunks through: a singly-linked LIFO
// list for the pool allocator and a sentinel-style circular
// doubly-linked list, sorted by chunk size, for the boundary-tag heap.
//
// Both lists are intrusive: the link fields live inside the caller's
// own record (a pool chunk, a heap chunk) rather than in a
// separately-allocated node, so list operations never allocate.
package list

import "unsafe"

// DList is an intrusive circular doubly-linked list node. A DList used
// as a sentinel head represents the empty list when Prev and Next both
// point back to itself; every other DList is embedded inside some
// caller record and reached through Entry.
type DList struct {
	Prev, Next *DList
}

// Init makes h an empty list.
func (h *DList) Init() {
	h.Prev = h
	h.Next = h
}

// Empty reports whether h, used as a sentinel head, has no elements.
func (h *DList) Empty() bool {
	return h.Next == h
}

func insert(n, prev, next *DList) {
	next.Prev = n
	n.Next = next
	n.Prev = prev
	prev.Next = n
}

// AddTail inserts n immediately before pos, i.e. at the tail of the
// list whose head is pos's predecessor chain. Passing the sentinel head
// as pos appends n as the new last element of the list.
func AddTail(n, pos *DList) {
	insert(n, pos.Prev, pos)
}

// Del splices n out of whatever list it is currently linked into. n's
// own Prev/Next are left dangling (pointing at n's former neighbors);
// the caller must not rely on their value afterwards.
func Del(n *DList) {
	n.Prev.Next = n.Next
	n.Next.Prev = n.Prev
}

// Entry recovers the address of the record embedding a DList field,
// given the field's address and its byte offset within the record.
// It is the Go analogue of the C sources' offsetof-based
// cpl_dlist_entry macro.
func Entry(n *DList, fieldOffset uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(n)) - fieldOffset)
}

// ForEach calls visit for every node in the list headed by h, in
// list order, skipping the sentinel itself. visit must not mutate the
// list's linkage for nodes other than the one it was called with.
func ForEach(h *DList, visit func(*DList)) {
	for n := h.Next; n != h; n = n.Next {
		visit(n)
	}
}
