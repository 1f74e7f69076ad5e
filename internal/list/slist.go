// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package list

// SList is an intrusive singly-linked LIFO list node, the Go analogue
// of the C sources' cpl_slist. A zero-value SList used as a head is an
// empty list.
type SList struct {
	Next *SList
}

// Push links entry onto the front of the list headed by h.
func Push(h *SList, entry *SList) {
	entry.Next = h.Next
	h.Next = entry
}

// Pop removes and returns the front entry of the list headed by h, or
// nil if h is empty.
func Pop(h *SList) *SList {
	first := h.Next
	if first != nil {
		h.Next = first.Next
	}
	return first
}
