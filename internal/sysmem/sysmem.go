// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sysmem is the one OS collaborator every allocator in cplalloc
// goes through to reserve and release a contiguous range of virtual
// memory. It owns no allocation policy of its own: callers decide how
// the range is carved into chunks or slabs.
package sysmem

import "os"

var pageSize = os.Getpagesize()

// PageSize returns the host's memory page size in bytes.
func PageSize() int { return pageSize }

// RoundUpToPage rounds n up to the next multiple of the OS page size.
// n must be >= 0.
func RoundUpToPage(n int) int {
	mask := pageSize - 1
	return (n + mask) &^ mask
}

// Reserve asks the OS for a private, zero-filled, anonymous mapping of
// size bytes, rounded up to a whole number of pages. The returned slice
// has length and capacity equal to the rounded size; its address is
// page-aligned. The mapping is both reserved and committed: reads and
// writes anywhere in the slice never fault for reasons of the mapping
// being absent.
func Reserve(size int) ([]byte, error) {
	return reserve(RoundUpToPage(size))
}

// Release returns a mapping previously obtained from Reserve to the OS.
// b must be exactly the slice Reserve returned (same base address and
// length); after Release, any pointer derived from b is dangling.
func Release(b []byte) error {
	return release(b)
}
