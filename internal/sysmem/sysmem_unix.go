// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2013 Alexey Komnin.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package sysmem

import (
	"syscall"
	"unsafe"
)

func reserve(size int) ([]byte, error) {
	flags := syscall.MAP_PRIVATE | syscall.MAP_ANON
	prot := syscall.PROT_READ | syscall.PROT_WRITE
	b, err := syscall.Mmap(-1, 0, size, prot, flags)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(pageSize-1) != 0 {
		panic("sysmem: mmap returned a non-page-aligned address")
	}

	return b, nil
}

func release(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	return syscall.Munmap(b)
}
