// Copyright 2013 Alexey Komnin. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package list

import (
	"testing"
	"unsafe"
)

type dlistHolder struct {
	tag  int
	link DList
}

var dlistHolderLinkOffset = unsafe.Offsetof(dlistHolder{}.link)

func holderOf(n *DList) *dlistHolder {
	return (*dlistHolder)(Entry(n, dlistHolderLinkOffset))
}

func tags(head *DList) []int {
	var got []int
	ForEach(head, func(n *DList) {
		got = append(got, holderOf(n).tag)
	})
	return got
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDListEmpty(t *testing.T) {
	var head DList
	head.Init()
	if !head.Empty() {
		t.Fatal("freshly initialized list must be empty")
	}
}

func TestDListAddTailOrder(t *testing.T) {
	var head DList
	head.Init()

	a := &dlistHolder{tag: 1}
	b := &dlistHolder{tag: 2}
	c := &dlistHolder{tag: 3}

	AddTail(&a.link, &head)
	AddTail(&b.link, &head)
	AddTail(&c.link, &head)

	if got, want := tags(&head), []int{1, 2, 3}; !sameInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDListDelSplice(t *testing.T) {
	var head DList
	head.Init()

	a := &dlistHolder{tag: 1}
	b := &dlistHolder{tag: 2}
	c := &dlistHolder{tag: 3}

	AddTail(&a.link, &head)
	AddTail(&b.link, &head)
	AddTail(&c.link, &head)

	Del(&b.link)

	if got, want := tags(&head), []int{1, 3}; !sameInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDListDelAllEmpties(t *testing.T) {
	var head DList
	head.Init()

	a := &dlistHolder{tag: 1}
	AddTail(&a.link, &head)
	Del(&a.link)

	if !head.Empty() {
		t.Fatal("list must be empty after removing its only element")
	}
}

func TestDListInsertSortedPosition(t *testing.T) {
	// mirrors dlheap's insert-by-size scan: AddTail before the first
	// node whose "size" (here, tag) is >= the inserted node's tag.
	var head DList
	head.Init()

	sizes := []int{10, 30, 20, 10, 5}
	for _, sz := range sizes {
		n := &dlistHolder{tag: sz}
		pos := &head
		ForEach(&head, func(c *DList) {
			if pos == &head && holderOf(c).tag >= sz {
				pos = c
			}
		})
		AddTail(&n.link, pos)
	}

	got := tags(&head)
	want := []int{5, 10, 10, 20, 30}
	if !sameInts(got, want) {
		t.Fatalf("got %v, want %v (list not sorted non-decreasing)", got, want)
	}
}

func TestSListPushPopLIFO(t *testing.T) {
	var head SList
	a, b, c := &SList{}, &SList{}, &SList{}

	Push(&head, a)
	Push(&head, b)
	Push(&head, c)

	if Pop(&head) != c {
		t.Fatal("expected LIFO pop order: c first")
	}
	if Pop(&head) != b {
		t.Fatal("expected LIFO pop order: b second")
	}
	if Pop(&head) != a {
		t.Fatal("expected LIFO pop order: a third")
	}
	if Pop(&head) != nil {
		t.Fatal("expected nil from empty list")
	}
}
