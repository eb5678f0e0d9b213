// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mem provides a per-frame arena. Frame recordings allocate their
// commands from an arena that is reset between frames, so a steady-state
// frame does not grow the heap.
package mem

import (
	"reflect"
	"unsafe"
)

// Slabs hold at least this many bytes, so small command types share an
// allocation.
const slabSize = 64 * 1024

type slab struct {
	// buf keeps the backing array alive; its element type is the slab's
	// type. len == cap.
	buf  reflect.Value
	used int
}

type Arena struct {
	slabs map[reflect.Type][]slab
}

func NewArena() *Arena {
	return &Arena{
		slabs: make(map[reflect.Type][]slab),
	}
}

// zerobase backs all zero-size allocations, like the runtime's.
var zerobase struct{}

func (a *Arena) alloc(typ reflect.Type, num int) unsafe.Pointer {
	if typ.Size() == 0 {
		return unsafe.Pointer(&zerobase)
	}
	slabs := a.slabs[typ]
	for i := range slabs {
		sl := &slabs[i]
		if sl.buf.Cap()-sl.used >= num {
			ptr := unsafe.Add(sl.buf.UnsafePointer(), uintptr(sl.used)*typ.Size())
			sl.used += num
			return ptr
		}
	}
	n := slabSize / int(typ.Size())
	if n < num {
		n = num
	}
	buf := reflect.MakeSlice(reflect.SliceOf(typ), n, n)
	a.slabs[typ] = append(slabs, slab{buf: buf, used: num})
	return buf.UnsafePointer()
}

// Reset makes all of the arena's memory available for reuse. It zeroes the
// used portions of the slabs so that stale values don't keep Go pointers
// alive. Pointers obtained from the arena before the reset must not be
// used afterwards.
func (a *Arena) Reset() {
	if a.slabs == nil {
		a.slabs = make(map[reflect.Type][]slab)
	}
	for _, slabs := range a.slabs {
		for i := range slabs {
			sl := &slabs[i]
			for j := 0; j < sl.used; j++ {
				sl.buf.Index(j).SetZero()
			}
			sl.used = 0
		}
	}
}

func New[T any](a *Arena) *T {
	var t *T
	// We cannot use TypeOf(*new(T)) when T is an interface type, because
	// that passes a nil interface to TypeOf, which returns nil.
	typ := reflect.TypeOf(t).Elem()
	return (*T)(a.alloc(typ, 1))
}

func Make[T any](a *Arena, v T) *T {
	ptr := New[T](a)
	*ptr = v
	return ptr
}

func NewSlice[T ~[]E, E any](a *Arena, len, cap int) T {
	if cap == 0 {
		return nil
	}
	var e *E
	ptr := a.alloc(reflect.TypeOf(e).Elem(), cap)
	return T(unsafe.Slice((*E)(ptr), cap)[:len])
}

func MakeSlice[T ~[]E, E any](a *Arena, values T) T {
	s := NewSlice[T, E](a, len(values), len(values))
	copy(s, values)
	return s
}

func Append[T ~[]E, E any](a *Arena, s T, data ...E) T {
	s = growSlice(a, s, len(data))
	s = append(s, data...)
	return s
}

func growSlice[T ~[]E, E any](a *Arena, s T, n int) T {
	const growThreshold = 256
	newLen := len(s) + n
	newCap := cap(s)

	if newCap > 0 {
		for newLen > newCap {
			if newCap < growThreshold {
				newCap *= 2
			} else {
				newCap += newCap / 4
			}
		}
	} else {
		newCap = n
	}
	if newCap == cap(s) {
		return s
	}
	s2 := NewSlice[T, E](a, len(s), newCap)
	copy(s2, s)
	return s2
}
