// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

func TestNewReturnsZeroedDistinctPointers(t *testing.T) {
	a := NewArena()
	p1 := New[point](a)
	p2 := New[point](a)
	require.NotSame(t, p1, p2)
	assert.Equal(t, point{}, *p1)
	p1.X = 7
	assert.Equal(t, point{}, *p2)
}

func TestMake(t *testing.T) {
	a := NewArena()
	p := Make(a, point{X: 1, Y: 2})
	assert.Equal(t, point{X: 1, Y: 2}, *p)
}

func TestResetReusesMemory(t *testing.T) {
	a := NewArena()
	p1 := New[point](a)
	p1.X = 42
	a.Reset()
	p2 := New[point](a)
	// Same slab slot, zeroed on reset.
	require.Same(t, p1, p2)
	assert.Equal(t, point{}, *p2)
}

func TestNewSlice(t *testing.T) {
	a := NewArena()
	s := NewSlice[[]int](a, 3, 8)
	assert.Len(t, s, 3)
	assert.Equal(t, 8, cap(s))

	assert.Nil(t, NewSlice[[]int](a, 0, 0))
}

func TestMakeSliceCopies(t *testing.T) {
	a := NewArena()
	src := []int{1, 2, 3}
	s := MakeSlice(a, src)
	src[0] = 99
	assert.Equal(t, []int{1, 2, 3}, s)
}

func TestAppendGrows(t *testing.T) {
	a := NewArena()
	var s []int
	for i := 0; i < 1000; i++ {
		s = Append(a, s, i)
	}
	require.Len(t, s, 1000)
	for i, v := range s {
		assert.Equal(t, i, v)
	}
}

func TestAppendWithinCapacityKeepsBackingArray(t *testing.T) {
	a := NewArena()
	s := NewSlice[[]int](a, 0, 4)
	s = Append(a, s, 1, 2)
	s2 := Append(a, s, 3)
	assert.Equal(t, &s[0], &s2[0])
}

func TestDifferentTypesGetSeparateSlabs(t *testing.T) {
	a := NewArena()
	p := New[point](a)
	n := New[int](a)
	p.X = 1
	*n = 2
	assert.Equal(t, point{X: 1}, *p)
	assert.Equal(t, 2, *n)
}

func TestZeroSizeTypes(t *testing.T) {
	type marker struct{}
	a := NewArena()
	m1 := Make(a, marker{})
	m2 := New[marker](a)
	require.NotNil(t, m1)
	require.NotNil(t, m2)

	s := NewSlice[[]marker](a, 2, 2)
	assert.Len(t, s, 2)

	a.Reset()
	assert.NotNil(t, Make(a, marker{}))
}

func TestLargeAllocation(t *testing.T) {
	a := NewArena()
	// Larger than one slab's element count.
	s := NewSlice[[]byte](a, slabSize*2, slabSize*2)
	assert.Len(t, s, slabSize*2)
}
