// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package tile

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	id := New(3, 5, 4)
	assert.Equal(t, "4/0/4/3/5", id.Key())

	id.OverscaledZ = 6
	id.Wrap = -1
	assert.Equal(t, "6/-1/4/3/5", id.Key())
}

func TestKeyDistinguishesWrap(t *testing.T) {
	a := New(3, 5, 4)
	b := New(3, 5, 4)
	b.Wrap = 1
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestScaledTo(t *testing.T) {
	id := New(12, 10, 4)
	parent := id.ScaledTo(2)
	assert.Equal(t, maptile.New(3, 2, 2), parent.Canonical)
	assert.Equal(t, maptile.Zoom(2), parent.OverscaledZ)

	same := id.ScaledTo(4)
	assert.Equal(t, id.Canonical, same.Canonical)
}

func TestScaledToPanicsOnHigherZoom(t *testing.T) {
	id := New(1, 1, 2)
	assert.Panics(t, func() { id.ScaledTo(3) })
}

func TestCompositeKeySortsAndDeduplicates(t *testing.T) {
	a := New(1, 1, 3)
	b := New(2, 1, 3)
	c := New(1, 2, 3)

	key := CompositeKey([]ID{b, a, c, a})
	assert.Equal(t, CompositeKey([]ID{a, b, c}), key)
	assert.Equal(t, "3/0/3/1/1;3/0/3/1/2;3/0/3/2/1", key)
}

func TestCompositeKeyEmpty(t *testing.T) {
	assert.Equal(t, "", CompositeKey(nil))
}
