// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rtt

import (
	"github.com/gomaps/drape/gmath"
	"github.com/gomaps/drape/tile"
)

// VisibleTile is one composite tile in the current viewport, as reported
// by the source collaborators. The Record field belongs to the tile object
// and must be carried across frames for caching to work; everything else
// is rebuilt per frame.
type VisibleTile struct {
	ID tile.ID

	// Sources maps each contributing source's ID to the source tiles whose
	// content overlaps this composite tile, in draw order.
	Sources map[string][]tile.ID

	// Matrix projects the unit tile onto the terrain mesh.
	Matrix gmath.Mat4

	// Record caches which pool surfaces hold this tile's composited
	// stacks. The compositor is the only writer.
	Record RenderRecord
}

type stackRef struct {
	valid   bool
	surface SurfaceID
	stamp   uint64
}

// RenderRecord remembers, per stack index, which pool surface holds the
// tile's composited output and under which composite keys it was
// rendered. A populated entry means the content is reusable until the
// referenced slot is restamped or the keys change.
type RenderRecord struct {
	keys   map[string]string
	stacks []stackRef
}

func (r *RenderRecord) reset() {
	clear(r.keys)
	r.stacks = r.stacks[:0]
}

func (r *RenderRecord) stackRef(i int) stackRef {
	if i >= len(r.stacks) {
		return stackRef{}
	}
	return r.stacks[i]
}

func (r *RenderRecord) setStack(i int, surface SurfaceID, stamp uint64) {
	for len(r.stacks) <= i {
		r.stacks = append(r.stacks, stackRef{})
	}
	r.stacks[i] = stackRef{valid: true, surface: surface, stamp: stamp}
}

func (r *RenderRecord) keyFor(source string) (string, bool) {
	key, ok := r.keys[source]
	return key, ok
}

func (r *RenderRecord) setKey(source, key string) {
	if r.keys == nil {
		r.keys = make(map[string]string)
	}
	r.keys[source] = key
}
