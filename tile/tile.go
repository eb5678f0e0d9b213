// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package tile identifies map tiles across zoom levels and world copies.
package tile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// ID identifies a tile in the viewport. Canonical is the tile's z/x/y in
// the source data. OverscaledZ is the zoom the tile is displayed at; it
// exceeds Canonical.Z when source data ran out of zoom levels and a tile
// is stretched over its descendants. Wrap numbers the world copy for
// viewports crossing the antimeridian.
type ID struct {
	Canonical   maptile.Tile
	OverscaledZ maptile.Zoom
	Wrap        int8
}

func New(x, y uint32, z maptile.Zoom) ID {
	return ID{
		Canonical:   maptile.New(x, y, z),
		OverscaledZ: z,
	}
}

// Key is the canonical serialization of an ID. Keys compare equal iff the
// IDs are identical.
func (id ID) Key() string {
	return fmt.Sprintf("%d/%d/%d/%d/%d",
		id.OverscaledZ, id.Wrap, id.Canonical.Z, id.Canonical.X, id.Canonical.Y)
}

func (id ID) String() string {
	return id.Key()
}

// ScaledTo returns the ancestor of id at zoom z. It panics if z exceeds
// the canonical zoom.
func (id ID) ScaledTo(z maptile.Zoom) ID {
	if z > id.Canonical.Z {
		panic(fmt.Sprintf("cannot scale tile %v up to zoom %d", id, z))
	}
	shift := id.Canonical.Z - z
	return ID{
		Canonical:   maptile.New(id.Canonical.X>>shift, id.Canonical.Y>>shift, z),
		OverscaledZ: z,
		Wrap:        id.Wrap,
	}
}

// CompositeKey serializes the set of source tiles contributing to a
// composite tile: sorted, de-duplicated, joined. Two composite renders are
// equivalent iff their keys are byte-equal.
func CompositeKey(ids []ID) string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.Key()
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	return strings.Join(keys, ";")
}
