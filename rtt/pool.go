// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rtt

// SurfaceID indexes an offscreen render target in the pool. Tiles cache
// surface IDs, never the surfaces themselves; the engine materializes the
// actual GPU texture for an ID on first use and keeps it for the lifetime
// of the map instance.
type SurfaceID int

// NoSurface is the zero SurfaceID's guard value for optional fields.
const NoSurface SurfaceID = -1

type poolSlot struct {
	stamp uint64
	inUse bool
}

// SurfacePool tracks a grow-only set of offscreen render targets. Slots
// are only ever marked free, never destroyed: viewport tile counts are
// bounded and slowly varying, so trading peak memory for allocation churn
// is the right call.
//
// Every fresh claim restamps the slot. A tile referencing a slot from an
// earlier frame can check its remembered stamp against the pool's; a
// mismatch means the slot was reused for something else in the meantime.
type SurfacePool struct {
	slots []poolSlot
	stamp uint64
}

// Acquire claims a free slot, growing the pool when none is free. The
// returned stamp identifies this claim.
func (p *SurfacePool) Acquire() (SurfaceID, uint64) {
	for i := range p.slots {
		if !p.slots[i].inUse {
			return p.claim(SurfaceID(i))
		}
	}
	p.slots = append(p.slots, poolSlot{})
	return p.claim(SurfaceID(len(p.slots) - 1))
}

func (p *SurfacePool) claim(id SurfaceID) (SurfaceID, uint64) {
	p.stamp++
	p.slots[id] = poolSlot{stamp: p.stamp, inUse: true}
	return id, p.stamp
}

// Use marks an already-stamped slot as needed by the current frame,
// protecting it from being claimed for another tile.
func (p *SurfacePool) Use(id SurfaceID) {
	p.slots[id].inUse = true
}

// Stamp returns the slot's current stamp.
func (p *SurfacePool) Stamp(id SurfaceID) uint64 {
	return p.slots[id].stamp
}

// Release marks one slot as free without touching its stamp.
func (p *SurfacePool) Release(id SurfaceID) {
	p.slots[id].inUse = false
}

// ReleaseAll frees every slot. Called at the start of a frame; cached
// content stays valid through stamps, not through in-use marks.
func (p *SurfacePool) ReleaseAll() {
	for i := range p.slots {
		p.slots[i].inUse = false
	}
}

// Size is the number of slots ever created.
func (p *SurfacePool) Size() int {
	return len(p.slots)
}

// InUse reports whether the slot is currently claimed.
func (p *SurfacePool) InUse(id SurfaceID) bool {
	return p.slots[id].inUse
}
