// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package rtt implements the render-to-texture compositor used when
// terrain is active: consecutive compositable style layers are batched
// into shared offscreen surfaces ("stacks"), one per visible composite
// tile, which are then draped over the terrain mesh. Surfaces come from a
// grow-only pool and composited tiles are cached across frames until
// their contributing source tiles change.
//
// The package is GPU-agnostic. It emits a Recording; the wgpu engine
// replays it.
package rtt

import (
	"github.com/gomaps/drape/gfx"
	"github.com/gomaps/drape/gmath"
	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/tile"
)

// FrameInput is everything the compositor needs for one frame, gathered
// from the style and source collaborators.
type FrameInput struct {
	// Tiles are the visible composite tiles in draw order.
	Tiles []*VisibleTile
	// LayerOrder is the style's layer draw order.
	LayerOrder []LayerID
	// KindOf classifies a layer; SourceOf names the source a layer reads
	// from ("" for layers without one, e.g. background).
	KindOf   func(LayerID) LayerKind
	SourceOf func(LayerID) string
	// Stale reports whether a source has flagged a tile as needing
	// re-render even though its contributing tile set is unchanged
	// (feature-state changes, fades, newly decoded data).
	Stale func(source string, id tile.ID) bool
	// ClearColor initializes freshly claimed surfaces.
	ClearColor gfx.Color
}

type drapeEntry struct {
	tile    *VisibleTile
	surface SurfaceID
}

// Compositor routes layers in draw order: compositable runs accumulate
// into stacks that flush into pooled offscreen surfaces, everything else
// passes through to the main target. One Compositor lives as long as its
// map instance; per-frame state is rebuilt by PrepareFrame.
type Compositor struct {
	pool   SurfacePool
	in     FrameInput
	stacks [][]LayerID
	// open is true while a compositable run is accumulating into the top
	// stack.
	open bool
}

func NewCompositor() *Compositor {
	return &Compositor{}
}

// Pool exposes the surface pool, mainly so the engine and tests can size
// their target arrays.
func (c *Compositor) Pool() *SurfacePool {
	return &c.pool
}

// Stacks returns the stack partition built so far this frame. Valid until
// the next PrepareFrame.
func (c *Compositor) Stacks() [][]LayerID {
	return c.stacks
}

// PrepareFrame starts a frame: releases all pool slots (cached content
// stays valid through stamps), resets the stack partition, and drops every
// tile's cached renders whose composite keys changed or whose sources
// report the tile stale. Checking only the keys would serve stale pixels
// after a fade-relevant source update with identical tile membership.
func (c *Compositor) PrepareFrame(in FrameInput) {
	c.in = in
	c.pool.ReleaseAll()
	c.stacks = c.stacks[:0]
	c.open = false

	for _, t := range in.Tiles {
		if c.tileInvalidated(t) {
			t.Record.reset()
		}
		// Re-mark every slot that still backs a cached render before any
		// acquisition this frame, so a newly appearing tile cannot claim a
		// slot another tile is about to reuse.
		for i := range t.Record.stacks {
			if ref := t.Record.stacks[i]; ref.valid && c.pool.Stamp(ref.surface) == ref.stamp {
				c.pool.Use(ref.surface)
			}
		}
	}
}

func (c *Compositor) tileInvalidated(t *VisibleTile) bool {
	if len(t.Record.keys) > len(t.Sources) {
		// A source stopped contributing; the cached composite still
		// contains its pixels.
		return true
	}
	for source, contrib := range t.Sources {
		stored, ok := t.Record.keyFor(source)
		if !ok {
			// Never rendered with this source; nothing cached under it is
			// trustworthy unless nothing is cached at all.
			if len(t.Record.stacks) > 0 {
				return true
			}
			continue
		}
		if stored != tile.CompositeKey(contrib) {
			return true
		}
		if c.in.Stale != nil && c.in.Stale(source, t.ID) {
			return true
		}
	}
	return false
}

// RenderLayer routes the layer at index in the frame's draw order and
// reports whether the compositor consumed it. A false return means the
// caller draws the layer directly to the screen target.
func (c *Compositor) RenderLayer(a *mem.Arena, rec *Recording, index int) bool {
	layer := c.in.LayerOrder[index]
	kind := c.in.KindOf(layer)
	last := index == len(c.in.LayerOrder)-1

	caps := kindCaps[kind]
	switch {
	case caps.alwaysRedraw:
		c.flushOpen(a, rec)
		c.renderAlwaysRedraw(a, rec, layer)
		return true
	case caps.compositable:
		if !c.open {
			c.stacks = append(c.stacks, nil)
			c.open = true
		}
		top := len(c.stacks) - 1
		c.stacks[top] = append(c.stacks[top], layer)
		if last {
			c.flushOpen(a, rec)
		}
		return true
	default:
		c.flushOpen(a, rec)
		return false
	}
}

// flushOpen leaves the Accumulating state: for every visible tile, reuse
// the cached surface when its stamp still matches, otherwise claim a slot,
// clear it, and draw the whole stack restricted to the tile's contributing
// coordinates. Finally the stack is draped over the terrain mesh.
func (c *Compositor) flushOpen(a *mem.Arena, rec *Recording) {
	if !c.open {
		return
	}
	c.open = false
	stackIndex := len(c.stacks) - 1
	stack := c.stacks[stackIndex]

	draped := make([]drapeEntry, 0, len(c.in.Tiles))
	for _, t := range c.in.Tiles {
		if ref := t.Record.stackRef(stackIndex); ref.valid && c.pool.Stamp(ref.surface) == ref.stamp {
			c.pool.Use(ref.surface)
			draped = append(draped, drapeEntry{t, ref.surface})
			continue
		}

		surface, stamp := c.pool.Acquire()
		rec.SetTarget(a, surface)
		rec.Clear(a, c.in.ClearColor)
		for _, layer := range stack {
			rec.DrawLayer(a, layer, c.coordsFor(t, layer), gmath.Identity)
		}
		t.Record.setStack(stackIndex, surface, stamp)
		for source, contrib := range t.Sources {
			t.Record.setKey(source, tile.CompositeKey(contrib))
		}
		draped = append(draped, drapeEntry{t, surface})
	}
	c.drapeTiles(a, rec, draped)
}

// renderAlwaysRedraw handles view-dependent layers (hillshade-style relief
// shading): they get a dedicated single-layer stack, never reuse a cached
// surface, and drape immediately.
func (c *Compositor) renderAlwaysRedraw(a *mem.Arena, rec *Recording, layer LayerID) {
	c.stacks = append(c.stacks, []LayerID{layer})
	stackIndex := len(c.stacks) - 1

	draped := make([]drapeEntry, 0, len(c.in.Tiles))
	for _, t := range c.in.Tiles {
		if ref := t.Record.stackRef(stackIndex); ref.valid && c.pool.Stamp(ref.surface) == ref.stamp {
			c.pool.Release(ref.surface)
		}

		surface, stamp := c.pool.Acquire()
		rec.SetTarget(a, surface)
		rec.Clear(a, c.in.ClearColor)
		rec.DrawLayer(a, layer, c.coordsFor(t, layer), gmath.Identity)
		t.Record.setStack(stackIndex, surface, stamp)
		draped = append(draped, drapeEntry{t, surface})
	}
	c.drapeTiles(a, rec, draped)
}

func (c *Compositor) coordsFor(t *VisibleTile, layer LayerID) []tile.ID {
	var source string
	if c.in.SourceOf != nil {
		source = c.in.SourceOf(layer)
	}
	if source != "" {
		if coords := t.Sources[source]; len(coords) > 0 {
			return coords
		}
	}
	return []tile.ID{t.ID}
}

func (c *Compositor) drapeTiles(a *mem.Arena, rec *Recording, draped []drapeEntry) {
	if len(draped) == 0 {
		return
	}
	rec.SetScreenTarget(a)
	for _, d := range draped {
		rec.Drape(a, d.tile.ID, d.surface, d.tile.Matrix)
	}
}
