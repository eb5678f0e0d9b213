// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package drape

import (
	"time"

	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/rtt"
	"github.com/gomaps/drape/tile"
	"honnef.co/go/curve"
)

// The scheduler's collaborators are black boxes behind these interfaces:
// style evaluation, tile loading, camera animation, and layer drawing all
// live outside the scheduling core. All calls happen on the frame loop's
// thread; none may block.

// EvaluationParameters carries the time-dependent inputs of a style
// re-evaluation.
type EvaluationParameters struct {
	Zoom         float64
	Now          time.Time
	FadeDuration time.Duration
}

type Style interface {
	// Evaluate recomputes zoom- and time-dependent style properties and
	// returns the current crossfade factor. While transitions are in
	// progress the factor keeps changing; the scheduler keeps rendering
	// until it stabilizes.
	Evaluate(params EvaluationParameters) (crossfade float64)

	// UpdatePlacement advances symbol placement and reports whether more
	// frames are needed to converge.
	UpdatePlacement(now time.Time, zoom float64) (needsRerender bool)

	// LayerOrder returns the draw-ordered layer list for the current
	// style.
	LayerOrder() []rtt.LayerID
	LayerKind(rtt.LayerID) rtt.LayerKind
	// LayerSource names the source a layer reads from, "" if none.
	LayerSource(rtt.LayerID) string

	Loaded() bool
}

type SourceSet interface {
	// Update refreshes tile membership for the current viewport.
	Update(zoom float64)

	// VisibleTiles returns the visible composite tiles in draw order. The
	// returned tile objects must be stable across frames for a given tile
	// identity: the compositor attaches cached-render records to them.
	VisibleTiles() []*rtt.VisibleTile

	// TileStale reports whether a source flagged a tile for re-render even
	// though its contributing tile set is unchanged.
	TileStale(source string, id tile.ID) bool

	Loaded() bool
}

// Terrain is present only when 3D relief is active. A nil Terrain routes
// every layer directly to the screen target.
type Terrain interface {
	// Update refreshes elevation samples for the viewport before the
	// compositor runs.
	Update()
}

type Camera interface {
	Zoom() float64
	// Transform is the world-to-screen transform for layers drawn directly
	// to the main target. Stack draws use tile-local space instead.
	Transform() curve.Affine
	// Moving reports whether a camera animation is in progress, which
	// suppresses the idle notification.
	Moving() bool
}

// FrameDriver executes one frame's recording. In production this is the
// wgpu engine; tests substitute a recorder.
type FrameDriver interface {
	Execute(arena *mem.Arena, rec *rtt.Recording) error
}

// FrameRequester is the host's "next frame" primitive: it schedules the
// callback for the next display refresh and returns a cancel function.
// Browsers map this to requestAnimationFrame, native hosts to their vsync
// callback.
type FrameRequester func(callback func(now time.Time)) (cancel func())
