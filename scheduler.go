// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package drape implements the frame scheduling core of a tiled map
// renderer: a dirty-state machine that coalesces repaint requests into
// single frames, drives the fixed per-frame pipeline (style evaluation,
// source update, terrain update, placement, draw), and detects the idle
// state. Drawing is delegated to the rtt compositor and a FrameDriver.
package drape

import (
	"log/slog"
	"math"
	"time"

	"github.com/gomaps/drape/gfx"
	"github.com/gomaps/drape/gmath"
	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/profiler"
	"github.com/gomaps/drape/rtt"
	"github.com/gomaps/drape/tile"
	"honnef.co/go/color"
)

type SchedulerOptions struct {
	// FadeDuration is the length of tile crossfades, forwarded to style
	// evaluation.
	FadeDuration time.Duration
	// RepaintContinuously forces a new frame after every frame, for
	// debugging and benchmarks.
	RepaintContinuously bool
	// Background is the style's background color, in any supported color
	// space. It initializes the screen target and freshly claimed offscreen
	// surfaces; nil clears to transparent.
	Background *color.Color

	Logger   *slog.Logger
	Profiler profiler.Group
}

// Collaborators are the external subsystems the scheduler drives. Style,
// Sources, Camera, Driver, and RequestFrame are required; Terrain is
// optional.
type Collaborators struct {
	Style        Style
	Sources      SourceSet
	Camera       Camera
	Terrain      Terrain
	Driver       FrameDriver
	RequestFrame FrameRequester
}

// Scheduler owns the dirty flags, the task queue, and the single
// outstanding frame request of one map instance. It is not safe for
// concurrent use; all mutation happens on the frame loop's thread.
type Scheduler struct {
	style   Style
	sources SourceSet
	camera  Camera
	terrain Terrain
	driver  FrameDriver
	reqAnim FrameRequester

	opts   SchedulerOptions
	logger *slog.Logger
	prof   profiler.Group

	comp  *rtt.Compositor
	arena *mem.Arena
	tasks TaskQueue
	clear gfx.Color

	styleDirty     bool
	sourcesDirty   bool
	placementDirty bool

	// cancelAnim cancels the outstanding animation-frame request; nil when
	// none is scheduled.
	cancelAnim func()
	removed    bool

	lastCrossfade    float64
	loadFired        bool
	fullyLoadedFired bool

	events eventDispatcher
}

func NewScheduler(c Collaborators, opts SchedulerOptions) *Scheduler {
	if c.Style == nil || c.Sources == nil || c.Camera == nil || c.Driver == nil || c.RequestFrame == nil {
		panic("drape: missing required collaborator")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.Nop{}
	}
	clear := gfx.Transparent
	if opts.Background != nil {
		clear = gfx.FromColor(opts.Background)
	}
	return &Scheduler{
		style:         c.Style,
		sources:       c.Sources,
		camera:        c.Camera,
		terrain:       c.Terrain,
		driver:        c.Driver,
		reqAnim:       c.RequestFrame,
		opts:          opts,
		logger:        opts.Logger,
		prof:          opts.Profiler,
		comp:          rtt.NewCompositor(),
		arena:         mem.NewArena(),
		clear:         clear,
		lastCrossfade: math.NaN(),
	}
}

// On registers a listener for a frame lifecycle event.
func (s *Scheduler) On(ev Event, fn func(EventData)) {
	s.events.on(ev, fn)
}

// Compositor exposes the render-to-texture compositor, e.g. for pool
// inspection.
func (s *Scheduler) Compositor() *rtt.Compositor {
	return s.comp
}

// MarkDirty records that sources, and optionally the style, require
// recomputation, and schedules a frame if none is outstanding. It never
// draws synchronously; any number of calls between two frames collapse
// into a single pipeline execution.
func (s *Scheduler) MarkDirty(styleChanged bool) {
	if s.removed {
		return
	}
	s.sourcesDirty = true
	if styleChanged {
		s.styleDirty = true
	}
	s.triggerRepaint()
}

// MarkPlacementDirty schedules a re-run of symbol placement.
func (s *Scheduler) MarkPlacementDirty() {
	if s.removed {
		return
	}
	s.placementDirty = true
	s.triggerRepaint()
}

// RequestRepaint schedules a frame without marking anything dirty.
func (s *Scheduler) RequestRepaint() {
	if s.removed {
		return
	}
	s.triggerRepaint()
}

// RequestFrame enqueues a callback to run at the start of the next frame
// and ensures a frame is scheduled.
func (s *Scheduler) RequestFrame(cb func(now time.Time)) TaskID {
	id := s.tasks.Add(cb)
	s.triggerRepaint()
	return id
}

// CancelFrame cancels a callback registered with RequestFrame. No-op if it
// already ran or is unknown.
func (s *Scheduler) CancelFrame(id TaskID) {
	s.tasks.Remove(id)
}

func (s *Scheduler) triggerRepaint() {
	if s.removed || s.cancelAnim != nil {
		return
	}
	s.cancelAnim = s.reqAnim(func(now time.Time) {
		s.cancelAnim = nil
		if s.removed {
			return
		}
		s.RunFrame(now)
	})
}

// Remove tears the scheduler down: the outstanding frame request is
// canceled and every later entry point short-circuits, so asynchronous
// callbacks still in flight cannot re-trigger the pipeline.
func (s *Scheduler) Remove() {
	s.removed = true
	if s.cancelAnim != nil {
		s.cancelAnim()
		s.cancelAnim = nil
	}
}

func (s *Scheduler) Removed() bool {
	return s.removed
}

// RunFrame executes the fixed frame pipeline. Collaborator panics
// propagate to the caller; the dirty flags and the frame handle stay
// consistent regardless. The removed guard is re-checked after every stage
// that hands control to external code.
func (s *Scheduler) RunFrame(now time.Time) {
	if s.removed {
		return
	}
	pgroup := profiler.Nest(s.prof, "frame")
	defer pgroup.End()

	s.tasks.Run(now)
	if s.removed {
		return
	}

	crossfadeChanged := false
	if s.styleDirty {
		s.styleDirty = false
		sp := profiler.Nest(pgroup, "style")
		crossfade := s.style.Evaluate(EvaluationParameters{
			Zoom:         s.camera.Zoom(),
			Now:          now,
			FadeDuration: s.opts.FadeDuration,
		})
		sp.End()
		if crossfade != s.lastCrossfade {
			// Fade transitions must keep re-rendering until the factor
			// converges.
			crossfadeChanged = true
			s.lastCrossfade = crossfade
		}
		if s.removed {
			return
		}
	}

	if s.sourcesDirty {
		s.sourcesDirty = false
		sp := profiler.Nest(pgroup, "sources")
		s.sources.Update(s.camera.Zoom())
		sp.End()
		if s.removed {
			return
		}
	}

	if s.terrain != nil {
		s.terrain.Update()
		if s.removed {
			return
		}
	}

	if s.placementDirty {
		s.placementDirty = false
		if s.style.UpdatePlacement(now, s.camera.Zoom()) {
			s.placementDirty = true
		}
		if s.removed {
			return
		}
	}

	sp := profiler.Nest(pgroup, "draw")
	rec := s.buildRecording()
	err := s.driver.Execute(s.arena, rec)
	sp.End()
	if s.removed {
		return
	}
	if err != nil {
		// Transient GPU errors degrade to missing tiles; the scheduler
		// keeps producing frames.
		s.logger.Error("frame driver failed", "err", err)
		s.events.fire(EventError, EventData{Err: err})
		if s.removed {
			return
		}
	}

	s.events.fire(EventRender, EventData{})
	if s.removed {
		return
	}
	if !s.loadFired && s.style.Loaded() {
		s.loadFired = true
		s.events.fire(EventLoad, EventData{})
		if s.removed {
			return
		}
	}
	if !s.fullyLoadedFired && s.style.Loaded() && s.sources.Loaded() {
		s.fullyLoadedFired = true
		s.events.fire(EventFullyLoaded, EventData{})
		if s.removed {
			return
		}
	}

	if crossfadeChanged {
		s.styleDirty = true
	}
	anyDirty := s.styleDirty || s.sourcesDirty || s.placementDirty
	switch {
	case anyDirty || s.opts.RepaintContinuously || s.tasks.Pending() > 0:
		s.triggerRepaint()
	case !s.camera.Moving():
		s.events.fire(EventIdle, EventData{})
	}
}

// buildRecording resets the frame arena and records the draw commands for
// the current frame: through the compositor when terrain is active,
// directly to the screen target otherwise.
func (s *Scheduler) buildRecording() *rtt.Recording {
	s.arena.Reset()
	a := s.arena
	rec := mem.New[rtt.Recording](a)

	order := s.style.LayerOrder()
	tiles := s.sources.VisibleTiles()
	screen := gmath.TransformFromAffine(s.camera.Transform())

	if s.terrain != nil {
		s.comp.PrepareFrame(rtt.FrameInput{
			Tiles:      tiles,
			LayerOrder: order,
			KindOf:     s.style.LayerKind,
			SourceOf:   s.style.LayerSource,
			Stale:      s.sources.TileStale,
			ClearColor: s.clear,
		})
		rec.SetScreenTarget(a)
		rec.Clear(a, s.clear)
		for i := range order {
			if s.comp.RenderLayer(a, rec, i) {
				continue
			}
			rec.DrawLayer(a, order[i], s.directCoords(a, tiles, order[i]), screen)
		}
	} else {
		rec.SetScreenTarget(a)
		rec.Clear(a, s.clear)
		for _, layer := range order {
			rec.DrawLayer(a, layer, s.directCoords(a, tiles, layer), screen)
		}
	}
	rec.Present(a)
	return rec
}

// directCoords gathers the deduplicated source-tile coordinates a directly
// drawn layer covers.
func (s *Scheduler) directCoords(a *mem.Arena, tiles []*rtt.VisibleTile, layer rtt.LayerID) []tile.ID {
	source := s.style.LayerSource(layer)
	var coords []tile.ID
	seen := make(map[string]struct{})
	for _, t := range tiles {
		contrib := t.Sources[source]
		if source == "" || len(contrib) == 0 {
			contrib = []tile.ID{t.ID}
		}
		for _, id := range contrib {
			key := id.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			coords = mem.Append(a, coords, id)
		}
	}
	return coords
}
