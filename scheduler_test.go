// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package drape

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gomaps/drape/gfx"
	"github.com/gomaps/drape/gmath"
	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/rtt"
	"github.com/gomaps/drape/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/curve"
)

// fakeLoop is a manually ticked animation frame loop.
type fakeLoop struct {
	cb       func(time.Time)
	requests int
	cancels  int
}

func (l *fakeLoop) request(cb func(time.Time)) func() {
	l.requests++
	l.cb = cb
	return func() {
		l.cancels++
		l.cb = nil
	}
}

func (l *fakeLoop) scheduled() bool {
	return l.cb != nil
}

// tick runs the outstanding frame callback; it fails the test when none is
// scheduled.
func (l *fakeLoop) tick(t *testing.T, now time.Time) {
	t.Helper()
	require.NotNil(t, l.cb, "no frame scheduled")
	cb := l.cb
	l.cb = nil
	cb(now)
}

type fakeStyle struct {
	// crossfades are the successive Evaluate return values; the last one
	// repeats.
	crossfades    []float64
	evals         int
	placementRuns int
	placementMore int
	order         []rtt.LayerID
	kinds         map[rtt.LayerID]rtt.LayerKind
	sources       map[rtt.LayerID]string
	loaded        bool
}

func (s *fakeStyle) Evaluate(EvaluationParameters) float64 {
	s.evals++
	switch len(s.crossfades) {
	case 0:
		return 1
	case 1:
		return s.crossfades[0]
	default:
		v := s.crossfades[0]
		s.crossfades = s.crossfades[1:]
		return v
	}
}

func (s *fakeStyle) UpdatePlacement(time.Time, float64) bool {
	s.placementRuns++
	if s.placementMore > 0 {
		s.placementMore--
		return true
	}
	return false
}

func (s *fakeStyle) LayerOrder() []rtt.LayerID             { return s.order }
func (s *fakeStyle) LayerKind(l rtt.LayerID) rtt.LayerKind { return s.kinds[l] }
func (s *fakeStyle) LayerSource(l rtt.LayerID) string      { return s.sources[l] }
func (s *fakeStyle) Loaded() bool                          { return s.loaded }

type fakeSources struct {
	updates int
	tiles   []*rtt.VisibleTile
	loaded  bool
}

func (s *fakeSources) Update(float64)                   { s.updates++ }
func (s *fakeSources) VisibleTiles() []*rtt.VisibleTile { return s.tiles }
func (s *fakeSources) TileStale(string, tile.ID) bool   { return false }
func (s *fakeSources) Loaded() bool                     { return s.loaded }

type fakeCamera struct {
	zoom      float64
	moving    bool
	transform curve.Affine
}

func (c *fakeCamera) Zoom() float64           { return c.zoom }
func (c *fakeCamera) Transform() curve.Affine { return c.transform }
func (c *fakeCamera) Moving() bool            { return c.moving }

type fakeTerrain struct {
	updates int
}

func (tr *fakeTerrain) Update() { tr.updates++ }

// fakeDriver records each executed frame as its command type sequence. The
// last frame's commands are kept for inspection; they are arena-backed and
// only valid until the next frame.
type fakeDriver struct {
	frames [][]string
	last   []rtt.Command
	err    error
}

func (d *fakeDriver) Execute(_ *mem.Arena, rec *rtt.Recording) error {
	var cmds []string
	for _, c := range rec.Commands {
		cmds = append(cmds, fmt.Sprintf("%T", c))
	}
	d.frames = append(d.frames, cmds)
	d.last = rec.Commands
	return d.err
}

type testRig struct {
	sched   *Scheduler
	loop    *fakeLoop
	style   *fakeStyle
	sources *fakeSources
	camera  *fakeCamera
	driver  *fakeDriver
}

func newTestRig(terrain Terrain) *testRig {
	rig := &testRig{
		loop: &fakeLoop{},
		style: &fakeStyle{
			order: []rtt.LayerID{"bg"},
			kinds: map[rtt.LayerID]rtt.LayerKind{"bg": rtt.KindBackground},
		},
		sources: &fakeSources{},
		camera:  &fakeCamera{zoom: 4},
		driver:  &fakeDriver{},
	}
	rig.sched = NewScheduler(Collaborators{
		Style:        rig.style,
		Sources:      rig.sources,
		Camera:       rig.camera,
		Terrain:      terrain,
		Driver:       rig.driver,
		RequestFrame: rig.loop.request,
	}, SchedulerOptions{})
	return rig
}

func TestNewSchedulerRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() {
		NewScheduler(Collaborators{}, SchedulerOptions{})
	})
}

func TestMarkDirtyCoalesces(t *testing.T) {
	rig := newTestRig(nil)
	rig.sched.MarkDirty(false)
	rig.sched.MarkDirty(false)
	rig.sched.MarkDirty(false)
	assert.Equal(t, 1, rig.loop.requests)

	rig.loop.tick(t, time.Now())
	assert.Equal(t, 1, rig.sources.updates)
	assert.Equal(t, 0, rig.style.evals)
	assert.Len(t, rig.driver.frames, 1)
	assert.False(t, rig.loop.scheduled())
}

func TestStyleEvaluationConverges(t *testing.T) {
	rig := newTestRig(nil)
	idles := 0
	rig.sched.On(EventIdle, func(EventData) { idles++ })

	rig.sched.MarkDirty(true)
	rig.loop.tick(t, time.Now())
	// The first evaluation establishes the crossfade factor, which forces
	// one more frame before the scheduler can go idle.
	require.True(t, rig.loop.scheduled())
	assert.Equal(t, 0, idles)

	rig.loop.tick(t, time.Now())
	assert.Equal(t, 2, rig.style.evals)
	assert.False(t, rig.loop.scheduled())
	assert.Equal(t, 1, idles)
}

func TestCrossfadeTransitionKeepsRendering(t *testing.T) {
	rig := newTestRig(nil)
	rig.style.crossfades = []float64{0.25, 0.5, 1, 1}

	rig.sched.MarkDirty(true)
	frames := 0
	for rig.loop.scheduled() {
		rig.loop.tick(t, time.Now())
		frames++
		require.Less(t, frames, 10, "scheduler did not converge")
	}
	assert.Equal(t, 4, rig.style.evals)
	assert.Len(t, rig.driver.frames, 4)
}

func TestPlacementRerunsUntilConverged(t *testing.T) {
	rig := newTestRig(nil)
	rig.style.placementMore = 2

	rig.sched.MarkPlacementDirty()
	frames := 0
	for rig.loop.scheduled() {
		rig.loop.tick(t, time.Now())
		frames++
		require.Less(t, frames, 10, "placement did not converge")
	}
	assert.Equal(t, 3, rig.style.placementRuns)
}

func TestIdleSuppressedWhileCameraMoving(t *testing.T) {
	rig := newTestRig(nil)
	idles := 0
	rig.sched.On(EventIdle, func(EventData) { idles++ })

	rig.camera.moving = true
	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 0, idles)
	assert.False(t, rig.loop.scheduled())

	rig.camera.moving = false
	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 1, idles)
}

func TestRemoveCancelsOutstandingFrame(t *testing.T) {
	rig := newTestRig(nil)
	rig.sched.MarkDirty(false)
	rig.sched.Remove()
	assert.Equal(t, 1, rig.loop.cancels)
	assert.True(t, rig.sched.Removed())

	rig.sched.MarkDirty(true)
	rig.sched.RequestRepaint()
	assert.Equal(t, 1, rig.loop.requests)
	assert.Empty(t, rig.driver.frames)
}

func TestRemoveDuringEventCallback(t *testing.T) {
	rig := newTestRig(nil)
	idles := 0
	rig.sched.On(EventIdle, func(EventData) { idles++ })
	rig.sched.On(EventRender, func(EventData) {
		rig.sched.Remove()
	})

	rig.sched.MarkDirty(false)
	rig.loop.tick(t, time.Now())
	assert.Len(t, rig.driver.frames, 1)
	assert.Equal(t, 0, idles)
	assert.False(t, rig.loop.scheduled())
}

func TestDriverErrorIsReportedAndNonFatal(t *testing.T) {
	rig := newTestRig(nil)
	rig.driver.err = errors.New("device lost")
	var gotErr error
	renders := 0
	rig.sched.On(EventError, func(data EventData) { gotErr = data.Err })
	rig.sched.On(EventRender, func(EventData) { renders++ })

	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.ErrorContains(t, gotErr, "device lost")
	assert.Equal(t, 1, renders)

	rig.driver.err = nil
	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 2, renders)
}

func TestLoadEventsFireOnce(t *testing.T) {
	rig := newTestRig(nil)
	loads, fully := 0, 0
	rig.sched.On(EventLoad, func(EventData) { loads++ })
	rig.sched.On(EventFullyLoaded, func(EventData) { fully++ })

	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 0, loads)

	rig.style.loaded = true
	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 1, loads)
	assert.Equal(t, 0, fully)

	rig.sources.loaded = true
	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, fully)

	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, fully)
}

func TestRequestFrameCallback(t *testing.T) {
	rig := newTestRig(nil)
	now := time.Unix(100, 0)
	var got time.Time
	rig.sched.RequestFrame(func(n time.Time) { got = n })
	rig.loop.tick(t, now)
	assert.Equal(t, now, got)
}

func TestCancelFrame(t *testing.T) {
	rig := newTestRig(nil)
	ran := false
	id := rig.sched.RequestFrame(func(time.Time) { ran = true })
	rig.sched.CancelFrame(id)
	rig.loop.tick(t, time.Now())
	assert.False(t, ran)
}

func TestTaskEnqueuedDuringFrameSchedulesAnother(t *testing.T) {
	rig := newTestRig(nil)
	runs := 0
	rig.sched.RequestFrame(func(time.Time) {
		runs++
		if runs == 1 {
			rig.sched.RequestFrame(func(time.Time) { runs++ })
		}
	})
	rig.loop.tick(t, time.Now())
	require.True(t, rig.loop.scheduled())
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 2, runs)
	assert.False(t, rig.loop.scheduled())
}

func TestRepaintContinuously(t *testing.T) {
	rig := newTestRig(nil)
	rig.sched.opts.RepaintContinuously = true
	rig.sched.RequestRepaint()
	for i := 0; i < 3; i++ {
		rig.loop.tick(t, time.Now())
		require.True(t, rig.loop.scheduled())
	}
	assert.Len(t, rig.driver.frames, 3)
}

func TestDirectRecording(t *testing.T) {
	rig := newTestRig(nil)
	rig.style.order = []rtt.LayerID{"bg", "labels"}
	rig.style.kinds = map[rtt.LayerID]rtt.LayerKind{
		"bg":     rtt.KindBackground,
		"labels": rtt.KindSymbol,
	}
	rig.sources.tiles = []*rtt.VisibleTile{{ID: tile.New(1, 2, 3)}}

	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	require.Len(t, rig.driver.frames, 1)
	assert.Equal(t, []string{
		"*rtt.SetScreenTarget",
		"*rtt.Clear",
		"*rtt.DrawLayer",
		"*rtt.DrawLayer",
		"*rtt.Present",
	}, rig.driver.frames[0])
}

func TestDirectDrawsCarryCameraTransform(t *testing.T) {
	terrain := &fakeTerrain{}
	rig := newTestRig(terrain)
	rig.style.order = []rtt.LayerID{"bg", "labels"}
	rig.style.kinds = map[rtt.LayerID]rtt.LayerKind{
		"bg":     rtt.KindBackground,
		"labels": rtt.KindSymbol,
	}
	rig.sources.tiles = []*rtt.VisibleTile{{ID: tile.New(1, 2, 3)}}

	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())

	screen := gmath.TransformFromAffine(rig.camera.transform)
	var draws []*rtt.DrawLayer
	for _, c := range rig.driver.last {
		if d, ok := c.(*rtt.DrawLayer); ok {
			draws = append(draws, d)
		}
	}
	require.Len(t, draws, 2)
	// The stack draw is tile-local, the direct draw is in screen space.
	assert.Equal(t, rtt.LayerID("bg"), draws[0].Layer)
	assert.Equal(t, gmath.Identity, draws[0].Transform)
	assert.Equal(t, rtt.LayerID("labels"), draws[1].Layer)
	assert.Equal(t, screen, draws[1].Transform)
}

func TestNilBackgroundClearsTransparent(t *testing.T) {
	rig := newTestRig(nil)
	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())

	var clears []gfx.Color
	for _, c := range rig.driver.last {
		if cl, ok := c.(*rtt.Clear); ok {
			clears = append(clears, cl.Color)
		}
	}
	require.NotEmpty(t, clears)
	assert.Equal(t, gfx.Transparent, clears[0])
}

func TestTerrainRecordingCompositesStacks(t *testing.T) {
	terrain := &fakeTerrain{}
	rig := newTestRig(terrain)
	rig.style.order = []rtt.LayerID{"bg", "roads", "labels"}
	rig.style.kinds = map[rtt.LayerID]rtt.LayerKind{
		"bg":     rtt.KindBackground,
		"roads":  rtt.KindLine,
		"labels": rtt.KindSymbol,
	}
	rig.sources.tiles = []*rtt.VisibleTile{{ID: tile.New(1, 2, 3)}}

	rig.sched.RequestRepaint()
	rig.loop.tick(t, time.Now())
	assert.Equal(t, 1, terrain.updates)
	require.Len(t, rig.driver.frames, 1)
	assert.Equal(t, []string{
		"*rtt.SetScreenTarget",
		"*rtt.Clear",
		"*rtt.SetTarget",
		"*rtt.Clear",
		"*rtt.DrawLayer", // bg
		"*rtt.DrawLayer", // roads
		"*rtt.SetScreenTarget",
		"*rtt.Drape",
		"*rtt.DrawLayer", // labels, direct
		"*rtt.Present",
	}, rig.driver.frames[0])
}
