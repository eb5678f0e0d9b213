// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"

	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/profiler"
	"github.com/gomaps/drape/rtt"
	"honnef.co/go/wgpu"
)

// FrameTarget supplies the window surface texture for one frame. Returning
// a nil texture renders the frame offscreen only (hidden window, surface
// lost).
type FrameTarget interface {
	AcquireFrame() (surface *wgpu.SurfaceTexture, width, height uint32)
}

// Driver adapts the engine to the scheduler's frame driver contract: one
// Execute call replays one frame's recording against the current window
// surface.
type Driver struct {
	Engine   *Engine
	Queue    *wgpu.Queue
	Painter  LayerPainter
	Target   FrameTarget
	Profiler profiler.Group
}

func (d *Driver) Execute(arena *mem.Arena, rec *rtt.Recording) error {
	surface, width, height := d.Target.AcquireFrame()
	if width == 0 || height == 0 {
		return fmt.Errorf("frame target reported %dx%d surface", width, height)
	}
	return d.Engine.RunRecording(arena, d.Queue, rec, d.Painter, surface, width, height, d.Profiler)
}
