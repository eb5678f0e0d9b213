// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rtt

import (
	"github.com/gomaps/drape/gfx"
	"github.com/gomaps/drape/gmath"
	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/tile"
)

// Recording is the ordered command list one frame produces. The compositor
// and scheduler append to it; a FrameDriver (the wgpu engine in
// production) replays it. Commands are arena-allocated and become invalid
// when the frame arena is reset.
type Recording struct {
	Commands []Command
}

func (rec *Recording) push(a *mem.Arena, cmd Command) {
	rec.Commands = mem.Append(a, rec.Commands, cmd)
}

// SetTarget binds a pooled offscreen surface as the render target for
// subsequent Clear and DrawLayer commands.
func (rec *Recording) SetTarget(a *mem.Arena, surface SurfaceID) {
	rec.push(a, mem.Make(a, SetTarget{Surface: surface}))
}

// SetScreenTarget binds the main frame target.
func (rec *Recording) SetScreenTarget(a *mem.Arena) {
	rec.push(a, mem.Make(a, SetScreenTarget{}))
}

func (rec *Recording) Clear(a *mem.Arena, color gfx.Color) {
	rec.push(a, mem.Make(a, Clear{Color: color}))
}

// DrawLayer draws one layer's geometry for the given tile coordinates into
// the bound target, under the given transform. The actual drawing is the
// layer painter collaborator's job.
func (rec *Recording) DrawLayer(a *mem.Arena, layer LayerID, coords []tile.ID, transform gmath.Transform) {
	rec.push(a, mem.Make(a, DrawLayer{
		Layer:     layer,
		Coords:    mem.MakeSlice(a, coords),
		Transform: transform,
	}))
}

// Drape projects a tile's composited stack texture onto the terrain mesh.
func (rec *Recording) Drape(a *mem.Arena, t tile.ID, surface SurfaceID, matrix gmath.Mat4) {
	rec.push(a, mem.Make(a, Drape{Tile: t, Surface: surface, Matrix: matrix}))
}

// Present finishes the frame and hands it to the window surface.
func (rec *Recording) Present(a *mem.Arena) {
	rec.push(a, mem.Make(a, Present{}))
}

type Command interface {
	isCommand()
}

func (*SetTarget) isCommand()       {}
func (*SetScreenTarget) isCommand() {}
func (*Clear) isCommand()           {}
func (*DrawLayer) isCommand()       {}
func (*Drape) isCommand()           {}
func (*Present) isCommand()         {}

type SetTarget struct {
	Surface SurfaceID
}

type SetScreenTarget struct{}

type Clear struct {
	Color gfx.Color
}

type DrawLayer struct {
	Layer  LayerID
	Coords []tile.ID
	// Transform is tile-local (identity) for stack draws and the camera's
	// screen transform for direct draws.
	Transform gmath.Transform
}

type Drape struct {
	Tile    tile.ID
	Surface SurfaceID
	Matrix  gmath.Mat4
}

type Present struct{}
