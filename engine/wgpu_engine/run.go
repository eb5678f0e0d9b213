// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"errors"
	"fmt"

	"github.com/gomaps/drape/gfx"
	"github.com/gomaps/drape/mem"
	"github.com/gomaps/drape/profiler"
	"github.com/gomaps/drape/rtt"
	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"
)

// runState is the mutable state of one recording replay: the bound target,
// the open render pass, and the clear deferred into the next pass's load
// op.
type runState struct {
	encoder *wgpu.CommandEncoder
	view    *wgpu.TextureView
	pass    *wgpu.RenderPassEncoder
	clear   *gfx.Color
	// skip is set when the bound target could not be materialized; draws
	// and clears are dropped until the next target switch.
	skip bool

	release []interface{ Release() }
}

func (st *runState) endPass() {
	if st.pass != nil {
		st.pass.End()
		st.pass.Release()
		st.pass = nil
	}
}

func (st *runState) ensurePass() *wgpu.RenderPassEncoder {
	if st.pass != nil {
		return st.pass
	}
	attachment := wgpu.RenderPassColorAttachment{
		View:    st.view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if st.clear != nil {
		attachment.LoadOp = wgpu.LoadOpClear
		attachment.ClearValue = wgpu.Color{
			R: float64(st.clear.R),
			G: float64(st.clear.G),
			B: float64(st.clear.B),
			A: float64(st.clear.A),
		}
		st.clear = nil
	}
	st.pass = st.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	return st.pass
}

// RunRecording replays one frame's recording: layer draws go through the
// painter into pooled surfaces or the frame target, Drape commands project
// pooled surfaces onto the terrain mesh, and Present blits the frame
// target to the window surface.
//
// Target materialization failures are fail-closed: draws into the broken
// target are skipped, the rest of the frame still renders, and the joined
// errors are returned. The scheduler reports them and keeps going.
func (eng *Engine) RunRecording(
	arena *mem.Arena,
	queue *wgpu.Queue,
	rec *rtt.Recording,
	painter LayerPainter,
	surface *wgpu.SurfaceTexture,
	width, height uint32,
	pgroup profiler.Group,
) error {
	pgroup = profiler.Nest(pgroup, "RunRecording")
	defer pgroup.End()

	if eng.frame == nil || eng.frame.Width != width || eng.frame.Height != height {
		if eng.frame != nil {
			eng.frame.release()
		}
		frame, err := newTargetTexture(eng.Device, "frame target", width, height)
		if err != nil {
			return err
		}
		eng.frame = frame
	}

	st := runState{
		encoder: eng.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "frame"}),
	}
	var errs []error

	for _, cmd := range rec.Commands {
		switch cmd := cmd.(type) {
		case *rtt.SetTarget:
			st.endPass()
			st.clear = nil
			target, err := eng.targetFor(cmd.Surface)
			if err != nil {
				errs = append(errs, err)
				eng.logger.Error("skipping composite surface", "surface", cmd.Surface, "err", err)
				st.skip = true
				continue
			}
			st.view = target.View
			st.skip = false
		case *rtt.SetScreenTarget:
			st.endPass()
			st.clear = nil
			st.view = eng.frame.View
			st.skip = false
		case *rtt.Clear:
			if st.skip {
				continue
			}
			st.endPass()
			color := cmd.Color
			st.clear = &color
		case *rtt.DrawLayer:
			if st.skip {
				continue
			}
			painter.DrawLayer(st.ensurePass(), cmd.Layer, cmd.Coords, cmd.Transform)
		case *rtt.Drape:
			if st.skip {
				continue
			}
			stack, ok := eng.targets[cmd.Surface]
			if !ok {
				// The stack's own draws were skipped; nothing to project.
				continue
			}
			elev, err := eng.elevationFor(queue, cmd.Tile)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			uniforms := drapeUniforms{
				Matrix:       cmd.Matrix,
				Exaggeration: eng.options.Exaggeration,
				MeshSize:     float32(eng.options.MeshSize),
				TileSize:     float32(eng.options.TileSize),
			}
			buf := eng.acquireUniformBuf()
			queue.WriteBuffer(buf, 0, safeish.AsBytes(&uniforms))

			bindGroup := eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Layout: eng.drape.BindLayout,
				Entries: []wgpu.BindGroupEntry{
					{
						Binding: 0,
						Buffer:  buf,
						Size:    uniformBufSize,
					},
					{
						Binding:     1,
						TextureView: stack.View,
					},
					{
						Binding:     2,
						TextureView: elev.View,
					},
				},
			})
			st.release = append(st.release, bindGroup)

			pass := st.ensurePass()
			pass.SetPipeline(eng.drape.Pipeline)
			pass.SetBindGroup(0, bindGroup, nil)
			pass.Draw(eng.options.MeshSize*eng.options.MeshSize*6, 1, 0, 0)
		case *rtt.Present:
			st.endPass()
			if surface != nil {
				eng.blitToSurface(&st, surface)
			}
		default:
			panic(fmt.Sprintf("unhandled command type %T", cmd))
		}
	}
	st.endPass()

	cmd := st.encoder.Finish(nil)
	queue.Submit(cmd)
	cmd.Release()
	st.encoder.Release()
	for _, r := range st.release {
		r.Release()
	}
	eng.releaseUniformBufs()

	return errors.Join(errs...)
}

func (eng *Engine) blitToSurface(st *runState, surface *wgpu.SurfaceTexture) {
	surfaceView := surface.Texture.CreateView(nil)
	st.release = append(st.release, surfaceView)

	bindGroup := eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: eng.blit.BindLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding:     0,
				TextureView: eng.frame.View,
			},
		},
	})
	st.release = append(st.release, bindGroup)

	pass := st.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       surfaceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	pass.SetPipeline(eng.blit.Pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(6, 1, 0, 0)
	pass.End()
	pass.Release()
}
