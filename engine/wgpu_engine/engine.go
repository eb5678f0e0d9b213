// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package wgpu_engine executes frame recordings on a wgpu device. It owns
// the GPU side of the compositor: the materialized pool surfaces, the
// terrain elevation textures, the draping pipeline, and the final blit to
// the window surface.
package wgpu_engine

import (
	"fmt"
	"log/slog"
	"structs"

	"github.com/gomaps/drape/gmath"
	"github.com/gomaps/drape/rtt"
	"github.com/gomaps/drape/tile"
	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"
)

type RendererOptions struct {
	// SurfaceFormat is the window surface's texture format.
	SurfaceFormat wgpu.TextureFormat
	// TileSize is the edge length in pixels of pooled composite surfaces.
	// Changing it requires ResetTargets plus a fresh surface pool; targets
	// are never resized in place.
	TileSize uint32
	// MeshSize is the terrain grid resolution per tile edge.
	MeshSize uint32
	// Exaggeration scales elevation when draping.
	Exaggeration float32

	Logger *slog.Logger
}

// LayerPainter draws one layer's geometry for the given tile coordinates
// into the pass's bound target, under the recorded transform. It is the
// boundary to the excluded style rendering subsystem.
type LayerPainter interface {
	DrawLayer(pass *wgpu.RenderPassEncoder, layer rtt.LayerID, coords []tile.ID, transform gmath.Transform)
}

type Engine struct {
	Device  *wgpu.Device
	options RendererOptions
	logger  *slog.Logger

	// targets materializes pool surfaces lazily by surface ID. Grow-only,
	// mirroring the pool: slots are reused across tiles and frames and
	// only dropped by ResetTargets.
	targets map[rtt.SurfaceID]*targetTexture

	// elevations holds one sample grid texture per terrain tile.
	elevations       map[string]*elevationTexture
	defaultElevation *elevationTexture

	drape *drapePipeline
	blit  *blitPipeline
	// frame is the full-frame offscreen target everything composites
	// into before the final blit.
	frame *targetTexture

	// uniform buffers for drape draws, pooled across frames.
	uniformFree []*wgpu.Buffer
	uniformUsed []*wgpu.Buffer
}

func New(dev *wgpu.Device, options RendererOptions) *Engine {
	if options.TileSize == 0 {
		options.TileSize = 512
	}
	if options.MeshSize == 0 {
		options.MeshSize = 64
	}
	if options.Exaggeration == 0 {
		options.Exaggeration = 1
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Engine{
		Device:     dev,
		options:    options,
		logger:     options.Logger,
		targets:    make(map[rtt.SurfaceID]*targetTexture),
		elevations: make(map[string]*elevationTexture),
		drape:      newDrapePipeline(dev),
		blit:       newBlitPipeline(dev, options.SurfaceFormat),
	}
}

type targetTexture struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Width   uint32
	Height  uint32
}

func newTargetTexture(dev *wgpu.Device, label string, width, height uint32) (*targetTexture, error) {
	tex := dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		Format:        wgpu.TextureFormatRGBA8Unorm,
	})
	if tex == nil {
		return nil, fmt.Errorf("creating %dx%d render target %q", width, height, label)
	}
	view := tex.CreateView(nil)
	return &targetTexture{
		Texture: tex,
		View:    view,
		Width:   width,
		Height:  height,
	}, nil
}

func (t *targetTexture) release() {
	t.View.Release()
	t.Texture.Release()
}

// targetFor materializes the offscreen target for a pool surface,
// creating it on first use. Creation failures (exhausted GPU resources)
// are reported so the caller can skip dependent draws instead of
// unwinding the frame.
func (eng *Engine) targetFor(id rtt.SurfaceID) (*targetTexture, error) {
	if t, ok := eng.targets[id]; ok {
		return t, nil
	}
	size := eng.options.TileSize
	t, err := newTargetTexture(eng.Device, fmt.Sprintf("composite surface %d", id), size, size)
	if err != nil {
		return nil, err
	}
	eng.targets[id] = t
	return t, nil
}

// ResetTargets drops every materialized pool surface. Required when the
// tile render size changes; the caller resets the surface pool alongside.
func (eng *Engine) ResetTargets() {
	for _, t := range eng.targets {
		t.release()
	}
	clear(eng.targets)
}

type elevationTexture struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Dim     uint32
}

// UploadElevation stores a tile's elevation sample grid (dim x dim,
// row-major meters) for draping. Terrain collaborators call this whenever
// samples change.
func (eng *Engine) UploadElevation(queue *wgpu.Queue, id tile.ID, dim uint32, samples []float32) error {
	if uint32(len(samples)) != dim*dim {
		panic(fmt.Sprintf("elevation grid for %v has %d samples, want %d", id, len(samples), dim*dim))
	}
	key := id.Key()
	if old, ok := eng.elevations[key]; ok && old.Dim != dim {
		old.View.Release()
		old.Texture.Release()
		delete(eng.elevations, key)
	}
	et, ok := eng.elevations[key]
	if !ok {
		tex := eng.Device.CreateTexture(&wgpu.TextureDescriptor{
			Label: fmt.Sprintf("elevation %s", key),
			Size: wgpu.Extent3D{
				Width:              dim,
				Height:             dim,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
			Format:        wgpu.TextureFormatR32Float,
		})
		if tex == nil {
			return fmt.Errorf("creating %dx%d elevation texture for %v", dim, dim, id)
		}
		et = &elevationTexture{
			Texture: tex,
			View:    tex.CreateView(nil),
			Dim:     dim,
		}
		eng.elevations[key] = et
	}

	queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  et.Texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
			Aspect:   wgpu.TextureAspectAll,
		},
		safeish.SliceCast[[]byte](samples),
		&wgpu.TextureDataLayout{
			Offset:      0,
			BytesPerRow: dim * 4,
		},
		&wgpu.Extent3D{
			Width:              dim,
			Height:             dim,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// DropElevation releases a tile's elevation texture, e.g. when the tile
// leaves the cache.
func (eng *Engine) DropElevation(id tile.ID) {
	key := id.Key()
	if et, ok := eng.elevations[key]; ok {
		et.View.Release()
		et.Texture.Release()
		delete(eng.elevations, key)
	}
}

// elevationFor falls back to a flat 1x1 grid for tiles without samples; a
// frame always renders with whatever data is available.
func (eng *Engine) elevationFor(queue *wgpu.Queue, id tile.ID) (*elevationTexture, error) {
	if et, ok := eng.elevations[id.Key()]; ok {
		return et, nil
	}
	if eng.defaultElevation == nil {
		tex := eng.Device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "flat elevation",
			Size: wgpu.Extent3D{
				Width:              1,
				Height:             1,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
			Format:        wgpu.TextureFormatR32Float,
		})
		if tex == nil {
			return nil, fmt.Errorf("creating flat elevation texture")
		}
		queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
				Aspect:   wgpu.TextureAspectAll,
			},
			[]byte{0, 0, 0, 0},
			&wgpu.TextureDataLayout{
				Offset:      0,
				BytesPerRow: 4,
			},
			&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		)
		eng.defaultElevation = &elevationTexture{
			Texture: tex,
			View:    tex.CreateView(nil),
			Dim:     1,
		}
	}
	return eng.defaultElevation, nil
}

// drapeUniforms is the uniform block of the draping pipeline.
type drapeUniforms struct {
	_ structs.HostLayout

	Matrix       gmath.Mat4
	Exaggeration float32
	MeshSize     float32
	TileSize     float32
	_pad         float32
}

func (eng *Engine) acquireUniformBuf() *wgpu.Buffer {
	if n := len(eng.uniformFree); n > 0 {
		buf := eng.uniformFree[n-1]
		eng.uniformFree = eng.uniformFree[:n-1]
		eng.uniformUsed = append(eng.uniformUsed, buf)
		return buf
	}
	buf := eng.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "drape uniforms",
		Size:  uniformBufSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	eng.uniformUsed = append(eng.uniformUsed, buf)
	return buf
}

// releaseUniformBufs returns this frame's uniform buffers to the free
// list once the frame's commands have been submitted.
func (eng *Engine) releaseUniformBufs() {
	eng.uniformFree = append(eng.uniformFree, eng.uniformUsed...)
	eng.uniformUsed = eng.uniformUsed[:0]
}

const uniformBufSize = 16*4 + 4*4
