// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"honnef.co/go/wgpu"
)

// drapePipeline projects a tile's composited stack texture onto the
// terrain elevation mesh. The mesh is generated in the vertex shader from
// the vertex index; elevation is read per vertex from the tile's sample
// grid.
type drapePipeline struct {
	BindLayout *wgpu.BindGroupLayout
	Pipeline   *wgpu.RenderPipeline
}

func newDrapePipeline(dev *wgpu.Device) *drapePipeline {
	const src = `
			struct Uniforms {
				matrix: mat4x4<f32>,
				exaggeration: f32,
				mesh_size: f32,
				tile_size: f32,
				pad: f32,
			}

			@group(0) @binding(0)
			var<uniform> uniforms: Uniforms;
			@group(0) @binding(1)
			var stack: texture_2d<f32>;
			@group(0) @binding(2)
			var elevation: texture_2d<f32>;

			struct VertexOutput {
				@builtin(position) position: vec4<f32>,
				@location(0) uv: vec2<f32>,
			}

			@vertex
			fn vs_main(@builtin(vertex_index) ix: u32) -> VertexOutput {
				let mesh = u32(uniforms.mesh_size);
				let quad = ix / 6u;
				let corner = ix % 6u;
				var cell = vec2(quad % mesh, quad / mesh);
				// Two CCW triangles per grid cell.
				switch corner {
					case 1u, 4u: {
						cell += vec2(1u, 1u);
					}
					case 2u: {
						cell += vec2(0u, 1u);
					}
					case 5u: {
						cell += vec2(1u, 0u);
					}
					default: {}
				}
				let uv = vec2<f32>(cell) / uniforms.mesh_size;

				let dim = textureDimensions(elevation);
				let texel = vec2<i32>(uv * vec2<f32>(dim - vec2(1u, 1u)) + vec2(0.5, 0.5));
				let height = textureLoad(elevation, texel, 0).r * uniforms.exaggeration;

				var out: VertexOutput;
				out.position = uniforms.matrix * vec4(uv * uniforms.tile_size, height, 1.0);
				out.uv = uv;
				return out;
			}

			@fragment
			fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
				let dim = textureDimensions(stack);
				let texel = vec2<i32>(in.uv * vec2<f32>(dim - vec2(1u, 1u)));
				return textureLoad(stack, texel, 0);
			}`

	shader := dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  "drape shaders",
		Source: wgpu.ShaderSourceWGSL(src),
	})
	bindLayout := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Binding:    0,
				Buffer: &wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeUniform,
				},
			},
			{
				Visibility: wgpu.ShaderStageFragment,
				Binding:    1,
				Texture: &wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
			{
				Visibility: wgpu.ShaderStageVertex,
				Binding:    2,
				Texture: &wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
		},
	})
	pipelineLayout := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "drape pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindLayout},
	})
	pipeline := dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "drape pipeline",
		Layout: pipelineLayout,
		Vertex: &wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    wgpu.TextureFormatRGBA8Unorm,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: &wgpu.PrimitiveState{
			Topology:         wgpu.PrimitiveTopologyTriangleList,
			StripIndexFormat: ^wgpu.IndexFormat(0),
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         wgpu.CullModeNone,
		},
		Multisample: &wgpu.MultisampleState{
			Count:                  1,
			Mask:                   ^uint32(0),
			AlphaToCoverageEnabled: false,
		},
	})
	return &drapePipeline{
		BindLayout: bindLayout,
		Pipeline:   pipeline,
	}
}

// blitPipeline copies the composited frame target to the window surface,
// converting to the surface format.
type blitPipeline struct {
	BindLayout *wgpu.BindGroupLayout
	Pipeline   *wgpu.RenderPipeline
}

func newBlitPipeline(dev *wgpu.Device, format wgpu.TextureFormat) *blitPipeline {
	const src = `
			@vertex
			fn vs_main(@builtin(vertex_index) ix: u32) -> @builtin(position) vec4<f32> {
				// Generate a full screen quad in normalized device coordinates
				var vertex = vec2(-1.0, 1.0);
				switch ix {
					case 1u: {
						vertex = vec2(-1.0, -1.0);
					}
					case 2u, 4u: {
						vertex = vec2(1.0, -1.0);
					}
					case 5u: {
						vertex = vec2(1.0, 1.0);
					}
					default: {}
				}
				return vec4(vertex, 0.0, 1.0);
			}

			@group(0) @binding(0)
			var frame: texture_2d<f32>;

			@fragment
			fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
				return textureLoad(frame, vec2<i32>(pos.xy), 0);
			}`

	shader := dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  "blit shaders",
		Source: wgpu.ShaderSourceWGSL(src),
	})
	bindLayout := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Visibility: wgpu.ShaderStageFragment,
				Binding:    0,
				Texture: &wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
		},
	})
	pipelineLayout := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "blit pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindLayout},
	})
	pipeline := dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "blit pipeline",
		Layout: pipelineLayout,
		Vertex: &wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: &wgpu.PrimitiveState{
			Topology:         wgpu.PrimitiveTopologyTriangleList,
			StripIndexFormat: ^wgpu.IndexFormat(0),
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         wgpu.CullModeBack,
		},
		Multisample: &wgpu.MultisampleState{
			Count:                  1,
			Mask:                   ^uint32(0),
			AlphaToCoverageEnabled: false,
		},
	})
	return &blitPipeline{
		BindLayout: bindLayout,
		Pipeline:   pipeline,
	}
}
