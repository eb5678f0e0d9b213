// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gmath provides the small amount of linear algebra that the
// compositor and the GPU engine share. All matrix types use host layout so
// they can be uploaded to the GPU verbatim.
package gmath

import (
	"structs"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
	"honnef.co/go/curve"
)

const earthCircumference = 40_075_016.686

// Transform is a 2D affine transform in the 2x2 matrix + translation form
// used in GPU uniforms.
type Transform struct {
	_ structs.HostLayout

	Matrix      [4]float32
	Translation [2]float32
}

var Identity = Transform{
	Matrix: [4]float32{1, 0, 0, 1},
}

func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Matrix: [4]float32{
			t.Matrix[0]*other.Matrix[0] + t.Matrix[2]*other.Matrix[1],
			t.Matrix[1]*other.Matrix[0] + t.Matrix[3]*other.Matrix[1],
			t.Matrix[0]*other.Matrix[2] + t.Matrix[2]*other.Matrix[3],
			t.Matrix[1]*other.Matrix[2] + t.Matrix[3]*other.Matrix[3],
		},
		Translation: [2]float32{
			t.Matrix[0]*other.Translation[0] +
				t.Matrix[2]*other.Translation[1] +
				t.Translation[0],
			t.Matrix[1]*other.Translation[0] +
				t.Matrix[3]*other.Translation[1] +
				t.Translation[1],
		},
	}
}

// TransformFromAffine converts a curve.Affine, the form in which camera
// transforms arrive, into the GPU layout.
func TransformFromAffine(transform curve.Affine) Transform {
	c := transform.Coefficients()
	return Transform{
		Matrix:      [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])},
		Translation: [2]float32{float32(c[4]), float32(c[5])},
	}
}

// Mat4 is a column-major 4x4 matrix.
type Mat4 struct {
	_ structs.HostLayout

	Cols [16]float32
}

func Mat4Identity() Mat4 {
	return Mat4{Cols: [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m.Cols[k*4+row] * other.Cols[col*4+k]
			}
			out.Cols[col*4+row] = sum
		}
	}
	return out
}

// Ortho returns an orthographic projection mapping the given box to clip
// space, with depth mapped to [0, 1] as wgpu expects.
func Ortho(left, right, bottom, top, near, far float32) Mat4 {
	rl := right - left
	tb := top - bottom
	fn := far - near
	return Mat4{Cols: [16]float32{
		2 / rl, 0, 0, 0,
		0, 2 / tb, 0, 0,
		0, 0, -1 / fn, 0,
		-(right + left) / rl, -(top + bottom) / tb, -near / fn, 1,
	}}
}

// TileMatrix positions a unit tile (coordinates in [0, 1]^2) within a
// projection. scale is the tile's size in projected units, tx/ty its
// origin.
func TileMatrix(proj Mat4, tx, ty, scale float32) Mat4 {
	place := Mat4{Cols: [16]float32{
		scale, 0, 0, 0,
		0, scale, 0, 0,
		0, 0, 1, 0,
		tx, ty, 0, 1,
	}}
	return proj.Mul(place)
}

// MetersPerPixel is the ground resolution of a web-mercator pixel at the
// given latitude (degrees) and zoom, for a 512px tile. Used to scale
// elevation into tile-local units.
func MetersPerPixel(lat, zoom float32) float32 {
	const tileSize = 512
	return earthCircumference * math32.Cos(lat*math32.Pi/180) /
		(tileSize * math32.Exp2(zoom))
}

// ZoomScale is the factor by which the world grows from zoom 0 to the
// given zoom.
func ZoomScale(zoom float32) float32 {
	return math32.Exp2(zoom)
}

// ScaleZoom is the inverse of ZoomScale.
func ScaleZoom(scale float32) float32 {
	return math32.Log2(scale)
}

// AlignUp rounds len up to a multiple of alignment, which has to be a
// power of two.
func AlignUp[T constraints.Integer](len, alignment T) T {
	return (len + alignment - 1) & -alignment
}
