// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gfx holds graphics types shared between the compositor and the
// GPU engine.
package gfx

import (
	"honnef.co/go/color"
)

// Color is a premultiplied linear-sRGB color, the form render passes clear
// to.
type Color struct {
	R, G, B, A float32
}

var (
	Transparent = Color{}
	Black       = Color{0, 0, 0, 1}
	White       = Color{1, 1, 1, 1}
)

// FromColor converts a style color in any supported color space.
func FromColor(c *color.Color) Color {
	cc := c.Convert(color.LinearSRGB)
	r := cc.Values[0]
	g := cc.Values[1]
	b := cc.Values[2]
	a := cc.Values[3]

	return Color{
		R: float32(r * a),
		G: float32(g * a),
		B: float32(b * a),
		A: float32(a),
	}
}
