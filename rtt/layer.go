// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rtt

import "fmt"

// LayerID names a style layer. Layer contents and styling are opaque to
// the compositor; it only routes layers by kind.
type LayerID string

type LayerKind int

const (
	KindBackground LayerKind = iota
	KindFill
	KindLine
	KindRaster
	KindHillshade
	KindSymbol
	KindCircle
	KindHeatmap
	KindFillExtrusion
	KindCustom

	numLayerKinds
)

var kindNames = [numLayerKinds]string{
	KindBackground:    "background",
	KindFill:          "fill",
	KindLine:          "line",
	KindRaster:        "raster",
	KindHillshade:     "hillshade",
	KindSymbol:        "symbol",
	KindCircle:        "circle",
	KindHeatmap:       "heatmap",
	KindFillExtrusion: "fill-extrusion",
	KindCustom:        "custom",
}

func (k LayerKind) String() string {
	if k < 0 || k >= numLayerKinds {
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
	return kindNames[k]
}

type layerCaps struct {
	// compositable layers batch into a shared offscreen pass.
	compositable bool
	// alwaysRedraw layers are view-dependent and can never reuse a cached
	// surface.
	alwaysRedraw bool
}

var kindCaps = [numLayerKinds]layerCaps{
	KindBackground: {compositable: true},
	KindFill:       {compositable: true},
	KindLine:       {compositable: true},
	KindRaster:     {compositable: true},
	KindHillshade:  {compositable: true, alwaysRedraw: true},
	// Symbols need exact screen-space placement, circles and heatmaps
	// blend in screen space, extrusions and custom layers manage their own
	// depth. They all draw directly to the main target.
	KindSymbol:        {},
	KindCircle:        {},
	KindHeatmap:       {},
	KindFillExtrusion: {},
	KindCustom:        {},
}

// Compositable reports whether layers of this kind render into a shared
// offscreen surface when terrain is active.
func (k LayerKind) Compositable() bool {
	return kindCaps[k].compositable
}

// AlwaysRedraw reports whether layers of this kind must re-render every
// frame regardless of caching.
func (k LayerKind) AlwaysRedraw() bool {
	return kindCaps[k].alwaysRedraw
}
