// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package profiler defines the span interface the frame pipeline reports
// timing through. The zero value of Nop discards all spans.
package profiler

type Group interface {
	Start(label string) Group
	End()
}

type Nop struct{}

func (n Nop) Start(label string) Group { return n }
func (Nop) End()                       {}

// Nest starts a child span on g, tolerating a nil group.
func Nest(g Group, label string) Group {
	if g == nil {
		return Nop{}
	}
	return g.Start(label)
}
