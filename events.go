// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package drape

// Event names a frame lifecycle notification.
type Event string

const (
	// EventRender fires after every executed frame.
	EventRender Event = "render"
	// EventIdle fires once when no recomputation or camera motion is
	// pending, and not again until something becomes dirty.
	EventIdle Event = "idle"
	// EventLoad fires once, on the first frame where the style reports
	// loaded.
	EventLoad Event = "load"
	// EventFullyLoaded fires once, on the first frame where the style and
	// all requested tiles report loaded.
	EventFullyLoaded Event = "fully-loaded"
	// EventError carries diagnostics from the frame driver; the scheduler
	// keeps producing frames afterwards.
	EventError Event = "error"
)

type EventData struct {
	Err error
}

type eventDispatcher struct {
	listeners map[Event][]func(EventData)
}

func (d *eventDispatcher) on(ev Event, fn func(EventData)) {
	if d.listeners == nil {
		d.listeners = make(map[Event][]func(EventData))
	}
	d.listeners[ev] = append(d.listeners[ev], fn)
}

func (d *eventDispatcher) fire(ev Event, data EventData) {
	for _, fn := range d.listeners[ev] {
		fn(data)
	}
}
