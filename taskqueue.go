// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package drape

import "time"

type TaskID uint32

type task struct {
	id       TaskID
	callback func(now time.Time)
	canceled bool
}

// TaskQueue is an ordered, cancelable queue of deferred frame callbacks.
// It is single-threaded, like everything driven by the frame loop.
type TaskQueue struct {
	queue   []*task
	running []*task
	nextID  TaskID
}

// Add enqueues a callback for the next drain and returns a handle for
// Remove.
func (q *TaskQueue) Add(cb func(now time.Time)) TaskID {
	q.nextID++
	id := q.nextID
	q.queue = append(q.queue, &task{id: id, callback: cb})
	return id
}

// Remove cancels a pending task. Canceling from within a running task
// works even when the drain has already snapshotted the target. Unknown
// IDs are a no-op.
func (q *TaskQueue) Remove(id TaskID) {
	for _, t := range q.queue {
		if t.id == id {
			t.canceled = true
			return
		}
	}
	for _, t := range q.running {
		if t.id == id {
			t.canceled = true
			return
		}
	}
}

// Run drains the tasks that were present when it was called. Tasks
// enqueued by a running task go to the next drain, so a task rescheduling
// itself cannot recurse within one frame. Panics from callbacks propagate,
// leaving the queue consistent.
func (q *TaskQueue) Run(now time.Time) {
	if q.running != nil {
		panic("recursive TaskQueue.Run")
	}
	q.running = q.queue
	q.queue = nil
	defer func() {
		q.running = nil
	}()
	for _, t := range q.running {
		if t.canceled {
			continue
		}
		t.callback(now)
	}
}

// Pending is the number of not-yet-canceled queued tasks.
func (q *TaskQueue) Pending() int {
	n := 0
	for _, t := range q.queue {
		if !t.canceled {
			n++
		}
	}
	return n
}
