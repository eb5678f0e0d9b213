// Copyright 2026 the drape authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package drape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueueRunsInOrder(t *testing.T) {
	var q TaskQueue
	var got []int
	q.Add(func(time.Time) { got = append(got, 1) })
	q.Add(func(time.Time) { got = append(got, 2) })
	q.Add(func(time.Time) { got = append(got, 3) })
	q.Run(time.Now())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, q.Pending())
}

func TestTaskQueueRemove(t *testing.T) {
	var q TaskQueue
	var got []int
	q.Add(func(time.Time) { got = append(got, 1) })
	id := q.Add(func(time.Time) { got = append(got, 2) })
	q.Add(func(time.Time) { got = append(got, 3) })
	q.Remove(id)
	assert.Equal(t, 2, q.Pending())
	q.Run(time.Now())
	assert.Equal(t, []int{1, 3}, got)
}

func TestTaskQueueRemoveUnknownID(t *testing.T) {
	var q TaskQueue
	q.Add(func(time.Time) {})
	q.Remove(TaskID(999))
	assert.Equal(t, 1, q.Pending())
}

func TestTaskQueueAddDuringRunDefersToNextDrain(t *testing.T) {
	var q TaskQueue
	runs := 0
	q.Add(func(time.Time) {
		runs++
		q.Add(func(time.Time) { runs++ })
	})
	q.Run(time.Now())
	assert.Equal(t, 1, runs)
	require.Equal(t, 1, q.Pending())
	q.Run(time.Now())
	assert.Equal(t, 2, runs)
}

func TestTaskQueueRemoveDuringRunCancelsSnapshottedTask(t *testing.T) {
	var q TaskQueue
	var got []int
	var second TaskID
	q.Add(func(time.Time) {
		got = append(got, 1)
		q.Remove(second)
	})
	second = q.Add(func(time.Time) { got = append(got, 2) })
	q.Run(time.Now())
	assert.Equal(t, []int{1}, got)
}

func TestTaskQueueRecursiveRunPanics(t *testing.T) {
	var q TaskQueue
	q.Add(func(time.Time) {
		q.Run(time.Now())
	})
	assert.Panics(t, func() { q.Run(time.Now()) })
}

func TestTaskQueueRunAfterCallbackPanic(t *testing.T) {
	var q TaskQueue
	q.Add(func(time.Time) { panic("boom") })
	assert.Panics(t, func() { q.Run(time.Now()) })
	// The queue must stay usable after a callback panic.
	ran := false
	q.Add(func(time.Time) { ran = true })
	q.Run(time.Now())
	assert.True(t, ran)
}
