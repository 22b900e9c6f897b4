/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"sync"
)

type (
	// Queue is the fan-in buffer between readers and the batching loop.
	// Push is called by many readers concurrently, Drain by the single batching loop.
	Queue interface {
		// Push never blocks. It returns false when the reading was dropped.
		Push(*model.RawReading) bool
		// Drain moves every queued reading into buf, in arrival order, and returns it.
		Drain(buf []*model.RawReading) []*model.RawReading
		Len() int
	}

	// unboundedQueue never refuses a reading. Memory grows with the backlog.
	unboundedQueue struct {
		mu    sync.Mutex
		items []*model.RawReading
	}

	// boundedQueue drops the newest reading when full.
	boundedQueue struct {
		mu       sync.Mutex
		items    []*model.RawReading
		capacity int
	}
)

func NewUnboundedQueue() Queue {
	return &unboundedQueue{}
}

func NewBoundedQueue(capacity int) Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &boundedQueue{capacity: capacity}
}

func (q *unboundedQueue) Push(r *model.RawReading) bool {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
	return true
}

func (q *unboundedQueue) Drain(buf []*model.RawReading) []*model.RawReading {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return append(buf, items...)
}

func (q *unboundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *boundedQueue) Push(r *model.RawReading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, r)
	return true
}

func (q *boundedQueue) Drain(buf []*model.RawReading) []*model.RawReading {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return append(buf, items...)
}

func (q *boundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
