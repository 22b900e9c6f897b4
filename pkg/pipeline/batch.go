/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"time"
)

type (
	// Batch accumulates envelopes until it is full or too old.
	Batch struct {
		items     []*model.Envelope
		maxSize   int
		maxAge    time.Duration
		lastFlush time.Time
	}
)

func NewBatch(maxSize int, maxAge time.Duration, now time.Time) *Batch {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Batch{
		items:     make([]*model.Envelope, 0, maxSize),
		maxSize:   maxSize,
		maxAge:    maxAge,
		lastFlush: now,
	}
}

func (b *Batch) Add(e *model.Envelope) {
	b.items = append(b.items, e)
}

func (b *Batch) Len() int {
	return len(b.items)
}

func (b *Batch) Full() bool {
	return len(b.items) >= b.maxSize
}

// Expired reports whether maxAge has elapsed since the last flush.
func (b *Batch) Expired(now time.Time) bool {
	return now.Sub(b.lastFlush) >= b.maxAge
}

// Take returns the accumulated envelopes and starts a new age window at now.
// The returned slice is not touched by the batch anymore.
func (b *Batch) Take(now time.Time) []*model.Envelope {
	items := b.items
	b.items = make([]*model.Envelope, 0, b.maxSize)
	b.lastFlush = now
	return items
}
