/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/stretchr/testify/assert"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"testing"
	"time"
)

func TestBatch(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	b := NewBatch(2, time.Second, t0)

	assert.False(t, b.Full())
	assert.False(t, b.Expired(t0.Add(999*time.Millisecond)))
	assert.True(t, b.Expired(t0.Add(time.Second)))

	b.Add(&model.Envelope{TagID: "a"})
	assert.False(t, b.Full())
	b.Add(&model.Envelope{TagID: "b"})
	assert.True(t, b.Full())

	items := b.Take(t0.Add(2 * time.Second))
	assert.Len(t, items, 2)
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Expired(t0.Add(2500*time.Millisecond)))

	// the taken slice is not reused
	b.Add(&model.Envelope{TagID: "c"})
	assert.Equal(t, "a", items[0].TagID)
}
