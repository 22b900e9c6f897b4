/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"sync"
	"testing"
)

func TestUnboundedQueue_PerWriterOrder(t *testing.T) {
	q := NewUnboundedQueue()
	const writers = 8
	const perWriter = 1000

	wg := sync.WaitGroup{}
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.True(t, q.Push(good(fmt.Sprintf("w%d", w), float64(i))))
			}
		}(w)
	}

	var drained []*model.RawReading
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		drained = q.Drain(drained)
	}
	drained = q.Drain(drained)

	require.Len(t, drained, writers*perWriter)
	assert.Equal(t, 0, q.Len())

	last := map[string]float64{}
	for _, r := range drained {
		if prev, ok := last[r.TagID]; ok {
			assert.Equal(t, prev+1, r.Value)
		}
		last[r.TagID] = r.Value
	}
}

func TestBoundedQueue_DropNewest(t *testing.T) {
	q := NewBoundedQueue(3)
	for i := 0; i < 3; i++ {
		assert.True(t, q.Push(good("a", float64(i))))
	}
	assert.False(t, q.Push(good("a", 3)))
	assert.Equal(t, 3, q.Len())

	items := q.Drain(nil)
	require.Len(t, items, 3)
	assert.Equal(t, 2.0, items[2].Value)
	assert.True(t, q.Push(good("a", 4)))
}
