/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/output"
	"sync"
	"time"
)

type (
	mapTags map[string]*model.TagDefinition

	recordingPublisher struct {
		mu       sync.Mutex
		batches  [][]*model.Envelope
		err      error
		calls    int
		batchIDs []string
	}

	// sliceReader emits its readings then waits for cancellation
	sliceReader struct {
		input.BaseReader
		readings []*model.RawReading
	}
)

func (m mapTags) Lookup(tagID string) (*model.TagDefinition, bool) {
	d, ok := m[tagID]
	return d, ok
}

func (p *recordingPublisher) Name() string {
	return "recording"
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, envelopes []*model.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.batchIDs = append(p.batchIDs, output.BatchID(ctx))
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, envelopes)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) snapshot() [][]*model.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]*model.Envelope(nil), p.batches...)
}

func (p *recordingPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.batchIDs...)
}

func (p *recordingPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (r *sliceReader) Name() string {
	return "slice"
}

func (r *sliceReader) Read(ctx context.Context, emit input.Emit) error {
	if err := r.Acquire(); err != nil {
		return err
	}
	for _, reading := range r.readings {
		emit(reading)
	}
	<-ctx.Done()
	return nil
}

func (r *sliceReader) Close() error {
	return nil
}

func good(tagID string, v float64) *model.RawReading {
	return &model.RawReading{
		TagID:      tagID,
		Value:      v,
		Quality:    model.QualityGood,
		SourceTime: time.Unix(1700000000, 0),
		Site:       "s1",
		Asset:      "a1",
	}
}
