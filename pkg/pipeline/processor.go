/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"math"
	"time"
)

type (
	// TagLookup resolves tag definitions. Implemented by tagregistry.Registry.
	TagLookup interface {
		Lookup(tagID string) (*model.TagDefinition, bool)
	}

	// Processor turns raw readings into envelopes: quality filter, tag resolution, normalization
	// and deadband suppression, in that order.
	// It keeps the last retained value per tag and is owned by a single goroutine.
	Processor struct {
		tags TagLookup
		// passFirst lets the first reading of a tag through regardless of its deadband
		passFirst bool
		last      map[string]float64
		now       func() time.Time
	}
)

func NewProcessor(tags TagLookup, passFirst bool) *Processor {
	return &Processor{
		tags:      tags,
		passFirst: passFirst,
		last:      make(map[string]float64),
		now:       time.Now,
	}
}

// Process returns the envelope for r, or nil and the reason it was dropped.
// Dropping is a normal outcome, not an error.
func (p *Processor) Process(r *model.RawReading) (*model.Envelope, string) {
	if !r.IsGood() {
		return nil, observability.DropQuality
	}
	def, ok := p.tags.Lookup(r.TagID)
	if !ok {
		return nil, observability.DropUnknownTag
	}

	value := def.Normalize(r.Value)

	last, seen := p.last[r.TagID]
	if def.Deadband != nil && !(p.passFirst && !seen) {
		if !seen {
			// the first reading is its own reference
			last = value
			p.last[r.TagID] = value
		}
		if math.Abs(value-last) < *def.Deadband {
			return nil, observability.DropDeadband
		}
	}

	// every retained reading is the reference, with or without a deadband
	p.last[r.TagID] = value
	return p.envelope(r, def, value), ""
}

func (p *Processor) envelope(r *model.RawReading, def *model.TagDefinition, value float64) *model.Envelope {
	return &model.Envelope{
		TagID:      r.TagID,
		Value:      value,
		Quality:    r.Quality,
		SourceTime: r.SourceTime,
		IngestTime: p.now(),
		Unit:       def.Unit,
		Site:       r.Site,
		Asset:      r.Asset,
	}
}

// Tracked returns the number of tags with suppression state.
func (p *Processor) Tracked() int {
	return len(p.last)
}
