/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// QualityGood is the only quality accepted by the pipeline. Comparison is case-insensitive.
	QualityGood = "Good"
	QualityBad  = "Bad"
)

type (
	// TagDefinition describes how readings of one tag are normalized.
	TagDefinition struct {
		ID   string `json:"id" yaml:"id"`
		Unit string `json:"unit" yaml:"unit"`
		// Deadband is the minimum change of the normalized value to be forwarded. nil means no suppression.
		Deadband    *float64 `json:"deadband,omitempty" yaml:"deadband"`
		ScaleFactor *float64 `json:"scaleFactor,omitempty" yaml:"scaleFactor"`
		ScaleOffset *float64 `json:"scaleOffset,omitempty" yaml:"scaleOffset"`
	}

	// RawReading is a single sample produced by a reader.
	RawReading struct {
		TagID      string
		Value      float64
		Quality    string
		SourceTime time.Time
		// Unit as delivered by the source. It is not propagated to envelopes.
		Unit  string
		Site  string
		Asset string
	}

	// Envelope is the publishable unit. It is never mutated after creation.
	Envelope struct {
		TagID      string    `json:"tagId"`
		Value      float64   `json:"value"`
		Quality    string    `json:"quality"`
		SourceTime time.Time `json:"sourceTime"`
		IngestTime time.Time `json:"ingestTime"`
		Unit       string    `json:"unit"`
		Site       string    `json:"site"`
		Asset      string    `json:"asset"`
	}
)

func (r *RawReading) IsGood() bool {
	return strings.EqualFold(r.Quality, QualityGood)
}

func (r *RawReading) String() string {
	return fmt.Sprintf("tag=[%s] value=[%f] quality=[%s] ts=[%s]", r.TagID, r.Value, r.Quality, r.SourceTime.Format(time.RFC3339Nano))
}

// Factor returns the scale factor, defaults to 1.
func (d *TagDefinition) Factor() float64 {
	if d.ScaleFactor == nil {
		return 1
	}
	return *d.ScaleFactor
}

// Offset returns the scale offset, defaults to 0.
func (d *TagDefinition) Offset() float64 {
	if d.ScaleOffset == nil {
		return 0
	}
	return *d.ScaleOffset
}

// Normalize applies the affine transform of this tag to v.
func (d *TagDefinition) Normalize(v float64) float64 {
	return v*d.Factor() + d.Offset()
}

func (e *Envelope) String() string {
	return fmt.Sprintf("tag=[%s] value=[%f] unit=[%s] site=[%s] asset=[%s]", e.TagID, e.Value, e.Unit, e.Site, e.Asset)
}

// Float64 is a helper for building optional fields.
func Float64(f float64) *float64 {
	return &f
}
