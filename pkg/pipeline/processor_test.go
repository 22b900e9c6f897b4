/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"math/rand"
	"testing"
	"time"
)

func TestProcessor_QualityFilter(t *testing.T) {
	p := NewProcessor(mapTags{"a": {ID: "a"}}, false)
	for _, q := range []string{"Bad", "Uncertain", "", "good?", "0"} {
		r := good("a", 1)
		r.Quality = q
		e, reason := p.Process(r)
		assert.Nil(t, e, q)
		assert.Equal(t, observability.DropQuality, reason)
	}
	for _, q := range []string{"Good", "GOOD", "good"} {
		r := good("a", 1)
		r.Quality = q
		e, _ := p.Process(r)
		assert.NotNil(t, e, q)
	}
}

func TestProcessor_UnknownTag(t *testing.T) {
	p := NewProcessor(mapTags{"a": {ID: "a"}}, false)
	e, reason := p.Process(good("b", 1))
	assert.Nil(t, e)
	assert.Equal(t, observability.DropUnknownTag, reason)
	assert.Equal(t, 0, p.Tracked())
}

func TestProcessor_Normalization(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		v := rnd.NormFloat64() * 1000
		def := &model.TagDefinition{ID: "a", Unit: "bar"}
		f, o := 1.0, 0.0
		if rnd.Intn(3) > 0 {
			f = rnd.NormFloat64() * 10
			def.ScaleFactor = model.Float64(f)
		}
		if rnd.Intn(3) > 0 {
			o = rnd.NormFloat64() * 100
			def.ScaleOffset = model.Float64(o)
		}

		p := NewProcessor(mapTags{"a": def}, false)
		e, _ := p.Process(good("a", v))
		require.NotNil(t, e)
		assert.InDelta(t, v*f+o, e.Value, 1e-9)
		assert.Equal(t, "bar", e.Unit)
	}
}

func TestProcessor_Envelope(t *testing.T) {
	now := time.Unix(1800000000, 0)
	p := NewProcessor(mapTags{"a": {ID: "a", Unit: "kPa"}}, false)
	p.now = func() time.Time { return now }

	r := good("a", 3)
	r.Unit = "psi"
	e, _ := p.Process(r)
	require.NotNil(t, e)
	assert.Equal(t, &model.Envelope{
		TagID:      "a",
		Value:      3,
		Quality:    model.QualityGood,
		SourceTime: r.SourceTime,
		IngestTime: now,
		Unit:       "kPa",
		Site:       "s1",
		Asset:      "a1",
	}, e)
}

// suppressed iff |v - last retained| < deadband, the first reading is its own reference
func TestProcessor_Deadband(t *testing.T) {
	p := NewProcessor(mapTags{"a": {ID: "a", Deadband: model.Float64(1)}}, false)

	cases := []struct {
		v    float64
		pass bool
	}{
		{10, false},   // first, compared with itself
		{10.5, false}, // 0.5 from 10
		{11, true},    // exactly the deadband is not suppressed
		{11.5, false},
		{10, true},
		{10, false},
		{9.5, false},
		{9, true},
	}
	for i, c := range cases {
		e, reason := p.Process(good("a", c.v))
		if c.pass {
			assert.NotNil(t, e, "case %d", i)
		} else {
			assert.Nil(t, e, "case %d", i)
			assert.Equal(t, observability.DropDeadband, reason, "case %d", i)
		}
	}
}

func TestProcessor_DeadbandPerTag(t *testing.T) {
	db := model.Float64(1)
	p := NewProcessor(mapTags{"a": {ID: "a", Deadband: db}, "b": {ID: "b", Deadband: db}}, false)
	p.Process(good("a", 0))
	p.Process(good("b", 100))

	e, _ := p.Process(good("a", 5))
	assert.NotNil(t, e)
	e, _ = p.Process(good("b", 100.5))
	assert.Nil(t, e)
	assert.Equal(t, 2, p.Tracked())
}

func TestProcessor_FirstSample(t *testing.T) {
	tags := mapTags{
		"a":    {ID: "a", Deadband: model.Float64(0.5)},
		"zero": {ID: "zero", Deadband: model.Float64(0)},
		"none": {ID: "none"},
	}

	p := NewProcessor(tags, false)
	e, _ := p.Process(good("a", 1))
	assert.Nil(t, e)
	e, _ = p.Process(good("zero", 1))
	assert.NotNil(t, e)
	e, _ = p.Process(good("none", 1))
	assert.NotNil(t, e)
	e, _ = p.Process(good("none", 1))
	assert.NotNil(t, e)

	p = NewProcessor(tags, true)
	e, _ = p.Process(good("a", 1))
	assert.NotNil(t, e)
	e, _ = p.Process(good("a", 1.2))
	assert.Nil(t, e)
	e, _ = p.Process(good("a", 1.5))
	assert.NotNil(t, e)
}

func TestProcessor_ScaledDeadband(t *testing.T) {
	p := NewProcessor(mapTags{"x": {ID: "x", Deadband: model.Float64(0.1), ScaleFactor: model.Float64(2)}}, false)

	e, _ := p.Process(good("x", 10))
	assert.Nil(t, e)

	// 20.08 is within 0.1 of 20
	e, _ = p.Process(good("x", 10.04))
	assert.Nil(t, e)

	// 10.05 scales to 20.1, the float64 difference is 0.10000000000000142 which is not below 0.1
	e, _ = p.Process(good("x", 10.05))
	assert.NotNil(t, e)

	e, _ = p.Process(good("x", 12))
	if assert.NotNil(t, e) {
		assert.Equal(t, 24.0, e.Value)
	}
}

func TestProcessor_DeadbandAddedByReload(t *testing.T) {
	for _, passFirst := range []bool{false, true} {
		tags := mapTags{"a": {ID: "a"}}
		p := NewProcessor(tags, passFirst)

		e, _ := p.Process(good("a", 10))
		require.NotNil(t, e)
		assert.Equal(t, 1, p.Tracked())

		tags["a"] = &model.TagDefinition{ID: "a", Deadband: model.Float64(1)}

		// compared with the last retained 10, not taken as a first sample
		e, reason := p.Process(good("a", 50))
		assert.NotNil(t, e, "passFirst=%v reason=%s", passFirst, reason)
		e, reason = p.Process(good("a", 50.5))
		assert.Nil(t, e)
		assert.Equal(t, observability.DropDeadband, reason)
		e, _ = p.Process(good("a", 51))
		assert.NotNil(t, e)
	}
}

func TestProcessor_DeadbandRemovedByReload(t *testing.T) {
	tags := mapTags{"a": {ID: "a", Deadband: model.Float64(1)}}
	p := NewProcessor(tags, true)
	e, _ := p.Process(good("a", 10))
	require.NotNil(t, e)

	tags["a"] = &model.TagDefinition{ID: "a"}
	e, _ = p.Process(good("a", 10.2))
	assert.NotNil(t, e)

	// the unsuppressed 10.2 is the new reference
	tags["a"] = &model.TagDefinition{ID: "a", Deadband: model.Float64(1)}
	e, _ = p.Process(good("a", 11))
	assert.Nil(t, e)
	e, _ = p.Process(good("a", 11.25))
	assert.NotNil(t, e)
}
