/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package input

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"math"
	"testing"
	"time"
)

func TestDecodeReadings_Object(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rs, skipped, err := DecodeReadings([]byte(`{"tagId":"x","value":"10.5","unit":"bar","asset":"p1"}`), "s1", now)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rs, 1)
	assert.Equal(t, &model.RawReading{
		TagID:      "x",
		Value:      10.5,
		Quality:    "Good",
		SourceTime: now,
		Unit:       "bar",
		Site:       "s1",
		Asset:      "p1",
	}, rs[0])
}

func TestDecodeReadings_Array(t *testing.T) {
	now := time.Now()
	rs, skipped, err := DecodeReadings([]byte(`[
		{"tagId":"a","value":1,"quality":"Bad","timestamp":1700000000123,"site":"other"},
		{"tagId":"b","value":true,"timestamp":1700000000},
		{"tagId":"c","value":2,"timestamp":"2023-11-14T22:13:20Z"},
		{"value":3},
		{"tagId":"d"},
		{"tagId":"e","value":"abc"},
		{"tagId":"f","value":1,"timestamp":"yesterday"}
	]`), "s1", now)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, rs, 3)

	assert.Equal(t, "Bad", rs[0].Quality)
	assert.Equal(t, "other", rs[0].Site)
	assert.Equal(t, time.UnixMilli(1700000000123), rs[0].SourceTime)

	assert.Equal(t, 1.0, rs[1].Value)
	assert.Equal(t, time.Unix(1700000000, 0), rs[1].SourceTime)

	assert.True(t, rs[2].SourceTime.Equal(time.Unix(1700000000, 0)))
}

func TestDecodeReadings_Malformed(t *testing.T) {
	for _, s := range []string{"", "  ", "{", "[1,2]", "nope"} {
		_, _, err := DecodeReadings([]byte(s), "s1", time.Now())
		assert.Error(t, err, s)
	}
}

func TestDecodeReadings_NonFinite(t *testing.T) {
	rs, skipped, err := DecodeReadings([]byte(`[
		{"tagId":"a","value":"NaN"},
		{"tagId":"b","value":1},
		{"tagId":"c","value":"+Inf"},
		{"tagId":"d","value":"-Inf"}
	]`), "s1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, rs, 1)
	assert.Equal(t, "b", rs[0].TagID)
}

func TestCheckFinite(t *testing.T) {
	assert.NoError(t, CheckFinite(0))
	assert.NoError(t, CheckFinite(-1.5e300))
	assert.Error(t, CheckFinite(math.NaN()))
	assert.Error(t, CheckFinite(math.Inf(1)))
	assert.Error(t, CheckFinite(math.Inf(-1)))
}
