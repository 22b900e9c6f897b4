/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Dropped.WithLabelValues(DropDeadband).Add(2)
	m.Envelopes.Inc()
	m.QueueLength.Set(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dropped.WithLabelValues(DropDeadband)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Envelopes))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.QueueLength))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ingest_dropped_total"])
	assert.True(t, names["ingest_envelopes_total"])
	assert.True(t, names["ingest_queue_length"])
}

func TestNop(t *testing.T) {
	a := Nop()
	b := Nop()
	a.Envelopes.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Envelopes))
}
