/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ingest"

const (
	DropQuality    = "quality"
	DropUnknownTag = "unknown_tag"
	DropDeadband   = "deadband"
	DropQueueFull  = "queue_full"

	TriggerSize     = "size"
	TriggerAge      = "age"
	TriggerShutdown = "shutdown"

	ResultOK    = "ok"
	ResultError = "error"
)

type (
	// Metrics holds all prometheus collectors of the ingest process.
	Metrics struct {
		Readings       *prometheus.CounterVec
		Dropped        *prometheus.CounterVec
		Envelopes      prometheus.Counter
		Flushes        *prometheus.CounterVec
		FlushDuration  prometheus.Histogram
		PublishRetries prometheus.Counter
		DeadLetters    prometheus.Counter
		QueueLength    prometheus.Gauge
		RegistryTags   prometheus.Gauge
		Reloads        *prometheus.CounterVec
		ReaderRestarts *prometheus.CounterVec
		ReadersRunning prometheus.Gauge
	}
)

// NewMetrics creates collectors and registers them to reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Raw readings received from readers.",
		}, []string{"reader"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Raw readings dropped before reaching a batch.",
		}, []string{"reason"}),
		Envelopes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Normalized envelopes appended to batches.",
		}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_total",
			Help:      "Batch flushes by trigger and publish result.",
		}, []string{"trigger", "result"}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent handing a batch to the publisher.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		PublishRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_retries_total",
			Help:      "Publish attempts beyond the first one.",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letter_batches_total",
			Help:      "Failed batches persisted to the dead letter store.",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Raw readings waiting in the fan-in queue.",
		}),
		RegistryTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_tags",
			Help:      "Tag definitions in the active registry snapshot.",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_reload_total",
			Help:      "Tag registry reloads by result.",
		}, []string{"result"}),
		ReaderRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reader_restarts_total",
			Help:      "Reader restarts performed by the supervisor.",
		}, []string{"reader"}),
		ReadersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readers_running",
			Help:      "Readers currently producing readings.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Readings, m.Dropped, m.Envelopes, m.Flushes, m.FlushDuration, m.PublishRetries,
			m.DeadLetters, m.QueueLength, m.RegistryTags, m.Reloads, m.ReaderRestarts, m.ReadersRunning,
		)
	}
	return m
}

// Nop returns metrics that are not registered anywhere.
func Nop() *Metrics {
	return NewMetrics(nil)
}
