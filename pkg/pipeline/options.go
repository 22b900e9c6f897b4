/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"time"
)

type (
	options struct {
		batchMaxSize    int
		batchMaxAge     time.Duration
		pollInterval    time.Duration
		flushOnShutdown bool
		passFirst       bool

		queue      Queue
		policy     FailurePolicy
		deadLetter DeadLetterStore
		metrics    *observability.Metrics
	}

	OptionFunc func(*options)
)

const (
	defaultBatchMaxSize = 1000
	defaultBatchMaxAge  = 500 * time.Millisecond
	defaultPollInterval = 50 * time.Millisecond
)

func defaultOptions() options {
	return options{
		batchMaxSize:    defaultBatchMaxSize,
		batchMaxAge:     defaultBatchMaxAge,
		pollInterval:    defaultPollInterval,
		flushOnShutdown: true,
	}
}

func WithBatchMaxSize(n int) OptionFunc {
	return func(o *options) {
		o.batchMaxSize = n
	}
}

func WithBatchMaxAge(d time.Duration) OptionFunc {
	return func(o *options) {
		o.batchMaxAge = d
	}
}

func WithPollInterval(d time.Duration) OptionFunc {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithFlushOnShutdown controls the final drain and flush when Run is cancelled.
func WithFlushOnShutdown(b bool) OptionFunc {
	return func(o *options) {
		o.flushOnShutdown = b
	}
}

// WithFirstSamplePass lets the first reading of every tag through its deadband.
func WithFirstSamplePass(b bool) OptionFunc {
	return func(o *options) {
		o.passFirst = b
	}
}

func WithQueue(q Queue) OptionFunc {
	return func(o *options) {
		o.queue = q
	}
}

func WithFailurePolicy(p FailurePolicy) OptionFunc {
	return func(o *options) {
		o.policy = p
	}
}

func WithDeadLetter(s DeadLetterStore) OptionFunc {
	return func(o *options) {
		o.deadLetter = s
	}
}

func WithMetrics(m *observability.Metrics) OptionFunc {
	return func(o *options) {
		o.metrics = m
	}
}
