/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"github.com/google/uuid"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/output"
	"go.uber.org/zap"
	"time"
)

const (
	shutdownFlushTimeout = 5 * time.Second
)

type (
	// Pipeline fans readings of many readers into one queue and turns them into published batches.
	// Consume runs once per reader, Run is the single batching loop that owns all batch and deadband state.
	Pipeline struct {
		options
		processor *Processor
		publisher output.Publisher
		now       func() time.Time
	}
)

func New(tags TagLookup, publisher output.Publisher, opts ...OptionFunc) *Pipeline {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	if o.queue == nil {
		o.queue = NewUnboundedQueue()
	}
	if o.policy == nil {
		o.policy = DropOnFailure{}
	}
	if o.metrics == nil {
		o.metrics = observability.Nop()
	}
	if o.batchMaxSize <= 0 {
		o.batchMaxSize = defaultBatchMaxSize
	}
	if o.batchMaxAge <= 0 {
		o.batchMaxAge = defaultBatchMaxAge
	}
	if o.pollInterval <= 0 {
		o.pollInterval = defaultPollInterval
	}
	return &Pipeline{
		options:   o,
		processor: NewProcessor(tags, o.passFirst),
		publisher: publisher,
		now:       time.Now,
	}
}

// NewFromConfig builds a pipeline from process config. The returned store, if any, is owned by the caller.
func NewFromConfig(cfg appconfig.PipelineConfig, tags TagLookup, publisher output.Publisher, metrics *observability.Metrics) (*Pipeline, DeadLetterStore, error) {
	opts := []OptionFunc{
		WithBatchMaxSize(cfg.BatchMaxSize),
		WithBatchMaxAge(cfg.BatchMaxAge),
		WithPollInterval(cfg.PollInterval),
		WithFlushOnShutdown(cfg.ShouldFlushOnShutdown()),
		WithFirstSamplePass(cfg.Deadband.FirstSample == appconfig.FirstSamplePass),
		WithFailurePolicy(NewFailurePolicy(cfg.Publish)),
		WithMetrics(metrics),
	}
	if cfg.Queue.Mode == appconfig.QueueModeBounded {
		opts = append(opts, WithQueue(NewBoundedQueue(cfg.Queue.Capacity)))
	}

	var store DeadLetterStore
	if cfg.Publish.DeadLetter.Enabled {
		s, err := OpenDeadLetterStore(cfg.Publish.DeadLetter.Path)
		if err != nil {
			return nil, nil, err
		}
		store = s
		opts = append(opts, WithDeadLetter(store))
	}
	return New(tags, publisher, opts...), store, nil
}

// Consume reads reader until it ends and pushes every reading into the queue.
// The pipeline never restarts a reader; its error is returned to the caller.
func (p *Pipeline) Consume(ctx context.Context, reader input.Reader) error {
	name := reader.Name()
	readings := p.metrics.Readings.WithLabelValues(name)
	queueFull := p.metrics.Dropped.WithLabelValues(observability.DropQueueFull)
	return reader.Read(ctx, func(r *model.RawReading) {
		if r == nil {
			return
		}
		readings.Inc()
		if !p.queue.Push(r) {
			queueFull.Inc()
		}
	})
}

// Run is the batching loop. It blocks until ctx is done, then drains and flushes once more
// unless flush on shutdown is disabled.
func (p *Pipeline) Run(ctx context.Context) error {
	logger.Infoz("[pipeline] start",
		zap.String("publisher", p.publisher.Name()),
		zap.String("policy", p.policy.Name()),
		zap.Int("batchMaxSize", p.batchMaxSize),
		zap.Duration("batchMaxAge", p.batchMaxAge),
		zap.Duration("pollInterval", p.pollInterval))

	batch := NewBatch(p.batchMaxSize, p.batchMaxAge, p.now())
	buf := make([]*model.RawReading, 0, p.batchMaxSize)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if p.flushOnShutdown {
				fctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
				buf = p.drain(fctx, batch, buf[:0])
				p.flush(fctx, batch, observability.TriggerShutdown)
				cancel()
			}
			logger.Infoz("[pipeline] stop", zap.Int("tags", p.processor.Tracked()))
			return nil
		case <-ticker.C:
			buf = p.drain(ctx, batch, buf[:0])
			if batch.Expired(p.now()) {
				p.flush(ctx, batch, observability.TriggerAge)
			}
		}
	}
}

// drain processes every queued reading, flushing whenever the batch fills up.
func (p *Pipeline) drain(ctx context.Context, batch *Batch, buf []*model.RawReading) []*model.RawReading {
	p.metrics.QueueLength.Set(float64(p.queue.Len()))
	buf = p.queue.Drain(buf)
	for i, r := range buf {
		buf[i] = nil
		e, reason := p.processor.Process(r)
		if e == nil {
			p.metrics.Dropped.WithLabelValues(reason).Inc()
			continue
		}
		p.metrics.Envelopes.Inc()
		batch.Add(e)
		if batch.Full() {
			p.flush(ctx, batch, observability.TriggerSize)
		}
	}
	return buf
}

// flush hands the batch to the publisher through the failure policy. The batch is cleared either way.
func (p *Pipeline) flush(ctx context.Context, batch *Batch, trigger string) {
	envelopes := batch.Take(p.now())
	if len(envelopes) == 0 {
		return
	}

	batchID := uuid.NewString()
	begin := time.Now()
	attempts, err := p.policy.Publish(output.WithBatchID(ctx, batchID), func(ctx context.Context) error {
		return p.publisher.PublishBatch(ctx, envelopes)
	})
	p.metrics.FlushDuration.Observe(time.Since(begin).Seconds())
	if attempts > 1 {
		p.metrics.PublishRetries.Add(float64(attempts - 1))
	}
	if err == nil {
		p.metrics.Flushes.WithLabelValues(trigger, observability.ResultOK).Inc()
		return
	}

	p.metrics.Flushes.WithLabelValues(trigger, observability.ResultError).Inc()
	logger.Errorz("[pipeline] flush error, batch discarded",
		zap.String("trigger", trigger),
		zap.String("batch", batchID),
		zap.String("publisher", p.publisher.Name()),
		zap.Int("size", len(envelopes)),
		zap.Int("attempts", attempts),
		zap.Error(err))

	if p.deadLetter == nil {
		return
	}
	if derr := p.deadLetter.Save(context.Background(), batchID, p.publisher.Name(), envelopes, err); derr != nil {
		logger.Errorz("[pipeline] save dead letter error", zap.String("batch", batchID), zap.Error(derr))
		return
	}
	p.metrics.DeadLetters.Inc()
}
