/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"github.com/jpillora/backoff"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/util"
	"time"
)

type (
	// FailurePolicy decides how often a batch is handed to the publisher.
	// Whatever the outcome, the batch is discarded by the pipeline afterwards.
	FailurePolicy interface {
		Name() string
		// Publish calls publish until it succeeds or the policy gives up.
		// It returns the number of attempts and the last error.
		Publish(ctx context.Context, publish func(context.Context) error) (int, error)
	}

	// DropOnFailure calls the publisher once. A failed batch is lost.
	DropOnFailure struct{}

	// RetryWithBackoff calls the publisher up to MaxAttempts times with exponential backoff in between.
	RetryWithBackoff struct {
		MaxAttempts int
		Min         time.Duration
		Max         time.Duration
	}
)

func (DropOnFailure) Name() string {
	return appconfig.PublishPolicyDrop
}

func (DropOnFailure) Publish(ctx context.Context, publish func(context.Context) error) (int, error) {
	return 1, publish(ctx)
}

func (r *RetryWithBackoff) Name() string {
	return appconfig.PublishPolicyRetry
}

func (r *RetryWithBackoff) Publish(ctx context.Context, publish func(context.Context) error) (int, error) {
	b := &backoff.Backoff{
		Min:    r.Min,
		Max:    r.Max,
		Factor: 2,
		Jitter: true,
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		if err = publish(ctx); err == nil {
			return attempts, nil
		}
		if attempts == maxAttempts {
			break
		}
		if !util.Sleep(ctx, b.Duration()) {
			break
		}
	}
	return attempts, err
}

// NewFailurePolicy builds the policy named in config.
func NewFailurePolicy(cfg appconfig.PublishConfig) FailurePolicy {
	if cfg.Policy == appconfig.PublishPolicyRetry {
		return &RetryWithBackoff{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Min:         cfg.Retry.Min,
			Max:         cfg.Retry.Max,
		}
	}
	return DropOnFailure{}
}
