/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"testing"
	"time"
)

func TestDropOnFailure(t *testing.T) {
	calls := 0
	attempts, err := DropOnFailure{}.Publish(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff(t *testing.T) {
	r := &RetryWithBackoff{MaxAttempts: 5, Min: time.Millisecond, Max: 2 * time.Millisecond}

	calls := 0
	attempts, err := r.Publish(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("down")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)

	calls = 0
	attempts, err = r.Publish(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, calls)
}

func TestRetryWithBackoff_Cancel(t *testing.T) {
	r := &RetryWithBackoff{MaxAttempts: 100, Min: time.Hour, Max: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	attempts, err := r.Publish(ctx, func(ctx context.Context) error {
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestNewFailurePolicy(t *testing.T) {
	assert.Equal(t, appconfig.PublishPolicyDrop, NewFailurePolicy(appconfig.PublishConfig{}).Name())
	p := NewFailurePolicy(appconfig.PublishConfig{
		Policy: appconfig.PublishPolicyRetry,
		Retry:  appconfig.RetryConfig{MaxAttempts: 4, Min: time.Second, Max: time.Minute},
	})
	assert.Equal(t, &RetryWithBackoff{MaxAttempts: 4, Min: time.Second, Max: time.Minute}, p)
}
