/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package output

import (
	"context"
	"errors"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"strings"
)

type (
	// Publisher is the downstream sink of finished batches.
	// PublishBatch must accept an empty batch as a no-op. Implementations may split oversized
	// batches and may drop an item that cannot fit any message.
	Publisher interface {
		Name() string
		PublishBatch(ctx context.Context, envelopes []*model.Envelope) error
		Close() error
	}
	composite struct {
		array []Publisher
	}

	batchIDKey struct{}
)

// WithBatchID attaches the id of the batch being published. It stays the same across retries of that batch.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, batchID)
}

// BatchID returns the id attached by WithBatchID, or "".
func BatchID(ctx context.Context) string {
	s, _ := ctx.Value(batchIDKey{}).(string)
	return s
}

func (c *composite) Name() string {
	names := make([]string, len(c.array))
	for i, p := range c.array {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// PublishBatch publishes to every publisher and joins their errors.
func (c *composite) PublishBatch(ctx context.Context, envelopes []*model.Envelope) error {
	var err error
	for _, p := range c.array {
		if e := p.PublishBatch(ctx, envelopes); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (c *composite) Close() error {
	var err error
	for _, p := range c.array {
		if e := p.Close(); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

// Composite fans a batch out to several publishers. nil entries are ignored.
func Composite(array ...Publisher) Publisher {
	cpy := make([]Publisher, 0, len(array))
	for _, p := range array {
		if p != nil {
			cpy = append(cpy, p)
		}
	}
	if len(cpy) == 1 {
		return cpy[0]
	}
	return &composite{array: cpy}
}
