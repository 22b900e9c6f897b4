/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package console

import (
	"context"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/output"
	"go.uber.org/zap"
	"sync/atomic"
	"time"
)

type (
	// Publisher logs envelopes. Meant for development and dry runs.
	Publisher struct {
		batches   int64
		envelopes int64
	}
)

func init() {
	output.Register(output.ConsoleType, func(*appconfig.IngestConfig) (output.Publisher, error) {
		return New(), nil
	})
}

func New() *Publisher {
	return &Publisher{}
}

func (c *Publisher) Name() string {
	return output.ConsoleType
}

func (c *Publisher) PublishBatch(ctx context.Context, envelopes []*model.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	atomic.AddInt64(&c.batches, 1)
	atomic.AddInt64(&c.envelopes, int64(len(envelopes)))
	for _, e := range envelopes {
		logger.Debugf("[output] [console] tag=[%s] value=[%f] unit=[%s] site=[%s] asset=[%s] ts=[%s]",
			e.TagID,
			e.Value,
			e.Unit,
			e.Site,
			e.Asset,
			e.SourceTime.Format(time.RFC3339Nano))
	}
	logger.Infoz("[output] [console] batch", zap.Int("size", len(envelopes)))
	return nil
}

// Count returns published batches and envelopes.
func (c *Publisher) Count() (int64, int64) {
	return atomic.LoadInt64(&c.batches), atomic.LoadInt64(&c.envelopes)
}

func (c *Publisher) Close() error {
	return nil
}
