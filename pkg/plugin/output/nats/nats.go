/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package nats

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/output"
	"go.uber.org/zap"
	"time"
)

const (
	clientName = "holoinsight-ingest"
)

type (
	publishFunc func(ctx context.Context, msg *nats.Msg) error

	// Publisher writes batches to a JetStream subject as JSON arrays of envelopes.
	// A batch larger than maxMessageBytes is split into several messages. Each message carries
	// Nats-Msg-Id "<batch id>-<chunk index>" so the server can deduplicate redelivered chunks.
	Publisher struct {
		cfg     appconfig.NATSConfig
		conn    *nats.Conn
		publish publishFunc
	}
)

func init() {
	output.Register(output.NatsType, func(cfg *appconfig.IngestConfig) (output.Publisher, error) {
		return New(cfg.Output.NATS)
	})
}

// New connects to the server and prepares the stream if one is configured.
func New(cfg appconfig.NATSConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats subject is required")
	}

	conn, err := nats.Connect(cfg.URL, connectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats jetstream: %w", err)
	}

	if cfg.Stream != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
		})
		cancel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("nats ensure stream %s: %w", cfg.Stream, err)
		}
	}

	if limit := conn.MaxPayload(); limit > 0 && (cfg.MaxMessageBytes <= 0 || int64(cfg.MaxMessageBytes) > limit) {
		cfg.MaxMessageBytes = int(limit)
	}

	logger.Infoz("[output] [nats] connected", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject), zap.Int("maxMessageBytes", cfg.MaxMessageBytes))

	return &Publisher{
		cfg:  cfg,
		conn: conn,
		publish: func(ctx context.Context, msg *nats.Msg) error {
			_, err := js.PublishMsg(ctx, msg, jetstream.WithMsgID(msg.Header.Get(nats.MsgIdHdr)))
			return err
		},
	}, nil
}

func connectOptions(cfg appconfig.NATSConfig) []nats.Option {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			return b.ForAttempt(float64(attempts))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnz("[output] [nats] disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infoz("[output] [nats] reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return opts
}

func (p *Publisher) Name() string {
	return output.NatsType + ":" + p.cfg.Subject
}

func (p *Publisher) PublishBatch(ctx context.Context, envelopes []*model.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	chunks, dropped := output.Split(envelopes, p.cfg.MaxMessageBytes)
	if dropped > 0 {
		logger.Warnz("[output] [nats] drop envelopes that cannot be encoded or exceed a message",
			zap.Int("dropped", dropped),
			zap.Int("maxMessageBytes", p.cfg.MaxMessageBytes))
	}

	// chunk ids derive from the batch id so a retried batch is deduplicated by the server
	batchID := output.BatchID(ctx)
	if batchID == "" {
		batchID = uuid.NewString()
	}
	for i, chunk := range chunks {
		msg := nats.NewMsg(p.cfg.Subject)
		msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("%s-%d", batchID, i))
		msg.Data = chunk.Payload

		pctx := ctx
		var cancel context.CancelFunc
		if p.cfg.Timeout > 0 {
			pctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		}
		err := p.publish(pctx, msg)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			logger.Errorz("[output] [nats] publish error",
				zap.String("subject", p.cfg.Subject),
				zap.Int("chunk", i),
				zap.Int("chunks", len(chunks)),
				zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}
