/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package mqtt

import (
	"context"
	"errors"
	"fmt"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	Type           = "mqtt"
	connectTimeout = 10 * time.Second
	// milliseconds to wait for in-flight work on disconnect
	disconnectQuiesce = 250
)

type (
	// Reader subscribes to topics carrying JSON readings, see input.DecodeReadings.
	Reader struct {
		input.BaseReader
		cfg  appconfig.MQTTConfig
		site string

		mu     sync.Mutex
		client paho.Client
	}
)

func init() {
	input.Register(Type, func(cfg *appconfig.IngestConfig) bool {
		return cfg.Readers.MQTT.Enabled
	}, func(cfg *appconfig.IngestConfig) (input.Reader, error) {
		return New(cfg.Readers.MQTT, cfg.Site)
	})
}

func New(cfg appconfig.MQTTConfig, site string) (*Reader, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("mqtt requires at least one topic")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", cfg.QoS)
	}
	return &Reader{cfg: cfg, site: site}, nil
}

func (r *Reader) Name() string {
	return Type + ":" + r.cfg.Broker
}

func (r *Reader) Read(ctx context.Context, emit input.Emit) error {
	if err := r.Acquire(); err != nil {
		return err
	}

	filters := make(map[string]byte, len(r.cfg.Topics))
	for _, topic := range r.cfg.Topics {
		filters[topic] = r.cfg.QoS
	}
	handler := func(_ paho.Client, msg paho.Message) {
		r.onMessage(msg.Topic(), msg.Payload(), emit)
	}

	opts := paho.NewClientOptions().
		AddBroker(r.cfg.Broker).
		SetClientID(r.cfg.ClientID).
		SetUsername(r.cfg.Username).
		SetPassword(r.cfg.Password).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnz("[mqtt] connection lost", zap.String("broker", r.cfg.Broker), zap.Error(err))
		}).
		// clean session: subscriptions are restored on every (re)connect
		SetOnConnectHandler(func(c paho.Client) {
			token := c.SubscribeMultiple(filters, handler)
			if token.WaitTimeout(connectTimeout) && token.Error() == nil {
				logger.Infoz("[mqtt] subscribed", zap.String("broker", r.cfg.Broker), zap.Strings("topics", r.cfg.Topics))
				return
			}
			logger.Errorz("[mqtt] subscribe error", zap.String("broker", r.cfg.Broker), zap.Error(token.Error()))
		})

	client := paho.NewClient(opts)
	r.mu.Lock()
	r.client = client
	r.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect %s timeout", r.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", r.cfg.Broker, err)
	}

	<-ctx.Done()
	return nil
}

// onMessage decodes one payload. Malformed payloads and entries are dropped.
func (r *Reader) onMessage(topic string, payload []byte, emit input.Emit) {
	readings, skipped, err := input.DecodeReadings(payload, r.site, time.Now())
	if err != nil {
		logger.Debugz("[mqtt] drop payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if skipped > 0 {
		logger.Debugz("[mqtt] skip entries", zap.String("topic", topic), zap.Int("skipped", skipped))
	}
	for _, reading := range readings {
		emit(reading)
	}
}

func (r *Reader) Close() error {
	return r.CloseOnce(func() error {
		r.mu.Lock()
		client := r.client
		r.client = nil
		r.mu.Unlock()
		if client != nil {
			client.Disconnect(disconnectQuiesce)
		}
		return nil
	})
}
