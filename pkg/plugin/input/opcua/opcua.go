/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package opcua

import (
	"context"
	"errors"
	"fmt"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/spf13/cast"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	"go.uber.org/zap"
	"strings"
	"sync"
	"time"
)

const (
	Type            = "opcua"
	applicationName = "HoloInsight Ingest"
	closeTimeout    = 5 * time.Second
)

type (
	// Reader subscribes to configured node ids and maps data change notifications to readings.
	Reader struct {
		input.BaseReader
		cfg  appconfig.OPCUAConfig
		site string

		mu     sync.Mutex
		client *opcua.Client
		sub    *opcua.Subscription
	}
)

func init() {
	input.Register(Type, func(cfg *appconfig.IngestConfig) bool {
		return cfg.Readers.OPCUA.Enabled
	}, func(cfg *appconfig.IngestConfig) (input.Reader, error) {
		return New(cfg.Readers.OPCUA, cfg.Site)
	})
}

func New(cfg appconfig.OPCUAConfig, site string) (*Reader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("opcua endpoint is required")
	}
	if len(cfg.Nodes) == 0 {
		return nil, errors.New("opcua requires at least one node")
	}
	for i := range cfg.Nodes {
		if _, err := ua.ParseNodeID(cfg.Nodes[i].NodeID); err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", cfg.Nodes[i].NodeID, err)
		}
		if cfg.Nodes[i].TagID == "" {
			cfg.Nodes[i].TagID = cfg.Nodes[i].NodeID
		}
	}
	return &Reader{cfg: cfg, site: site}, nil
}

func (r *Reader) Name() string {
	return Type + ":" + r.cfg.Endpoint
}

func (r *Reader) Read(ctx context.Context, emit input.Emit) error {
	if err := r.Acquire(); err != nil {
		return err
	}

	client, err := opcua.NewClient(r.cfg.Endpoint, r.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	r.mu.Lock()
	r.client = client
	r.mu.Unlock()

	notifyCh := make(chan *opcua.PublishNotificationData, len(r.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: r.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		return fmt.Errorf("opcua subscribe: %w", err)
	}
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()

	handles := make(map[uint32]appconfig.OPCUANode, len(r.cfg.Nodes))
	for i, node := range r.cfg.Nodes {
		nodeID, _ := ua.ParseNodeID(node.NodeID)
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if r.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(r.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			return fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 || res.Results[0].StatusCode != ua.StatusOK {
			return fmt.Errorf("monitor node %q failed", node.NodeID)
		}
		handles[handle] = node
	}

	logger.Infoz("[opcua] subscribed", zap.String("endpoint", r.cfg.Endpoint), zap.Int("nodes", len(handles)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case notif := <-notifyCh:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				logger.Warnz("[opcua] notification error", zap.String("endpoint", r.cfg.Endpoint), zap.Error(notif.Error))
				continue
			}
			data, ok := notif.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			for _, item := range data.MonitoredItems {
				node, ok := handles[item.ClientHandle]
				if !ok || item.Value == nil {
					continue
				}
				reading, err := r.convert(node, item.Value)
				if err != nil {
					logger.Debugz("[opcua] skip value", zap.String("node", node.NodeID), zap.Error(err))
					continue
				}
				emit(reading)
			}
		}
	}
}

func (r *Reader) convert(node appconfig.OPCUANode, dv *ua.DataValue) (*model.RawReading, error) {
	if dv.Value == nil {
		return nil, errors.New("empty variant")
	}
	v, err := cast.ToFloat64E(dv.Value.Value())
	if err != nil {
		return nil, err
	}
	if err := input.CheckFinite(v); err != nil {
		return nil, err
	}
	return &model.RawReading{
		TagID:      node.TagID,
		Value:      v,
		Quality:    quality(dv.Status),
		SourceTime: sourceTime(dv),
		Unit:       node.Unit,
		Site:       r.site,
		Asset:      node.Asset,
	}, nil
}

func quality(status ua.StatusCode) string {
	if status == ua.StatusOK {
		return model.QualityGood
	}
	return status.Error()
}

// sourceTime prefers the device timestamp, then the server one, then now
func sourceTime(dv *ua.DataValue) time.Time {
	if !dv.SourceTimestamp.IsZero() {
		return dv.SourceTimestamp
	}
	if !dv.ServerTimestamp.IsZero() {
		return dv.ServerTimestamp
	}
	return time.Now()
}

func (r *Reader) Close() error {
	return r.CloseOnce(func() error {
		r.mu.Lock()
		sub, client := r.sub, r.client
		r.sub, r.client = nil, nil
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		var err error
		if sub != nil {
			if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
				err = errors.Join(err, e)
			}
		}
		if client != nil {
			if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
				err = errors.Join(err, e)
			}
		}
		return err
	})
}

func (r *Reader) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(securityMode(r.cfg.SecurityMode)),
		opcua.SecurityPolicy(securityPolicy(r.cfg.SecurityPolicy)),
		opcua.ApplicationName(applicationName),
		opcua.AutoReconnect(true),
	}
	if r.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(r.cfg.Username, r.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func securityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func securityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}
