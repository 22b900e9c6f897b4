/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package tagregistry

import (
	"context"
	"github.com/bep/debounce"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"go.uber.org/zap"
	"time"
)

const (
	DefaultWatchInterval = 5 * time.Second
	triggerDebounce      = 500 * time.Millisecond
)

type (
	// Watcher polls the source marker and reloads the registry when the marker advances.
	Watcher struct {
		registry *Registry
		interval time.Duration

		lastMarker time.Time
		trigger    chan struct{}
		debounce   func(f func())
	}
)

func NewWatcher(registry *Registry, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		registry: registry,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		debounce: debounce.New(triggerDebounce),
	}
}

// Trigger asks for a reload regardless of the marker. Bursts of calls are coalesced.
func (w *Watcher) Trigger() {
	w.debounce(func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

// Run blocks until ctx is done. Reload failures are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	logger.Infoz("[tags] [watcher] start", zap.String("source", w.registry.source.Name()), zap.Duration("interval", w.interval))

	w.Poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infoz("[tags] [watcher] stop")
			return nil
		case <-ticker.C:
			w.check(ctx, false)
		case <-w.trigger:
			w.check(ctx, true)
		}
	}
}

// Poll reloads once if the marker advanced since the last successful reload.
func (w *Watcher) Poll(ctx context.Context) {
	w.check(ctx, false)
}

// check reloads when the marker advanced since the last successful reload, or when forced.
func (w *Watcher) check(ctx context.Context, force bool) {
	marker, err := w.registry.source.Marker(ctx)
	if err != nil {
		logger.Errorz("[tags] [watcher] read marker error", zap.String("source", w.registry.source.Name()), zap.Error(err))
		return
	}
	if !force && !marker.After(w.lastMarker) {
		return
	}
	if err := w.registry.Reload(ctx); err != nil {
		logger.Errorz("[tags] [watcher] reload error, keep last known good",
			zap.String("source", w.registry.source.Name()),
			zap.Int("tags", w.registry.Len()),
			zap.Error(err))
		return
	}
	w.lastMarker = marker
}
