/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package httppoll

import (
	"context"
	"errors"
	"fmt"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	Type         = "http"
	maxBodyLimit = 10 * 1024 * 1024
)

var (
	// ErrTooManyFailures ends the reader so the supervisor restart policy decides what happens next.
	ErrTooManyFailures = errors.New("too many consecutive poll failures")
)

type (
	// Reader polls an endpoint returning JSON readings, see input.DecodeReadings.
	Reader struct {
		input.BaseReader
		cfg     appconfig.HTTPPollConfig
		site    string
		client  *http.Client
		limiter ratelimit.Limiter
	}
)

func init() {
	input.Register(Type, func(cfg *appconfig.IngestConfig) bool {
		return cfg.Readers.HTTP.Enabled
	}, func(cfg *appconfig.IngestConfig) (input.Reader, error) {
		return New(cfg.Readers.HTTP, cfg.Site)
	})
}

func New(cfg appconfig.HTTPPollConfig, site string) (*Reader, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid http reader url %q", cfg.URL)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid http reader interval %s", cfg.Interval)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	return &Reader{
		cfg:     cfg,
		site:    site,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RateLimit),
	}, nil
}

func (r *Reader) Name() string {
	return Type + ":" + r.cfg.URL
}

func (r *Reader) Read(ctx context.Context, emit input.Emit) error {
	if err := r.Acquire(); err != nil {
		return err
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		r.limiter.Take()
		if ctx.Err() != nil {
			return nil
		}
		if err := r.poll(ctx, emit); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			logger.Warnz("[http] poll error",
				zap.String("url", r.cfg.URL),
				zap.Int("failures", failures),
				zap.Error(err))
			if r.cfg.MaxFailures > 0 && failures >= r.cfg.MaxFailures {
				return fmt.Errorf("%w: %d, last: %v", ErrTooManyFailures, failures, err)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reader) poll(ctx context.Context, emit input.Emit) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return err
	}
	for k, v := range r.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLimit))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	readings, skipped, err := input.DecodeReadings(body, r.site, time.Now())
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Debugz("[http] skip entries", zap.String("url", r.cfg.URL), zap.Int("skipped", skipped))
	}
	for _, reading := range readings {
		emit(reading)
	}
	return nil
}

func (r *Reader) Close() error {
	return r.CloseOnce(func() error {
		r.client.CloseIdleConnections()
		return nil
	})
}
