/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package supervisor

import (
	"github.com/jpillora/backoff"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"time"
)

type (
	// RestartPolicy decides whether and when an ended reader is rebuilt.
	RestartPolicy struct {
		// none, fixed or exponential
		Mode   string
		Min    time.Duration
		Max    time.Duration
		Factor float64
	}
)

// NoRestart leaves ended readers alone.
var NoRestart = RestartPolicy{Mode: appconfig.RestartNone}

func NewRestartPolicy(cfg appconfig.RestartConfig) RestartPolicy {
	return RestartPolicy{
		Mode:   cfg.Policy,
		Min:    cfg.Min,
		Max:    cfg.Max,
		Factor: cfg.Factor,
	}
}

func (p RestartPolicy) Enabled() bool {
	return p.Mode == appconfig.RestartFixed || p.Mode == appconfig.RestartExponential
}

// backoff returns a fresh delay sequence for one reader.
func (p RestartPolicy) backoff() *backoff.Backoff {
	if p.Mode == appconfig.RestartFixed {
		return &backoff.Backoff{
			Min:    p.Min,
			Max:    p.Min,
			Factor: 1,
		}
	}
	factor := p.Factor
	if factor <= 1 {
		factor = 2
	}
	return &backoff.Backoff{
		Min:    p.Min,
		Max:    p.Max,
		Factor: factor,
		Jitter: true,
	}
}

// stableAfter is how long a reader must run before its delay sequence starts over.
func (p RestartPolicy) stableAfter() time.Duration {
	if p.Max > p.Min {
		return p.Max
	}
	return p.Min
}
