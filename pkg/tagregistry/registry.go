/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package tagregistry

import (
	"context"
	"errors"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"go.uber.org/zap"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrEmptyDefinitionSet is returned when a reload yields no definitions while the active set is not empty.
	// A half-written file looks exactly like this, so the last known good set is kept.
	ErrEmptyDefinitionSet = errors.New("tag source returned no definitions")
)

type (
	// Registry is the canonical set of tag definitions.
	// The active set is an immutable snapshot behind an atomic pointer: lookups never lock and
	// reloads build a new map off to the side and swap it in one store.
	Registry struct {
		source  Source
		metrics *observability.Metrics

		active atomic.Pointer[snapshot]
		// reloadMu serializes reloads, lookups never touch it
		reloadMu sync.Mutex
	}
	snapshot struct {
		defs     map[string]*model.TagDefinition
		loadedAt time.Time
	}
)

func New(source Source, metrics *observability.Metrics) *Registry {
	if metrics == nil {
		metrics = observability.Nop()
	}
	return &Registry{
		source:  source,
		metrics: metrics,
	}
}

// Lookup returns the definition of tagID from the active snapshot.
func (r *Registry) Lookup(tagID string) (*model.TagDefinition, bool) {
	s := r.active.Load()
	if s == nil {
		return nil, false
	}
	d, ok := s.defs[tagID]
	return d, ok
}

// Len returns the number of definitions in the active snapshot.
func (r *Registry) Len() int {
	s := r.active.Load()
	if s == nil {
		return 0
	}
	return len(s.defs)
}

// LoadedAt returns when the active snapshot was installed. Zero before the first successful load.
func (r *Registry) LoadedAt() time.Time {
	s := r.active.Load()
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Snapshot returns a copy of the active definitions sorted by tag id.
func (r *Registry) Snapshot() []model.TagDefinition {
	s := r.active.Load()
	if s == nil {
		return nil
	}
	ret := make([]model.TagDefinition, 0, len(s.defs))
	for _, d := range s.defs {
		ret = append(ret, *d)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID < ret[j].ID
	})
	return ret
}

// Reload reads the full definition set from the source and replaces the active set atomically.
// On error the active set is left untouched.
func (r *Registry) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	begin := time.Now()
	defs, err := r.source.Load(ctx)
	if err != nil {
		r.metrics.Reloads.WithLabelValues(observability.ResultError).Inc()
		return err
	}

	m := make(map[string]*model.TagDefinition, len(defs))
	for _, d := range defs {
		if _, dup := m[d.ID]; dup {
			logger.Warnz("[tags] duplicated tag id, the last one wins", zap.String("tag", d.ID))
		}
		m[d.ID] = d
	}

	if len(m) == 0 && r.Len() > 0 {
		r.metrics.Reloads.WithLabelValues(observability.ResultError).Inc()
		return ErrEmptyDefinitionSet
	}

	r.active.Store(&snapshot{
		defs:     m,
		loadedAt: time.Now(),
	})
	r.metrics.RegistryTags.Set(float64(len(m)))
	r.metrics.Reloads.WithLabelValues(observability.ResultOK).Inc()

	logger.Configz("[tags] reload",
		zap.String("source", r.source.Name()),
		zap.Int("tags", len(m)),
		zap.Duration("cost", time.Since(begin)))
	return nil
}

func (r *Registry) Source() Source {
	return r.source
}
