/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package supervisor

import (
	"context"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"github.com/traas-stack/holoinsight-ingest/pkg/pipeline"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/output"
	"github.com/traas-stack/holoinsight-ingest/pkg/tagregistry"
	"github.com/traas-stack/holoinsight-ingest/pkg/util"
	"go.uber.org/zap"
	"sync"
	"time"
)

var (
	ErrNoEnabledReaders = errors.New("no reader is enabled")
)

type (
	// ReaderSpec names a reader and builds a fresh instance of it on every call.
	ReaderSpec struct {
		Name  string
		Build func() (input.Reader, error)
	}

	// Supervisor owns the lifetime of the readers, the batching loop and the tag watcher.
	Supervisor struct {
		pipeline *pipeline.Pipeline
		readers  []ReaderSpec
		restart  RestartPolicy
		watcher  *tagregistry.Watcher
		metrics  *observability.Metrics

		// closers run after everything stopped
		closers   []func() error
		closeOnce sync.Once
	}

	OptionFunc func(*Supervisor)
)

func WithRestartPolicy(p RestartPolicy) OptionFunc {
	return func(s *Supervisor) {
		s.restart = p
	}
}

func WithWatcher(w *tagregistry.Watcher) OptionFunc {
	return func(s *Supervisor) {
		s.watcher = w
	}
}

func WithMetrics(m *observability.Metrics) OptionFunc {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithCloser registers f to run once Run has stopped every actor.
func WithCloser(f func() error) OptionFunc {
	return func(s *Supervisor) {
		s.closers = append(s.closers, f)
	}
}

func New(p *pipeline.Pipeline, readers []ReaderSpec, opts ...OptionFunc) *Supervisor {
	s := &Supervisor{
		pipeline: p,
		readers:  readers,
		restart:  NoRestart,
	}
	for _, f := range opts {
		f(s)
	}
	if s.metrics == nil {
		s.metrics = observability.Nop()
	}
	return s
}

type (
	// Components are the long lived parts built from config.
	Components struct {
		Registry   *tagregistry.Registry
		Watcher    *tagregistry.Watcher
		Supervisor *Supervisor
		// DeadLetter is nil when the dead letter store is disabled.
		DeadLetter pipeline.DeadLetterStore
	}
)

// NewFromConfig wires registry, publisher, pipeline and the enabled readers from cfg.
func NewFromConfig(cfg *appconfig.IngestConfig, metrics *observability.Metrics) (*Components, error) {
	types := input.Enabled(cfg)
	if len(types) == 0 {
		return nil, ErrNoEnabledReaders
	}

	registry := tagregistry.New(tagregistry.NewFileSource(cfg.Tags.Path), metrics)
	watcher := tagregistry.NewWatcher(registry, cfg.Tags.WatchInterval)

	publisher, err := output.ParseList(cfg.Output.Type, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build publisher")
	}
	p, store, err := pipeline.NewFromConfig(cfg.Pipeline, registry, publisher, metrics)
	if err != nil {
		publisher.Close()
		return nil, errors.Wrap(err, "build pipeline")
	}

	specs := make([]ReaderSpec, 0, len(types))
	for _, t := range types {
		readerType := t
		specs = append(specs, ReaderSpec{
			Name: readerType,
			Build: func() (input.Reader, error) {
				return input.Parse(readerType, cfg)
			},
		})
	}

	opts := []OptionFunc{
		WithRestartPolicy(NewRestartPolicy(cfg.Restart)),
		WithWatcher(watcher),
		WithMetrics(metrics),
		WithCloser(publisher.Close),
	}
	if store != nil {
		opts = append(opts, WithCloser(store.Close))
	}
	return &Components{
		Registry:   registry,
		Watcher:    watcher,
		Supervisor: New(p, specs, opts...),
		DeadLetter: store,
	}, nil
}

// Run builds every reader, then runs them with the batching loop until ctx is done.
// A reader that fails to build fails the run before anything starts.
// On cancellation readers stop first, then the batching loop drains and stops.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.Close()

	initial := make([]input.Reader, 0, len(s.readers))
	for _, spec := range s.readers {
		r, err := spec.Build()
		if err != nil {
			for _, built := range initial {
				built.Close()
			}
			return errors.Wrapf(err, "build reader %s", spec.Name)
		}
		initial = append(initial, r)
	}

	if s.watcher != nil {
		// load tags before the first reading arrives
		s.watcher.Poll(ctx)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	pipelineCtx, cancelPipeline := context.WithCancel(context.Background())
	defer cancelPipeline()

	readersWg := sync.WaitGroup{}
	var g run.Group
	{
		g.Add(func() error {
			<-runCtx.Done()
			return nil
		}, func(err error) {
			cancelRun()
		})
	}
	{
		g.Add(func() error {
			return s.pipeline.Run(pipelineCtx)
		}, func(err error) {
			cancelRun()
			// readers first, so whatever they queued is drained by the final flush
			go func() {
				readersWg.Wait()
				cancelPipeline()
			}()
		})
	}
	if s.watcher != nil {
		g.Add(func() error {
			return s.watcher.Run(runCtx)
		}, func(err error) {
			cancelRun()
		})
	}
	for i := range s.readers {
		spec, reader := s.readers[i], initial[i]
		readersWg.Add(1)
		g.Add(func() error {
			defer readersWg.Done()
			s.supervise(runCtx, spec, reader)
			// an ended reader must not stop the others
			<-runCtx.Done()
			return nil
		}, func(err error) {
			cancelRun()
		})
	}

	logger.Infoz("[supervisor] start", zap.Int("readers", len(s.readers)), zap.String("restart", s.restart.Mode))
	err := g.Run()
	logger.Infoz("[supervisor] stop", zap.Error(err))
	return err
}

// supervise runs reader until ctx is done, rebuilding it after it ends when the restart policy says so.
func (s *Supervisor) supervise(ctx context.Context, spec ReaderSpec, reader input.Reader) {
	b := s.restart.backoff()
	for {
		begin := time.Now()
		s.metrics.ReadersRunning.Inc()
		logger.Infoz("[supervisor] reader start", zap.String("reader", reader.Name()))
		err := util.WithRecoverE(func() error {
			return s.pipeline.Consume(ctx, reader)
		})
		s.metrics.ReadersRunning.Dec()
		if cerr := reader.Close(); cerr != nil {
			logger.Warnz("[supervisor] reader close error", zap.String("reader", reader.Name()), zap.Error(cerr))
		}
		if ctx.Err() != nil {
			logger.Infoz("[supervisor] reader stop", zap.String("reader", reader.Name()))
			return
		}

		logger.Errorz("[supervisor] reader ended", zap.String("reader", reader.Name()), zap.Duration("uptime", time.Since(begin)), zap.Error(err))
		if !s.restart.Enabled() {
			return
		}
		if time.Since(begin) >= s.restart.stableAfter() {
			b.Reset()
		}

		for {
			if !util.Sleep(ctx, b.Duration()) {
				return
			}
			next, err := spec.Build()
			if err == nil {
				reader = next
				break
			}
			logger.Errorz("[supervisor] rebuild reader error", zap.String("reader", spec.Name), zap.Error(err))
		}
		s.metrics.ReaderRestarts.WithLabelValues(spec.Name).Inc()
	}
}

// Close releases the publisher and stores handed over with WithCloser. Run calls it on return,
// callers only need it when Run is never reached. Calls after the first are no-ops.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		for _, f := range s.closers {
			if err := f(); err != nil {
				logger.Warnz("[supervisor] close error", zap.Error(err))
			}
		}
	})
}
