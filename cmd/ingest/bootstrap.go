/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package main

import (
	"context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/observability"
	"github.com/traas-stack/holoinsight-ingest/pkg/pipeline"
	"github.com/traas-stack/holoinsight-ingest/pkg/plugin/input"
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/input/all"
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/output/all"
	"github.com/traas-stack/holoinsight-ingest/pkg/server"
	"github.com/traas-stack/holoinsight-ingest/pkg/supervisor"
	"github.com/traas-stack/holoinsight-ingest/pkg/tagregistry"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func bootstrap() error {
	begin := time.Now()

	if err := appconfig.SetupAppConfig(); err != nil {
		return err
	}

	logger.SetupZapLogger()
	defer logger.Sync()

	if os.Getenv("DEBUG") == "true" {
		logger.SetDebugEnabled(true)
	}

	logger.Infoz("[bootstrap] config", zap.Any("config", appconfig.StdIngestConfig))

	logger.Infoz("[bootstrap] readers",
		zap.Strings("registered", input.Types()),
		zap.Strings("enabled", input.Enabled(&appconfig.StdIngestConfig)))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	components, err := supervisor.NewFromConfig(&appconfig.StdIngestConfig, metrics)
	if err != nil {
		logger.Errorz("[bootstrap] build components error", zap.Error(err))
		return err
	}

	server.RegisterApiHandleFunc("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	server.RegisterApiHandleFunc("/api/version", appconfig.VersionHandler)
	logger.RegisterHttpHandler(server.HandleFunc)
	tagregistry.RegisterHttpHandlers(server.HandleFunc, components.Registry, components.Watcher)
	if lister, ok := components.DeadLetter.(pipeline.DeadLetterLister); ok {
		pipeline.RegisterHttpHandlers(server.HandleFunc, lister)
	}

	httpServer := server.NewHttpServerComponent(appconfig.StdIngestConfig.Http.Addr)
	if err := httpServer.Start(); err != nil {
		logger.Errorz("[bootstrap] start http server error", zap.Error(err))
		components.Supervisor.Close()
		return err
	}
	defer httpServer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infoz("[bootstrap] started", zap.Duration("cost", time.Since(begin)))

	err = components.Supervisor.Run(ctx)
	if err != nil {
		logger.Errorz("[bootstrap] supervisor stopped with error", zap.Error(err))
	} else {
		logger.Infoz("[bootstrap] stopped")
	}
	return err
}
