/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package appconfig

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Site)
	assert.Equal(t, 5*time.Second, cfg.Tags.WatchInterval)
	assert.Equal(t, 1000, cfg.Pipeline.BatchMaxSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.BatchMaxAge)
	assert.Equal(t, 50*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.Equal(t, QueueModeUnbounded, cfg.Pipeline.Queue.Mode)
	assert.Equal(t, FirstSampleSuppress, cfg.Pipeline.Deadband.FirstSample)
	assert.Equal(t, PublishPolicyDrop, cfg.Pipeline.Publish.Policy)
	assert.Equal(t, RestartNone, cfg.Restart.Policy)
	assert.Equal(t, "console", cfg.Output.Type)
	assert.True(t, cfg.Pipeline.ShouldFlushOnShutdown())
}

func TestLoad_YamlAndToml(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
site: plant-7
tags:
  path: /etc/ingest/tags.yaml
  watchInterval: 2s
pipeline:
  batchMaxSize: 10
  batchMaxAge: 1s
  queue:
    mode: bounded
  deadband:
    firstSample: pass
readers:
  mqtt:
    enabled: true
    broker: tcp://broker:1883
    topics: ["plant/+/telemetry"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingest.yaml"), []byte(yamlContent), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conf"), 0755))
	tomlContent := `
[restart]
policy = "exponential"
min = "200ms"
max = "10s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf", "ingest.toml"), []byte(tomlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "plant-7", cfg.Site)
	assert.Equal(t, "/etc/ingest/tags.yaml", cfg.Tags.Path)
	assert.Equal(t, 2*time.Second, cfg.Tags.WatchInterval)
	assert.Equal(t, 10, cfg.Pipeline.BatchMaxSize)
	assert.Equal(t, time.Second, cfg.Pipeline.BatchMaxAge)
	assert.Equal(t, QueueModeBounded, cfg.Pipeline.Queue.Mode)
	assert.Equal(t, 100_000, cfg.Pipeline.Queue.Capacity)
	assert.Equal(t, FirstSamplePass, cfg.Pipeline.Deadband.FirstSample)
	assert.True(t, cfg.Readers.MQTT.Enabled)
	assert.Equal(t, []string{"plant/+/telemetry"}, cfg.Readers.MQTT.Topics)
	assert.Equal(t, "holoinsight-ingest-plant-7", cfg.Readers.MQTT.ClientID)
	assert.Equal(t, RestartExponential, cfg.Restart.Policy)
	assert.Equal(t, 200*time.Millisecond, cfg.Restart.Min)
	assert.Equal(t, 10*time.Second, cfg.Restart.Max)
	assert.Equal(t, "telemetry.plant-7", cfg.Output.NATS.Subject)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("HI_SITE", "env-site")
	t.Setenv("HI_PIPELINE_BATCH_MAX_SIZE", "42")
	t.Setenv("HI_PIPELINE_BATCH_MAX_AGE", "750ms")
	t.Setenv("HI_READERS_HTTP_ENABLED", "true")
	t.Setenv("HI_READERS_HTTP_URL", "http://gateway/readings")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env-site", cfg.Site)
	assert.Equal(t, 42, cfg.Pipeline.BatchMaxSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.BatchMaxAge)
	assert.True(t, cfg.Readers.HTTP.Enabled)
	assert.Equal(t, "http://gateway/readings", cfg.Readers.HTTP.URL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HI_PIPELINE_BATCH_MAX_SIZE", "many")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &IngestConfig{}
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Restart.Policy = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg.Restart.Policy = RestartFixed
	cfg.Pipeline.Queue.Mode = "lossy"
	assert.Error(t, cfg.Validate())

	cfg.Pipeline.Queue.Mode = QueueModeUnbounded
	cfg.Restart.Min = time.Hour
	assert.Error(t, cfg.Validate())
}
