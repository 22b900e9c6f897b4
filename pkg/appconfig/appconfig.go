/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package appconfig is the process level configuration. It is the first thing initialized, do not depend on other business packages.
package appconfig

import (
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"time"
)

var ingestVersion string

const (
	QueueModeUnbounded = "unbounded"
	QueueModeBounded   = "bounded"

	FirstSampleSuppress = "suppress"
	FirstSamplePass     = "pass"

	PublishPolicyDrop  = "drop"
	PublishPolicyRetry = "retry"

	RestartNone        = "none"
	RestartFixed       = "fixed"
	RestartExponential = "exponential"

	defaultSite = "default"
)

var (
	StdIngestConfig = IngestConfig{}
)

type (
	IngestConfig struct {
		Site     string         `json:"site" yaml:"site" toml:"site"`
		Version  string         `json:"version" yaml:"version" toml:"version"`
		Tags     TagsConfig     `json:"tags" yaml:"tags" toml:"tags"`
		Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
		Readers  ReadersConfig  `json:"readers" yaml:"readers" toml:"readers"`
		Restart  RestartConfig  `json:"restart" yaml:"restart" toml:"restart"`
		Output   OutputConfig   `json:"output" yaml:"output" toml:"output"`
		Http     HttpConfig     `json:"http" yaml:"http" toml:"http"`
		Log      LogConfig      `json:"log" yaml:"log" toml:"log"`
	}
	TagsConfig struct {
		// Path of the yaml file holding tag definitions
		Path          string        `json:"path" yaml:"path" toml:"path"`
		WatchInterval time.Duration `json:"watchInterval" yaml:"watchInterval" toml:"watchInterval"`
	}
	PipelineConfig struct {
		BatchMaxSize    int            `json:"batchMaxSize" yaml:"batchMaxSize" toml:"batchMaxSize"`
		BatchMaxAge     time.Duration  `json:"batchMaxAge" yaml:"batchMaxAge" toml:"batchMaxAge"`
		PollInterval    time.Duration  `json:"pollInterval" yaml:"pollInterval" toml:"pollInterval"`
		FlushOnShutdown *bool          `json:"flushOnShutdown,omitempty" yaml:"flushOnShutdown" toml:"flushOnShutdown"`
		Queue           QueueConfig    `json:"queue" yaml:"queue" toml:"queue"`
		Deadband        DeadbandConfig `json:"deadband" yaml:"deadband" toml:"deadband"`
		Publish         PublishConfig  `json:"publish" yaml:"publish" toml:"publish"`
	}
	QueueConfig struct {
		// unbounded or bounded
		Mode     string `json:"mode" yaml:"mode" toml:"mode"`
		Capacity int    `json:"capacity" yaml:"capacity" toml:"capacity"`
	}
	DeadbandConfig struct {
		// suppress or pass
		FirstSample string `json:"firstSample" yaml:"firstSample" toml:"firstSample"`
	}
	PublishConfig struct {
		// drop or retry
		Policy     string           `json:"policy" yaml:"policy" toml:"policy"`
		Retry      RetryConfig      `json:"retry" yaml:"retry" toml:"retry"`
		DeadLetter DeadLetterConfig `json:"deadLetter" yaml:"deadLetter" toml:"deadLetter"`
	}
	RetryConfig struct {
		MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts" toml:"maxAttempts"`
		Min         time.Duration `json:"min" yaml:"min" toml:"min"`
		Max         time.Duration `json:"max" yaml:"max" toml:"max"`
	}
	DeadLetterConfig struct {
		Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
		Path    string `json:"path" yaml:"path" toml:"path"`
	}
	ReadersConfig struct {
		OPCUA OPCUAConfig    `json:"opcua" yaml:"opcua" toml:"opcua"`
		MQTT  MQTTConfig     `json:"mqtt" yaml:"mqtt" toml:"mqtt"`
		HTTP  HTTPPollConfig `json:"http" yaml:"http" toml:"http"`
	}
	OPCUAConfig struct {
		Enabled          bool          `json:"enabled" yaml:"enabled" toml:"enabled"`
		Endpoint         string        `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
		Username         string        `json:"username" yaml:"username" toml:"username"`
		Password         string        `json:"-" yaml:"password" toml:"password"`
		SecurityMode     string        `json:"securityMode" yaml:"securityMode" toml:"securityMode"`
		SecurityPolicy   string        `json:"securityPolicy" yaml:"securityPolicy" toml:"securityPolicy"`
		PublishInterval  time.Duration `json:"publishInterval" yaml:"publishInterval" toml:"publishInterval"`
		SamplingInterval time.Duration `json:"samplingInterval" yaml:"samplingInterval" toml:"samplingInterval"`
		Nodes            []OPCUANode   `json:"nodes" yaml:"nodes" toml:"nodes"`
	}
	OPCUANode struct {
		NodeID string `json:"nodeId" yaml:"nodeId" toml:"nodeId"`
		TagID  string `json:"tagId" yaml:"tagId" toml:"tagId"`
		Asset  string `json:"asset" yaml:"asset" toml:"asset"`
		Unit   string `json:"unit" yaml:"unit" toml:"unit"`
	}
	MQTTConfig struct {
		Enabled  bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
		Broker   string   `json:"broker" yaml:"broker" toml:"broker"`
		ClientID string   `json:"clientId" yaml:"clientId" toml:"clientId"`
		Username string   `json:"username" yaml:"username" toml:"username"`
		Password string   `json:"-" yaml:"password" toml:"password"`
		Topics   []string `json:"topics" yaml:"topics" toml:"topics"`
		QoS      byte     `json:"qos" yaml:"qos" toml:"qos"`
	}
	HTTPPollConfig struct {
		Enabled   bool              `json:"enabled" yaml:"enabled" toml:"enabled"`
		URL       string            `json:"url" yaml:"url" toml:"url"`
		Headers   map[string]string `json:"-" yaml:"headers" toml:"headers"`
		Interval  time.Duration     `json:"interval" yaml:"interval" toml:"interval"`
		Timeout   time.Duration     `json:"timeout" yaml:"timeout" toml:"timeout"`
		RateLimit int               `json:"rateLimit" yaml:"rateLimit" toml:"rateLimit"`
		// MaxFailures is the number of consecutive failed polls after which the reader gives up.
		MaxFailures int `json:"maxFailures" yaml:"maxFailures" toml:"maxFailures"`
	}
	RestartConfig struct {
		// none, fixed or exponential
		Policy string        `json:"policy" yaml:"policy" toml:"policy"`
		Min    time.Duration `json:"min" yaml:"min" toml:"min"`
		Max    time.Duration `json:"max" yaml:"max" toml:"max"`
		Factor float64       `json:"factor" yaml:"factor" toml:"factor"`
	}
	OutputConfig struct {
		// console, nats or a comma separated list of both
		Type string     `json:"type" yaml:"type" toml:"type"`
		NATS NATSConfig `json:"nats" yaml:"nats" toml:"nats"`
	}
	NATSConfig struct {
		URL     string `json:"url" yaml:"url" toml:"url"`
		Subject string `json:"subject" yaml:"subject" toml:"subject"`
		// Stream is created or updated on connect when set
		Stream          string        `json:"stream" yaml:"stream" toml:"stream"`
		Token           string        `json:"-" yaml:"token" toml:"token"`
		MaxMessageBytes int           `json:"maxMessageBytes" yaml:"maxMessageBytes" toml:"maxMessageBytes"`
		Timeout         time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	}
	HttpConfig struct {
		Addr string `json:"addr" yaml:"addr" toml:"addr"`
	}
	LogConfig struct {
		Dir string `json:"dir" yaml:"dir" toml:"dir"`
		// Console keeps logging to stdout only
		Console bool `json:"console" yaml:"console" toml:"console"`
		Dev     bool `json:"dev" yaml:"dev" toml:"dev"`
	}
)

// SetupAppConfig loads StdIngestConfig from the working directory.
func SetupAppConfig() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := Load(wd)
	if err != nil {
		return err
	}
	StdIngestConfig = *cfg
	return nil
}

// Load reads ingest.yaml and ingest.toml from dir (or dir/conf), then applies env overrides and defaults.
func Load(dir string) (*IngestConfig, error) {
	cfg := &IngestConfig{}

	// load from config file
	if fileBytes, path, err := readFirst(dir, "ingest.yaml"); err == nil {
		fmt.Printf("read %s\n", path)
		if err := yaml.Unmarshal(fileBytes, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	if fileBytes, path, err := readFirst(dir, "ingest.toml"); err == nil {
		fmt.Printf("read %s\n", path)
		if err := toml.Unmarshal(fileBytes, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Version = ingestVersion
	return cfg, nil
}

func readFirst(dir, name string) ([]byte, string, error) {
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		path = filepath.Join(dir, "conf", name)
		b, err = os.ReadFile(path)
	}
	return b, path, err
}

// load from env
func (c *IngestConfig) applyEnv() error {
	if s := os.Getenv("HI_SITE"); s != "" {
		c.Site = s
	}
	if s := os.Getenv("HI_TAGS_PATH"); s != "" {
		c.Tags.Path = s
	}
	if s := os.Getenv("HI_TAGS_WATCH_INTERVAL"); s != "" {
		d, err := cast.ToDurationE(s)
		if err != nil {
			return errors.Wrap(err, "HI_TAGS_WATCH_INTERVAL")
		}
		c.Tags.WatchInterval = d
	}
	if s := os.Getenv("HI_PIPELINE_BATCH_MAX_SIZE"); s != "" {
		n, err := cast.ToIntE(s)
		if err != nil {
			return errors.Wrap(err, "HI_PIPELINE_BATCH_MAX_SIZE")
		}
		c.Pipeline.BatchMaxSize = n
	}
	if s := os.Getenv("HI_PIPELINE_BATCH_MAX_AGE"); s != "" {
		d, err := cast.ToDurationE(s)
		if err != nil {
			return errors.Wrap(err, "HI_PIPELINE_BATCH_MAX_AGE")
		}
		c.Pipeline.BatchMaxAge = d
	}
	if s := os.Getenv("HI_PIPELINE_QUEUE_MODE"); s != "" {
		c.Pipeline.Queue.Mode = s
	}
	if s := os.Getenv("HI_READERS_OPCUA_ENABLED"); s != "" {
		c.Readers.OPCUA.Enabled = cast.ToBool(s)
	}
	if s := os.Getenv("HI_READERS_OPCUA_ENDPOINT"); s != "" {
		c.Readers.OPCUA.Endpoint = s
	}
	if s := os.Getenv("HI_READERS_MQTT_ENABLED"); s != "" {
		c.Readers.MQTT.Enabled = cast.ToBool(s)
	}
	if s := os.Getenv("HI_READERS_MQTT_BROKER"); s != "" {
		c.Readers.MQTT.Broker = s
	}
	if s := os.Getenv("HI_READERS_MQTT_PASSWORD"); s != "" {
		c.Readers.MQTT.Password = s
	}
	if s := os.Getenv("HI_READERS_HTTP_ENABLED"); s != "" {
		c.Readers.HTTP.Enabled = cast.ToBool(s)
	}
	if s := os.Getenv("HI_READERS_HTTP_URL"); s != "" {
		c.Readers.HTTP.URL = s
	}
	if s := os.Getenv("HI_RESTART_POLICY"); s != "" {
		c.Restart.Policy = s
	}
	if s := os.Getenv("HI_OUTPUT_TYPE"); s != "" {
		c.Output.Type = s
	}
	if s := os.Getenv("HI_OUTPUT_NATS_URL"); s != "" {
		c.Output.NATS.URL = s
	}
	if s := os.Getenv("HI_OUTPUT_NATS_TOKEN"); s != "" {
		c.Output.NATS.Token = s
	}
	if s := os.Getenv("HI_HTTP_ADDR"); s != "" {
		c.Http.Addr = s
	}
	if s := os.Getenv("HI_LOG_CONSOLE"); s != "" {
		c.Log.Console = cast.ToBool(s)
	}
	return nil
}

func (c *IngestConfig) applyDefaults() {
	if c.Site == "" {
		c.Site = defaultSite
	}
	if c.Tags.Path == "" {
		c.Tags.Path = "conf/tags.yaml"
	}
	if c.Tags.WatchInterval <= 0 {
		c.Tags.WatchInterval = 5 * time.Second
	}

	p := &c.Pipeline
	if p.BatchMaxSize <= 0 {
		p.BatchMaxSize = 1000
	}
	if p.BatchMaxAge <= 0 {
		p.BatchMaxAge = 500 * time.Millisecond
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 50 * time.Millisecond
	}
	if p.FlushOnShutdown == nil {
		b := true
		p.FlushOnShutdown = &b
	}
	if p.Queue.Mode == "" {
		p.Queue.Mode = QueueModeUnbounded
	}
	if p.Queue.Mode == QueueModeBounded && p.Queue.Capacity <= 0 {
		p.Queue.Capacity = 100_000
	}
	if p.Deadband.FirstSample == "" {
		p.Deadband.FirstSample = FirstSampleSuppress
	}
	if p.Publish.Policy == "" {
		p.Publish.Policy = PublishPolicyDrop
	}
	if p.Publish.Retry.MaxAttempts <= 0 {
		p.Publish.Retry.MaxAttempts = 3
	}
	if p.Publish.Retry.Min <= 0 {
		p.Publish.Retry.Min = 100 * time.Millisecond
	}
	if p.Publish.Retry.Max <= 0 {
		p.Publish.Retry.Max = 2 * time.Second
	}
	if p.Publish.DeadLetter.Path == "" {
		p.Publish.DeadLetter.Path = "data/deadletter.db"
	}

	if c.Readers.OPCUA.PublishInterval <= 0 {
		c.Readers.OPCUA.PublishInterval = 250 * time.Millisecond
	}
	if c.Readers.MQTT.ClientID == "" {
		c.Readers.MQTT.ClientID = "holoinsight-ingest-" + c.Site
	}
	if c.Readers.HTTP.Interval <= 0 {
		c.Readers.HTTP.Interval = 5 * time.Second
	}
	if c.Readers.HTTP.Timeout <= 0 {
		c.Readers.HTTP.Timeout = 3 * time.Second
	}
	if c.Readers.HTTP.RateLimit <= 0 {
		c.Readers.HTTP.RateLimit = 10
	}
	if c.Readers.HTTP.MaxFailures <= 0 {
		c.Readers.HTTP.MaxFailures = 10
	}

	if c.Restart.Policy == "" {
		c.Restart.Policy = RestartNone
	}
	if c.Restart.Min <= 0 {
		c.Restart.Min = time.Second
	}
	if c.Restart.Max <= 0 {
		c.Restart.Max = time.Minute
	}
	if c.Restart.Factor <= 1 {
		c.Restart.Factor = 2
	}

	if c.Output.Type == "" {
		c.Output.Type = "console"
	}
	if c.Output.NATS.Subject == "" {
		c.Output.NATS.Subject = "telemetry." + c.Site
	}
	if c.Output.NATS.MaxMessageBytes <= 0 {
		c.Output.NATS.MaxMessageBytes = 1024 * 1024
	}
	if c.Output.NATS.Timeout <= 0 {
		c.Output.NATS.Timeout = 5 * time.Second
	}
	if c.Http.Addr == "" {
		c.Http.Addr = "127.0.0.1:9118"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
}

func (c *IngestConfig) Validate() error {
	switch c.Pipeline.Queue.Mode {
	case QueueModeUnbounded, QueueModeBounded:
	default:
		return errors.New("invalid pipeline.queue.mode " + c.Pipeline.Queue.Mode)
	}
	switch c.Pipeline.Deadband.FirstSample {
	case FirstSampleSuppress, FirstSamplePass:
	default:
		return errors.New("invalid pipeline.deadband.firstSample " + c.Pipeline.Deadband.FirstSample)
	}
	switch c.Pipeline.Publish.Policy {
	case PublishPolicyDrop, PublishPolicyRetry:
	default:
		return errors.New("invalid pipeline.publish.policy " + c.Pipeline.Publish.Policy)
	}
	switch c.Restart.Policy {
	case RestartNone, RestartFixed, RestartExponential:
	default:
		return errors.New("invalid restart.policy " + c.Restart.Policy)
	}
	if c.Restart.Min > c.Restart.Max {
		return fmt.Errorf("restart.min %s > restart.max %s", c.Restart.Min, c.Restart.Max)
	}
	return nil
}

func (c *PipelineConfig) ShouldFlushOnShutdown() bool {
	return c.FlushOnShutdown == nil || *c.FlushOnShutdown
}
