/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package logger

import (
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"os"
	"path/filepath"
	"sync/atomic"
)

type (
	alwaysLevel     struct{}
	loggerComposite struct {
		debug  *zap.Logger
		debugS *zap.SugaredLogger
		info   *zap.Logger
		infoS  *zap.SugaredLogger
		warn   *zap.Logger
		warnS  *zap.SugaredLogger
		error  *zap.Logger
		errorS *zap.SugaredLogger
		config *zap.Logger
	}
)

var (
	zapLogger    *loggerComposite
	debugEnabled atomic.Bool
)

var consoleEncoderConfig = zapcore.EncoderConfig{
	TimeKey:          "time",
	LevelKey:         "level",
	NameKey:          "logger",
	CallerKey:        "caller",
	MessageKey:       "msg",
	StacktraceKey:    "stacktrace",
	ConsoleSeparator: " ",
	LineEnding:       zapcore.DefaultLineEnding,
	EncodeLevel:      zapcore.LowercaseLevelEncoder,
	EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
	EncodeDuration:   zapcore.StringDurationEncoder,
}

// init initializes default loggers (to console)
func init() {
	newConsole := func() *zap.Logger {
		return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig), zapcore.AddSync(os.Stdout), alwaysLevel{}))
	}
	zapLogger = build(newConsole)
}

func (a alwaysLevel) Enabled(level zapcore.Level) bool {
	return true
}

func build(newLogger func() *zap.Logger) *loggerComposite {
	c := &loggerComposite{
		debug:  newLogger(),
		info:   newLogger(),
		warn:   newLogger(),
		error:  newLogger(),
		config: newLogger(),
	}
	c.debugS = c.debug.Sugar()
	c.infoS = c.info.Sugar()
	c.warnS = c.warn.Sugar()
	c.errorS = c.error.Sugar()
	return c
}

// SetupZapLogger switches loggers from console to rotating files under the configured log dir.
// In dev mode logs are also written to stdout.
func SetupZapLogger() {
	cfg := appconfig.StdIngestConfig.Log
	if cfg.Console {
		return
	}
	setupZapLogger0(cfg.Dir, cfg.Dev)
}

func setupZapLogger0(logDir string, dev bool) {
	if logDir == "" {
		logDir = "logs"
	}
	fileEncoderConfig := consoleEncoderConfig
	fileEncoderConfig.EncodeLevel = nil

	newFileLogger := func(name string) *zap.Logger {
		w := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, name),
			MaxSize:    1024,
			MaxBackups: 7,
			MaxAge:     7,
			LocalTime:  true,
		}
		fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderConfig), zapcore.AddSync(w), alwaysLevel{})
		if dev {
			return zap.New(zapcore.NewTee(
				zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig), zapcore.AddSync(os.Stdout), alwaysLevel{}),
				fileCore,
			))
		}
		return zap.New(fileCore)
	}

	zapLogger = &loggerComposite{
		debug:  newFileLogger("debug.log"),
		info:   newFileLogger("info.log"),
		warn:   newFileLogger("warn.log"),
		error:  newFileLogger("error.log"),
		config: newFileLogger("config.log"),
	}
	zapLogger.debugS = zapLogger.debug.Sugar()
	zapLogger.infoS = zapLogger.info.Sugar()
	zapLogger.warnS = zapLogger.warn.Sugar()
	zapLogger.errorS = zapLogger.error.Sugar()
}

// Sync flushes buffered logs. Called on shutdown.
func Sync() {
	for _, l := range []*zap.Logger{zapLogger.debug, zapLogger.info, zapLogger.warn, zapLogger.error, zapLogger.config} {
		l.Sync()
	}
}

func Debugz(msg string, fields ...zap.Field) {
	if debugEnabled.Load() {
		zapLogger.debug.Info(msg, fields...)
	}
}
func Infoz(msg string, fields ...zap.Field) {
	zapLogger.info.Info(msg, fields...)
}
func Warnz(msg string, fields ...zap.Field) {
	zapLogger.warn.Info(msg, fields...)
}
func Errorz(msg string, fields ...zap.Field) {
	zapLogger.error.Info(msg, fields...)
}
func Configz(msg string, fields ...zap.Field) {
	zapLogger.config.Info(msg, fields...)
}

func Debugf(msg string, args ...interface{}) {
	if debugEnabled.Load() {
		zapLogger.debugS.Infof(msg, args...)
	}
}
func Infof(msg string, args ...interface{}) {
	zapLogger.infoS.Infof(msg, args...)
}
func Warnf(msg string, args ...interface{}) {
	zapLogger.warnS.Infof(msg, args...)
}
func Errorf(msg string, args ...interface{}) {
	zapLogger.errorS.Infof(msg, args...)
}

func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

func SetDebugEnabled(b bool) {
	debugEnabled.Store(b)
}

// TestMode logs everything to stdout, debug included.
func TestMode() {
	SetDebugEnabled(true)
}
