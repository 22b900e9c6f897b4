/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package input

import (
	"errors"
	"fmt"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"runtime"
	"sort"
	"sync"
)

var (
	ErrUnknownReaderType = errors.New("unknown reader type")
)

type (
	// Factory builds a reader from the process config. Each call returns a fresh instance.
	Factory func(*appconfig.IngestConfig) (Reader, error)
	// EnabledFunc tells whether a reader type is switched on in config.
	EnabledFunc func(*appconfig.IngestConfig) bool

	registration struct {
		factory Factory
		enabled EnabledFunc
	}
)

var (
	factories   = make(map[string]registration)
	factoriesMu sync.RWMutex
)

func Register(readerType string, enabled EnabledFunc, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exist := factories[readerType]; exist {
		logger.Warnf("[plugin] register reader factory %+v already exist, cover it", readerType)
	}
	factories[readerType] = registration{factory: factory, enabled: enabled}
}

// Parse builds a reader of readerType. A panicking factory is reported as an error.
func Parse(readerType string, cfg *appconfig.IngestConfig) (_ Reader, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Errorf("[plugin] build reader %s panic, stack: %v\n%s", readerType, r, buf)

			retErr = fmt.Errorf("build reader %s error %+v", readerType, r)
		}
	}()

	factoriesMu.RLock()
	reg, ok := factories[readerType]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReaderType, readerType)
	}
	return reg.factory(cfg)
}

// Enabled returns the registered reader types switched on in cfg, sorted.
func Enabled(cfg *appconfig.IngestConfig) []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	var ret []string
	for t, reg := range factories {
		if reg.enabled != nil && reg.enabled(cfg) {
			ret = append(ret, t)
		}
	}
	sort.Strings(ret)
	return ret
}

// Types returns all registered reader types, sorted.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	ret := make([]string, 0, len(factories))
	for t := range factories {
		ret = append(ret, t)
	}
	sort.Strings(ret)
	return ret
}
